package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/microbrsoil-backend/internal/clients/redis"
	"github.com/yungbote/microbrsoil-backend/internal/data/db"
	"github.com/yungbote/microbrsoil-backend/internal/jobs/queue"
	"github.com/yungbote/microbrsoil-backend/internal/platform/logger"
)

type Clients struct {
	Postgres *db.PostgresService
	Redis    *goredis.Client
	Cache    redis.Cache
	Queue    *queue.Client
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	pg, err := db.NewPostgresService(log, cfg.Postgres)
	if err != nil {
		return Clients{}, fmt.Errorf("init postgres: %w", err)
	}

	// The filter cache is optional; without Redis the catalog reads through to Postgres.
	var (
		rdb   *goredis.Client
		cache redis.Cache = redis.NopCache{}
	)
	if c, err := redis.NewClient(ctx, cfg.RedisURL); err != nil {
		log.Warn("Redis unavailable, filter cache disabled", "error", err)
	} else {
		rdb = c
		cache = redis.NewCache(log, rdb, "microbrsoil")
	}

	q, err := queue.NewClient(log, queue.Config{
		RedisURL:    cfg.RedisURL,
		Queue:       cfg.QueueName,
		MaxAttempts: cfg.PipelineMaxAttempts,
		Timeout:     cfg.PipelineTimeout,
	})
	if err != nil {
		_ = pg.Close()
		if rdb != nil {
			_ = rdb.Close()
		}
		return Clients{}, fmt.Errorf("init pipeline queue: %w", err)
	}

	return Clients{Postgres: pg, Redis: rdb, Cache: cache, Queue: q}, nil
}

func (c Clients) DB() *gorm.DB { return c.Postgres.DB() }

func (c Clients) Close(log *logger.Logger) {
	if c.Queue != nil {
		if err := c.Queue.Close(); err != nil {
			log.Warn("close pipeline queue", "error", err)
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			log.Warn("close redis", "error", err)
		}
	}
	if c.Postgres != nil {
		if err := c.Postgres.Close(); err != nil {
			log.Warn("close postgres", "error", err)
		}
	}
}
