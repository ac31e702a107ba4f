package app

import (
	"context"

	httpH "github.com/yungbote/microbrsoil-backend/internal/http/handlers"
	"github.com/yungbote/microbrsoil-backend/internal/platform/logger"
)

type Handlers struct {
	Health   *httpH.HealthHandler
	Auth     *httpH.AuthHandler
	Upload   *httpH.UploadHandler
	Pipeline *httpH.PipelineHandler
	Soil     *httpH.SoilHandler
}

func wireHandlers(log *logger.Logger, cfg Config, clients Clients, serviceset Services) Handlers {
	log.Info("Wiring handlers...")
	checks := map[string]httpH.Pinger{}
	if clients.Postgres != nil {
		checks["postgres"] = httpH.PingFunc(func(ctx context.Context) error {
			sqlDB, err := clients.DB().DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		})
	}
	if clients.Redis != nil {
		checks["redis"] = httpH.PingFunc(func(ctx context.Context) error {
			return clients.Redis.Ping(ctx).Err()
		})
	}
	return Handlers{
		Health:   httpH.NewHealthHandler(checks),
		Auth:     httpH.NewAuthHandler(serviceset.Auth, cfg.CookieSecure),
		Upload:   httpH.NewUploadHandler(serviceset.Upload, cfg.uploadConfig().MaxRequestBytes()),
		Pipeline: httpH.NewPipelineHandler(serviceset.PipelineRuns),
		Soil:     httpH.NewSoilHandler(serviceset.SoilCatalog),
	}
}
