package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/microbrsoil-backend/internal/http"
	"github.com/yungbote/microbrsoil-backend/internal/jobs/pipeline/pipeline_run"
	"github.com/yungbote/microbrsoil-backend/internal/jobs/runtime"
	"github.com/yungbote/microbrsoil-backend/internal/jobs/worker"
	"github.com/yungbote/microbrsoil-backend/internal/observability"
	"github.com/yungbote/microbrsoil-backend/internal/pipeline/invoker"
	"github.com/yungbote/microbrsoil-backend/internal/pipeline/results"
	"github.com/yungbote/microbrsoil-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Clients  Clients
	Repos    Repos
	Services Services
	Metrics  *observability.Metrics

	shutdownOtel func(context.Context) error
}

// New connects to Postgres and Redis and wires repos and services. Nothing is
// served until RunAPI or RunWorker.
func New(ctx context.Context, cfg Config) (*App, error) {
	log, err := logger.New(cfg.LogMode, logger.WithFile(cfg.LogFile))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}
	reposet := wireRepos(clients.DB(), log)
	serviceset := wireServices(log, cfg, clients, reposet)

	var metrics *observability.Metrics
	if cfg.MetricsEnabled {
		metrics = observability.NewMetrics()
	}

	return &App{
		Log:          log,
		Cfg:          cfg,
		Clients:      clients,
		Repos:        reposet,
		Services:     serviceset,
		Metrics:      metrics,
		shutdownOtel: observability.InitOTel(ctx, log, cfg.Otel),
	}, nil
}

// Migrate creates or updates every table.
func (a *App) Migrate() error {
	return a.Clients.Postgres.AutoMigrateAll()
}

func (a *App) Router() *gin.Engine {
	handlerset := wireHandlers(a.Log, a.Cfg, a.Clients, a.Services)
	middleware := wireMiddleware(a.Log, a.Services)
	return wireRouter(a.Log, a.Cfg, a.Metrics, handlerset, middleware)
}

// RunAPI serves HTTP until ctx is canceled.
func (a *App) RunAPI(ctx context.Context) error {
	a.Metrics.StartQueueCollector(ctx, a.Log, a.Clients.Queue, 0)
	srv := &http.Server{Engine: a.Router()}
	a.Log.Info("Starting API server", "addr", a.Cfg.Addr())
	return srv.Run(ctx, a.Cfg.Addr())
}

// RunWorker consumes pipeline tasks until ctx is canceled.
func (a *App) RunWorker(ctx context.Context) error {
	reg, err := wireRegistry(a.Log, a.Cfg, a.Clients.DB(), a.Repos)
	if err != nil {
		return err
	}
	w := worker.NewWorker(a.Log, a.Repos.Run, reg, worker.Config{
		RedisURL:        a.Cfg.RedisURL,
		Queue:           a.Cfg.QueueName,
		Concurrency:     a.Cfg.WorkerConcurrency,
		ShutdownTimeout: a.Cfg.WorkerShutdown,
	}).WithMetrics(a.Metrics)
	return w.Run(ctx)
}

func wireRegistry(log *logger.Logger, cfg Config, gdb *gorm.DB, reposet Repos) (*runtime.Registry, error) {
	log.Info("Wiring job handlers...")
	catalog, err := invoker.LoadCatalog(cfg.PipelinesConfig)
	if err != nil {
		return nil, err
	}
	inv := invoker.NewRscript(log, invoker.Config{
		RscriptBin: cfg.RscriptBin,
		Timeout:    cfg.PipelineTimeout,
	})
	proc := results.NewProcessor(gdb, log, reposet.Result, reposet.Soil, reposet.Sample)

	reg := runtime.NewRegistry()
	if err := reg.Register(pipeline_run.New(log, catalog, inv, proc, cfg.ResultsDir)); err != nil {
		return nil, fmt.Errorf("register pipeline handler: %w", err)
	}
	return reg, nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.shutdownOtel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.shutdownOtel(ctx); err != nil {
			a.Log.Warn("otel shutdown", "error", err)
		}
		cancel()
	}
	a.Clients.Close(a.Log)
	a.Log.Sync()
}
