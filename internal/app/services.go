package app

import (
	"github.com/yungbote/microbrsoil-backend/internal/jobs/queue"
	"github.com/yungbote/microbrsoil-backend/internal/platform/logger"
	"github.com/yungbote/microbrsoil-backend/internal/services"
)

type Services struct {
	Auth         services.AuthService
	Upload       services.UploadService
	PipelineRuns services.PipelineRunService
	SoilCatalog  services.SoilCatalogService
}

func wireServices(log *logger.Logger, cfg Config, clients Clients, reposet Repos) Services {
	log.Info("Wiring services...")
	var q queue.Queue
	if clients.Queue != nil {
		q = clients.Queue
	}
	return Services{
		Auth:         services.NewAuthService(log, reposet.User, cfg.JWTSecretKey, cfg.AccessTokenTTL),
		Upload:       services.NewUploadService(log, reposet.Run, q, cfg.uploadConfig()),
		PipelineRuns: services.NewPipelineRunService(log, reposet.Run, reposet.Result, q, cfg.ResultsDir),
		SoilCatalog:  services.NewSoilCatalogService(log, reposet.Soil, reposet.Sample, clients.Cache, cfg.FilterCacheTTL),
	}
}
