package app

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/microbrsoil-backend/internal/http"
	"github.com/yungbote/microbrsoil-backend/internal/observability"
	"github.com/yungbote/microbrsoil-backend/internal/platform/logger"
)

func wireRouter(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *gin.Engine {
	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	return http.NewRouter(http.RouterConfig{
		Log:                log,
		Metrics:            metrics,
		ServiceName:        serviceName,
		CORSOrigins:        cfg.CORSOrigins,
		MaxMultipartMemory: cfg.MultipartMemory,
		AuthHandler:        handlers.Auth,
		AuthMiddleware:     middleware.Auth,
		UploadHandler:      handlers.Upload,
		PipelineHandler:    handlers.Pipeline,
		SoilHandler:        handlers.Soil,
		HealthHandler:      handlers.Health,
	})
}
