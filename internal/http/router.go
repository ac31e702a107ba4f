package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/microbrsoil-backend/internal/http/handlers"
	httpMW "github.com/yungbote/microbrsoil-backend/internal/http/middleware"
	"github.com/yungbote/microbrsoil-backend/internal/observability"
	"github.com/yungbote/microbrsoil-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	CORSOrigins []string
	// MaxMultipartMemory is the in-memory part of a multipart upload; the rest spills to temp files.
	MaxMultipartMemory int64

	AuthHandler     *httpH.AuthHandler
	AuthMiddleware  *httpMW.AuthMiddleware
	UploadHandler   *httpH.UploadHandler
	PipelineHandler *httpH.PipelineHandler
	SoilHandler     *httpH.SoilHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	// Match on the escaped path so an encoded slash stays inside one param.
	r.UseRawPath = true
	r.UnescapePathValues = true
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))
	if cfg.MaxMultipartMemory > 0 {
		r.MaxMultipartMemory = cfg.MaxMultipartMemory
	}
	if cfg.AuthMiddleware != nil {
		r.Use(cfg.AuthMiddleware.OptionalAuth())
	}

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/_health", cfg.HealthHandler.Liveness)
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	// Auth
	if cfg.AuthHandler != nil {
		r.POST("/auth/register", cfg.AuthHandler.Register)
		r.POST("/auth/login", cfg.AuthHandler.Login)
		r.POST("/auth/logout", cfg.AuthHandler.Logout)
	}

	// Upload
	if cfg.UploadHandler != nil {
		r.POST("/upload/file", cfg.UploadHandler.UploadLegacy)
		r.POST("/upload/:pipelineType", cfg.UploadHandler.Upload)
	}

	// Pipeline status and results
	if cfg.PipelineHandler != nil {
		r.GET("/pipeline/status/:runId", cfg.PipelineHandler.Status)
		r.GET("/pipeline/results/:runId", cfg.PipelineHandler.Results)
		r.GET("/pipeline/runs", cfg.PipelineHandler.ListMine)
		r.GET("/pipeline/queue", cfg.PipelineHandler.QueueStats)
		r.GET("/results/files/:runId", cfg.PipelineHandler.Files)
		r.GET("/results/download/:runId/:filename", cfg.PipelineHandler.Download)
	}

	// Soil catalog and search
	if cfg.SoilHandler != nil {
		r.GET("/table/soil", cfg.SoilHandler.List)
		r.GET("/table/soil/filters", cfg.SoilHandler.Filters)
		r.GET("/table/soil/:id", cfg.SoilHandler.Detail)
		r.GET("/taxon_search/api/getLists", cfg.SoilHandler.TaxonLists)
		r.GET("/taxon_search/api/:parameterType/:selectedParameter/result", cfg.SoilHandler.TaxonResult)
		r.GET("/sequence_search/api/result", cfg.SoilHandler.ExactSequence)
		r.GET("/sequence_search/api/approximateResults", cfg.SoilHandler.ApproximateSequence)
		r.GET("/geosearch", cfg.SoilHandler.GeoSearch)
	}

	return r
}
