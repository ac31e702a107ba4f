package app

import (
	"strings"
	"time"

	"github.com/yungbote/microbrsoil-backend/internal/data/db"
	"github.com/yungbote/microbrsoil-backend/internal/observability"
	"github.com/yungbote/microbrsoil-backend/internal/platform/envutil"
	"github.com/yungbote/microbrsoil-backend/internal/platform/logger"
	"github.com/yungbote/microbrsoil-backend/internal/services"
)

const (
	defaultPort            = "3000"
	defaultPipelineTimeout = 12 * time.Hour
)

type Config struct {
	Port     string
	LogMode  string
	LogFile  logger.FileSink
	Postgres db.PostgresConfig
	RedisURL string

	UploadsDir      string
	ResultsDir      string
	PipelinesConfig string
	RscriptBin      string

	PipelineTimeout     time.Duration
	PipelineMaxAttempts int
	QueueName           string
	WorkerConcurrency   int
	WorkerShutdown      time.Duration

	UploadMaxFileBytes int64
	UploadMaxFiles     int
	MultipartMemory    int64

	JWTSecretKey   string
	AccessTokenTTL time.Duration
	CookieSecure   bool
	CORSOrigins    []string

	MetricsEnabled bool
	Otel           observability.OtelConfig
	FilterCacheTTL time.Duration
}

func LoadConfig() Config {
	return Config{
		Port:    envutil.String("PORT", defaultPort),
		LogMode: envutil.String("LOG_MODE", "development"),
		LogFile: logger.FileSink{
			Path:       envutil.String("LOG_PATH", ""),
			MaxSizeMB:  envutil.Int("LOG_MAX_SIZE_MB", 10),
			MaxBackups: envutil.Int("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: envutil.Int("LOG_MAX_AGE_DAYS", 14),
		},
		Postgres: db.PostgresConfig{
			URL:          envutil.String("DATABASE_URL", ""),
			Host:         envutil.String("POSTGRES_HOST", "localhost"),
			Port:         envutil.String("POSTGRES_PORT", "5432"),
			User:         envutil.String("POSTGRES_USER", "postgres"),
			Password:     envutil.String("POSTGRES_PASSWORD", ""),
			Name:         envutil.String("POSTGRES_NAME", "microbrsoil"),
			SSLMode:      envutil.String("POSTGRES_SSLMODE", "disable"),
			MaxOpenConns: envutil.Int("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns: envutil.Int("DB_MAX_IDLE_CONNS", 0),
			ConnMaxLife:  envutil.Duration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		RedisURL: envutil.String("REDIS_URL", "redis://localhost:6379/0"),

		UploadsDir:      envutil.String("UPLOADS_DIR", "uploads"),
		ResultsDir:      envutil.String("RESULTS_DIR", "results"),
		PipelinesConfig: envutil.String("PIPELINES_CONFIG", ""),
		RscriptBin:      envutil.String("RSCRIPT_BIN", "Rscript"),

		PipelineTimeout:     envutil.Duration("PIPELINE_TIMEOUT", defaultPipelineTimeout),
		PipelineMaxAttempts: envutil.Int("PIPELINE_MAX_ATTEMPTS", 3),
		QueueName:           envutil.String("PIPELINE_QUEUE", "pipeline-jobs"),
		WorkerConcurrency:   envutil.Int("WORKER_CONCURRENCY", 2),
		WorkerShutdown:      envutil.Duration("WORKER_SHUTDOWN_TIMEOUT", 30*time.Second),

		UploadMaxFileBytes: envutil.Int64("UPLOAD_MAX_FILE_BYTES", services.DefaultUploadMaxFileBytes),
		UploadMaxFiles:     envutil.Int("UPLOAD_MAX_FILES", services.DefaultUploadMaxFiles),
		MultipartMemory:    envutil.Int64("UPLOAD_MULTIPART_MEMORY", 32<<20),

		JWTSecretKey:   envutil.String("JWT_SECRET_KEY", ""),
		AccessTokenTTL: envutil.Duration("ACCESS_TOKEN_TTL", 24*time.Hour),
		CookieSecure:   envutil.Bool("COOKIE_SECURE", false),
		CORSOrigins:    splitList(envutil.String("CORS_ORIGINS", "")),

		MetricsEnabled: envutil.Bool("METRICS_ENABLED", true),
		Otel: observability.OtelConfig{
			Enabled:     envutil.Bool("OTEL_ENABLED", false),
			ServiceName: envutil.String("OTEL_SERVICE_NAME", "microbrsoil-api"),
			Environment: envutil.String("OTEL_ENVIRONMENT", "development"),
			Version:     envutil.String("OTEL_SERVICE_VERSION", ""),
			Endpoint:    envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:     observability.ParseHeaders(envutil.String("OTEL_EXPORTER_OTLP_HEADERS", "")),
			Insecure:    envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", false),
			SampleRatio: envutil.Float64("OTEL_SAMPLE_RATIO", 1),
		},
		FilterCacheTTL: envutil.Duration("FILTER_CACHE_TTL", 5*time.Minute),
	}
}

// Addr is the HTTP listen address.
func (c Config) Addr() string {
	port := strings.TrimPrefix(strings.TrimSpace(c.Port), ":")
	if port == "" {
		port = defaultPort
	}
	return ":" + port
}

func (c Config) uploadConfig() services.UploadConfig {
	return services.UploadConfig{
		Dir:          c.UploadsDir,
		MaxFileBytes: c.UploadMaxFileBytes,
		MaxFiles:     c.UploadMaxFiles,
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
