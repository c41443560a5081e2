package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/dunamismax/pixelgrade/internal/batch"
	"github.com/dunamismax/pixelgrade/internal/logging"
	"github.com/dunamismax/pixelgrade/internal/preview"
	"github.com/hibiken/asynq"
	"github.com/spf13/viper"
)

type Config struct {
	API       APIConfig
	Queue     QueueConfig
	Worker    WorkerConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	Export    ExportConfig
	Webhook   WebhookConfig
	RateLimit RateLimitConfig
	Tracing   TracingConfig
	Log       logging.Config
}

type APIConfig struct {
	Addr           string
	MaxUploadBytes int64
	PreviewMaxEdge int
}

type QueueConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Name          string
	TaskTimeout   time.Duration
}

func (q QueueConfig) RedisClientOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     q.RedisAddr,
		Password: q.RedisPassword,
		DB:       q.RedisDB,
	}
}

type WorkerConfig struct {
	MetricsAddr     string
	ShutdownTimeout time.Duration
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// Disabled keeps sources in memory only; batch exports then cannot be
	// queued.
	Disabled bool
}

type DatabaseConfig struct {
	// DSN empty selects the in-memory export store.
	DSN string
}

type ExportConfig struct {
	ArchiveLabel string
	URLExpiry    time.Duration
}

type WebhookConfig struct {
	SigningSecret  string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type RateLimitConfig struct {
	Enabled       bool
	Capacity      int
	Window        time.Duration
	SubjectHeader string
}

type TracingConfig struct {
	ServiceName  string
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
}

// env maps config keys to the environment variables that override them.
var env = map[string]string{
	"api.addr":                 "PIXELGRADE_API_ADDR",
	"api.max_upload_bytes":     "PIXELGRADE_MAX_UPLOAD_BYTES",
	"api.preview_max_edge":     "PIXELGRADE_PREVIEW_MAX_EDGE",
	"queue.redis_addr":         "REDIS_ADDR",
	"queue.redis_password":     "REDIS_PASSWORD",
	"queue.redis_db":           "REDIS_DB",
	"queue.name":               "ASYNC_QUEUE",
	"queue.task_timeout":       "EXPORT_TASK_TIMEOUT",
	"worker.metrics_addr":      "WORKER_METRICS_ADDR",
	"worker.shutdown_timeout":  "WORKER_SHUTDOWN_TIMEOUT",
	"storage.endpoint":         "MINIO_ENDPOINT",
	"storage.access_key":       "MINIO_ACCESS_KEY",
	"storage.secret_key":       "MINIO_SECRET_KEY",
	"storage.bucket":           "MINIO_BUCKET",
	"storage.use_ssl":          "MINIO_USE_SSL",
	"storage.disabled":         "MINIO_DISABLED",
	"database.dsn":             "POSTGRES_DSN",
	"export.archive_label":     "EXPORT_ARCHIVE_LABEL",
	"export.url_expiry":        "EXPORT_URL_EXPIRY",
	"webhook.signing_secret":   "WEBHOOK_SIGNING_SECRET",
	"webhook.timeout":          "WEBHOOK_TIMEOUT",
	"webhook.max_attempts":     "WEBHOOK_MAX_ATTEMPTS",
	"webhook.initial_backoff":  "WEBHOOK_INITIAL_BACKOFF",
	"webhook.max_backoff":      "WEBHOOK_MAX_BACKOFF",
	"rate_limit.enabled":       "RATE_LIMIT_ENABLED",
	"rate_limit.capacity":      "RATE_LIMIT_CAPACITY",
	"rate_limit.window":        "RATE_LIMIT_WINDOW",
	"rate_limit.subject_header": "RATE_LIMIT_SUBJECT_HEADER",
	"tracing.service_name":     "OTEL_SERVICE_NAME",
	"tracing.exporter":         "OTEL_TRACES_EXPORTER",
	"tracing.otlp_endpoint":    "OTEL_EXPORTER_OTLP_ENDPOINT",
	"tracing.otlp_insecure":    "OTEL_EXPORTER_OTLP_INSECURE",
	"log.level":                "LOG_LEVEL",
	"log.format":               "LOG_FORMAT",
	"log.file":                 "LOG_FILE",
	"log.max_size_mb":          "LOG_MAX_SIZE_MB",
	"log.max_backups":          "LOG_MAX_BACKUPS",
	"log.max_age_days":         "LOG_MAX_AGE_DAYS",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.addr", ":8080")
	v.SetDefault("api.max_upload_bytes", 64<<20)
	v.SetDefault("api.preview_max_edge", preview.DefaultMaxEdge)
	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.name", "default")
	v.SetDefault("queue.task_timeout", 30*time.Minute)
	v.SetDefault("worker.metrics_addr", ":9091")
	v.SetDefault("worker.shutdown_timeout", 30*time.Second)
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.access_key", "minioadmin")
	v.SetDefault("storage.secret_key", "minioadmin")
	v.SetDefault("storage.bucket", "pixelgrade")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.disabled", false)
	v.SetDefault("database.dsn", "")
	v.SetDefault("export.archive_label", batch.DefaultArchiveName)
	v.SetDefault("export.url_expiry", 24*time.Hour)
	v.SetDefault("webhook.timeout", 10*time.Second)
	v.SetDefault("webhook.max_attempts", 3)
	v.SetDefault("webhook.initial_backoff", time.Second)
	v.SetDefault("webhook.max_backoff", 10*time.Second)
	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.capacity", 200)
	v.SetDefault("rate_limit.window", time.Minute)
	v.SetDefault("rate_limit.subject_header", "X-User-ID")
	v.SetDefault("tracing.service_name", "pixelgrade")
	v.SetDefault("tracing.exporter", "none")
	v.SetDefault("tracing.otlp_insecure", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// NewViper returns a viper instance carrying the defaults and environment
// bindings. Callers may bind flags into it before calling FromViper.
func NewViper() (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	for key, name := range env {
		if err := v.BindEnv(key, name); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", name, err)
		}
	}
	return v, nil
}

func Load() (Config, error) {
	v, err := NewViper()
	if err != nil {
		return Config{}, err
	}
	return FromViper(v)
}

func FromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		API: APIConfig{
			Addr:           v.GetString("api.addr"),
			MaxUploadBytes: v.GetInt64("api.max_upload_bytes"),
			PreviewMaxEdge: v.GetInt("api.preview_max_edge"),
		},
		Queue: QueueConfig{
			RedisAddr:     v.GetString("queue.redis_addr"),
			RedisPassword: v.GetString("queue.redis_password"),
			RedisDB:       v.GetInt("queue.redis_db"),
			Name:          v.GetString("queue.name"),
			TaskTimeout:   v.GetDuration("queue.task_timeout"),
		},
		Worker: WorkerConfig{
			MetricsAddr:     v.GetString("worker.metrics_addr"),
			ShutdownTimeout: v.GetDuration("worker.shutdown_timeout"),
		},
		Storage: StorageConfig{
			Endpoint:  v.GetString("storage.endpoint"),
			AccessKey: v.GetString("storage.access_key"),
			SecretKey: v.GetString("storage.secret_key"),
			Bucket:    v.GetString("storage.bucket"),
			UseSSL:    v.GetBool("storage.use_ssl"),
			Disabled:  v.GetBool("storage.disabled"),
		},
		Database: DatabaseConfig{
			DSN: v.GetString("database.dsn"),
		},
		Export: ExportConfig{
			ArchiveLabel: v.GetString("export.archive_label"),
			URLExpiry:    v.GetDuration("export.url_expiry"),
		},
		Webhook: WebhookConfig{
			SigningSecret:  v.GetString("webhook.signing_secret"),
			Timeout:        v.GetDuration("webhook.timeout"),
			MaxAttempts:    v.GetInt("webhook.max_attempts"),
			InitialBackoff: v.GetDuration("webhook.initial_backoff"),
			MaxBackoff:     v.GetDuration("webhook.max_backoff"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       v.GetBool("rate_limit.enabled"),
			Capacity:      v.GetInt("rate_limit.capacity"),
			Window:        v.GetDuration("rate_limit.window"),
			SubjectHeader: v.GetString("rate_limit.subject_header"),
		},
		Tracing: TracingConfig{
			ServiceName:  v.GetString("tracing.service_name"),
			Exporter:     v.GetString("tracing.exporter"),
			OTLPEndpoint: v.GetString("tracing.otlp_endpoint"),
			OTLPInsecure: v.GetBool("tracing.otlp_insecure"),
		},
		Log: logging.Config{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			File:       v.GetString("log.file"),
			MaxSizeMB:  v.GetInt("log.max_size_mb"),
			MaxBackups: v.GetInt("log.max_backups"),
			MaxAgeDays: v.GetInt("log.max_age_days"),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Queue.Name) == "" {
		return fmt.Errorf("queue name is required")
	}
	if c.RateLimit.Enabled && (c.RateLimit.Capacity <= 0 || c.RateLimit.Window <= 0) {
		return fmt.Errorf("rate limit capacity and window must be positive")
	}
	if !c.Storage.Disabled && strings.TrimSpace(c.Storage.Bucket) == "" {
		return fmt.Errorf("storage bucket is required")
	}
	if c.API.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive")
	}
	return nil
}
