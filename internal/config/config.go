package config

import (
	"os"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
)

type Config struct {
	Handler  HandlerConfig
	Storage  StorageConfig
	Queue    QueueConfig
	Database DatabaseConfig
	Trace    TraceConfig
}

type HandlerConfig struct {
	Addr           string
	MetricsAddr    string
	Secret         string
	CacheControl   string
	TimingLog      bool
	RequestTimeout time.Duration
}

type StorageConfig struct {
	Endpoint          string
	AccessKey         string
	SecretKey         string
	OriginalBucket    string
	TransformedBucket string
	UseSSL            bool
}

type QueueConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Name          string
	Concurrency   int
	Mode          string // "queue" or "inline"
	MetricsAddr   string
}

// Enabled reports whether queued write-back (and redis write dedupe) is
// configured. With no redis address the handler falls back to inline
// background writes.
func (q QueueConfig) Enabled() bool {
	return q.RedisAddr != ""
}

func (q QueueConfig) RedisClientOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     q.RedisAddr,
		Password: q.RedisPassword,
		DB:       q.RedisDB,
	}
}

type DatabaseConfig struct {
	DSN string
}

type TraceConfig struct {
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
}

func Load() Config {
	return Config{
		Handler: HandlerConfig{
			Addr:           env("IMGEDGE_ADDR", ":8080"),
			MetricsAddr:    env("IMGEDGE_METRICS_ADDR", ":9090"),
			Secret:         env("IMGEDGE_ORIGIN_SECRET", ""),
			CacheControl:   env("IMGEDGE_CACHE_CONTROL", "max-age=31536000"),
			TimingLog:      envBool("IMGEDGE_TIMING_LOG", false),
			RequestTimeout: time.Duration(envInt("IMGEDGE_REQUEST_TIMEOUT_MS", 25_000)) * time.Millisecond,
		},
		Storage: StorageConfig{
			Endpoint:          env("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey:         env("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey:         env("MINIO_SECRET_KEY", "minioadmin"),
			OriginalBucket:    env("IMGEDGE_ORIGINAL_BUCKET", "imgedge-originals"),
			TransformedBucket: env("IMGEDGE_TRANSFORMED_BUCKET", ""),
			UseSSL:            envBool("MINIO_USE_SSL", false),
		},
		Queue: QueueConfig{
			RedisAddr:     env("REDIS_ADDR", ""),
			RedisPassword: env("REDIS_PASSWORD", ""),
			RedisDB:       envInt("REDIS_DB", 0),
			Name:          env("IMGEDGE_QUEUE", "writeback"),
			Concurrency:   envInt("IMGEDGE_QUEUE_CONCURRENCY", 4),
			Mode:          env("IMGEDGE_WRITEBACK_MODE", "queue"),
			MetricsAddr:   env("IMGEDGE_WORKER_METRICS_ADDR", ":9091"),
		},
		Database: DatabaseConfig{
			DSN: env("POSTGRES_DSN", ""),
		},
		Trace: TraceConfig{
			Exporter:     env("TRACE_EXPORTER", "none"),
			OTLPEndpoint: env("TRACE_OTLP_ENDPOINT", ""),
			OTLPInsecure: envBool("TRACE_OTLP_INSECURE", false),
		},
	}
}

func env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
