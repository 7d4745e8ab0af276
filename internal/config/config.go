package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	Service  ServiceConfig
	Storage  StorageConfig
	Pipeline PipelineConfig
	Resolver ResolverConfig
	Redis    RedisConfig
	Postgres PostgresConfig
}

type ServiceConfig struct {
	LogLevel  string
	LogFormat string
	OpsPort   string
}

type StorageConfig struct {
	Provider string `validate:"required,oneof=localfs s3 gcs"`
	Bucket   string `validate:"required_unless=Provider localfs"`

	LocalRoot string

	S3Endpoint        string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string

	GCSKeyFile string
}

type PipelineConfig struct {
	PendingPrefix  string `validate:"required"`
	RenderedPrefix string `validate:"required"`
	WorkDir        string `validate:"required"`

	PollInterval time.Duration `validate:"gt=0"`
	ReapInterval time.Duration `validate:"gt=0"`
	Retention    time.Duration `validate:"gt=0"`
	// ReapGrace extends Retention for artifacts whose uploadedTime metadata
	// is missing or unparseable and expiry falls back to native mtime.
	ReapGrace time.Duration

	DefaultBitrate string        `validate:"required"`
	RenderDuration time.Duration `validate:"gt=0"`
	RenderTimeout  time.Duration `validate:"gt=0"`
	SignedURLTTL   time.Duration `validate:"gt=0"`

	// Timezone is the fixed reference timezone for uploadedTime stamps.
	Timezone string `validate:"required"`
}

type ResolverConfig struct {
	PageURL string
	// ExecPath points at the browser binary; empty lets chromedp search PATH.
	ExecPath string
	Retries  int `validate:"gte=0"`
	Timeout  time.Duration
	CacheTTL time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	URL string
}

func Load() (*Config, error) {
	readSecret("S3_SECRET_ACCESS_KEY")
	readSecret("REDIS_PASSWORD")
	readSecret("POSTGRES_URL")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()

	bind := map[string]string{
		"service.log_level":           "LOG_LEVEL",
		"service.log_format":          "LOG_FORMAT",
		"service.ops_port":            "OPS_PORT",
		"storage.provider":            "STORAGE_PROVIDER",
		"storage.bucket":              "STORAGE_BUCKET",
		"storage.local_root":          "STORAGE_LOCAL_ROOT",
		"storage.s3_endpoint":         "S3_ENDPOINT",
		"storage.s3_region":           "S3_REGION",
		"storage.s3_access_key_id":    "S3_ACCESS_KEY_ID",
		"storage.s3_secret":           "S3_SECRET_ACCESS_KEY",
		"storage.gcs_key_file":        "GCS_KEY_FILE",
		"pipeline.pending_prefix":     "PENDING_PREFIX",
		"pipeline.rendered_prefix":    "RENDERED_PREFIX",
		"pipeline.work_dir":           "WORK_DIR",
		"pipeline.poll_interval":      "POLL_INTERVAL",
		"pipeline.reap_interval":      "REAP_INTERVAL",
		"pipeline.retention":          "ARTIFACT_RETENTION",
		"pipeline.reap_grace":         "REAP_GRACE",
		"pipeline.default_bitrate":    "RENDER_BITRATE",
		"pipeline.render_duration":    "RENDER_DURATION",
		"pipeline.render_timeout":     "RENDER_TIMEOUT",
		"pipeline.signed_url_ttl":     "SIGNED_URL_TTL",
		"pipeline.timezone":           "REFERENCE_TIMEZONE",
		"resolver.page_url":           "RESOLVER_PAGE_URL",
		"resolver.exec_path":          "RESOLVER_BROWSER_PATH",
		"resolver.retries":            "RESOLVER_RETRIES",
		"resolver.timeout":            "RESOLVER_TIMEOUT",
		"resolver.cache_ttl":          "RESOLVER_CACHE_TTL",
		"redis.addr":                  "REDIS_ADDR",
		"redis.password":              "REDIS_PASSWORD",
		"redis.db":                    "REDIS_DB",
		"postgres.url":                "POSTGRES_URL",
	}
	for key, env := range bind {
		_ = v.BindEnv(key, env)
	}

	v.SetDefault("service.log_level", "info")
	v.SetDefault("service.log_format", "json")
	v.SetDefault("service.ops_port", "8090")
	v.SetDefault("storage.provider", "localfs")
	v.SetDefault("storage.local_root", "/data")
	v.SetDefault("pipeline.pending_prefix", "watch/")
	v.SetDefault("pipeline.rendered_prefix", "rendered/")
	v.SetDefault("pipeline.work_dir", os.TempDir())
	v.SetDefault("pipeline.poll_interval", "5s")
	v.SetDefault("pipeline.reap_interval", "60s")
	v.SetDefault("pipeline.retention", "15m")
	v.SetDefault("pipeline.reap_grace", "5m")
	v.SetDefault("pipeline.default_bitrate", "500k")
	v.SetDefault("pipeline.render_duration", "30s")
	v.SetDefault("pipeline.render_timeout", "5m")
	v.SetDefault("pipeline.signed_url_ttl", "15m")
	v.SetDefault("pipeline.timezone", "UTC")
	v.SetDefault("resolver.retries", 2)
	v.SetDefault("resolver.timeout", "90s")
	v.SetDefault("resolver.cache_ttl", "10m")
	v.SetDefault("redis.db", 0)

	// Config file is optional; env vars carry production settings.
	_ = v.ReadInConfig()

	cfg := &Config{
		Service: ServiceConfig{
			LogLevel:  v.GetString("service.log_level"),
			LogFormat: v.GetString("service.log_format"),
			OpsPort:   v.GetString("service.ops_port"),
		},
		Storage: StorageConfig{
			Provider:          v.GetString("storage.provider"),
			Bucket:            v.GetString("storage.bucket"),
			LocalRoot:         v.GetString("storage.local_root"),
			S3Endpoint:        v.GetString("storage.s3_endpoint"),
			S3Region:          v.GetString("storage.s3_region"),
			S3AccessKeyID:     v.GetString("storage.s3_access_key_id"),
			S3SecretAccessKey: v.GetString("storage.s3_secret"),
			GCSKeyFile:        v.GetString("storage.gcs_key_file"),
		},
		Pipeline: PipelineConfig{
			PendingPrefix:  v.GetString("pipeline.pending_prefix"),
			RenderedPrefix: v.GetString("pipeline.rendered_prefix"),
			WorkDir:        v.GetString("pipeline.work_dir"),
			PollInterval:   v.GetDuration("pipeline.poll_interval"),
			ReapInterval:   v.GetDuration("pipeline.reap_interval"),
			Retention:      v.GetDuration("pipeline.retention"),
			ReapGrace:      v.GetDuration("pipeline.reap_grace"),
			DefaultBitrate: v.GetString("pipeline.default_bitrate"),
			RenderDuration: v.GetDuration("pipeline.render_duration"),
			RenderTimeout:  v.GetDuration("pipeline.render_timeout"),
			SignedURLTTL:   v.GetDuration("pipeline.signed_url_ttl"),
			Timezone:       v.GetString("pipeline.timezone"),
		},
		Resolver: ResolverConfig{
			PageURL:  v.GetString("resolver.page_url"),
			ExecPath: v.GetString("resolver.exec_path"),
			Retries:  v.GetInt("resolver.retries"),
			Timeout:  v.GetDuration("resolver.timeout"),
			CacheTTL: v.GetDuration("resolver.cache_ttl"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Postgres: PostgresConfig{
			URL: v.GetString("postgres.url"),
		},
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Location resolves the reference timezone used for uploadedTime stamps.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Pipeline.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid reference timezone %q: %w", c.Pipeline.Timezone, err)
	}
	return loc, nil
}
