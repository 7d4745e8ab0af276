package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load: %v", err)
		}

		if cfg.Storage.Provider != "localfs" {
			t.Errorf("provider = %q, want localfs", cfg.Storage.Provider)
		}
		if cfg.Pipeline.PendingPrefix != "watch/" {
			t.Errorf("pending prefix = %q, want watch/", cfg.Pipeline.PendingPrefix)
		}
		if cfg.Pipeline.RenderedPrefix != "rendered/" {
			t.Errorf("rendered prefix = %q, want rendered/", cfg.Pipeline.RenderedPrefix)
		}
		if cfg.Pipeline.PollInterval != 5*time.Second {
			t.Errorf("poll interval = %v, want 5s", cfg.Pipeline.PollInterval)
		}
		if cfg.Pipeline.ReapInterval != time.Minute {
			t.Errorf("reap interval = %v, want 60s", cfg.Pipeline.ReapInterval)
		}
		if cfg.Pipeline.Retention != 15*time.Minute {
			t.Errorf("retention = %v, want 15m", cfg.Pipeline.Retention)
		}
		if cfg.Pipeline.SignedURLTTL != 15*time.Minute {
			t.Errorf("signed URL TTL = %v, want 15m", cfg.Pipeline.SignedURLTTL)
		}
		if cfg.Pipeline.DefaultBitrate != "500k" {
			t.Errorf("default bitrate = %q, want 500k", cfg.Pipeline.DefaultBitrate)
		}
		if cfg.Resolver.Retries != 2 {
			t.Errorf("resolver retries = %d, want 2", cfg.Resolver.Retries)
		}
		if cfg.Pipeline.Timezone != "UTC" {
			t.Errorf("timezone = %q, want UTC", cfg.Pipeline.Timezone)
		}
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("PENDING_PREFIX", "incoming/")
		t.Setenv("POLL_INTERVAL", "10s")
		t.Setenv("RESOLVER_RETRIES", "4")
		t.Setenv("REFERENCE_TIMEZONE", "America/Chicago")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.Pipeline.PendingPrefix != "incoming/" {
			t.Errorf("pending prefix = %q, want incoming/", cfg.Pipeline.PendingPrefix)
		}
		if cfg.Pipeline.PollInterval != 10*time.Second {
			t.Errorf("poll interval = %v, want 10s", cfg.Pipeline.PollInterval)
		}
		if cfg.Resolver.Retries != 4 {
			t.Errorf("resolver retries = %d, want 4", cfg.Resolver.Retries)
		}
		loc, err := cfg.Location()
		if err != nil {
			t.Fatalf("Location: %v", err)
		}
		if loc.String() != "America/Chicago" {
			t.Errorf("location = %v, want America/Chicago", loc)
		}
	})

	t.Run("remote provider requires a bucket", func(t *testing.T) {
		t.Setenv("STORAGE_PROVIDER", "s3")
		t.Setenv("STORAGE_BUCKET", "")

		if _, err := Load(); err == nil {
			t.Fatal("expected validation error for s3 without bucket")
		}
	})

	t.Run("unknown provider is rejected", func(t *testing.T) {
		t.Setenv("STORAGE_PROVIDER", "ftp")
		t.Setenv("STORAGE_BUCKET", "b")

		if _, err := Load(); err == nil {
			t.Fatal("expected validation error for unknown provider")
		}
	})

	t.Run("invalid timezone is rejected", func(t *testing.T) {
		t.Setenv("REFERENCE_TIMEZONE", "Mars/Olympus_Mons")

		if _, err := Load(); err == nil {
			t.Fatal("expected error for invalid timezone")
		}
	})

	t.Run("secrets load from _FILE indirection", func(t *testing.T) {
		secret := filepath.Join(t.TempDir(), "redis_password")
		if err := os.WriteFile(secret, []byte("s3cr3t\n"), 0o600); err != nil {
			t.Fatalf("writing secret file: %v", err)
		}
		t.Setenv("REDIS_PASSWORD_FILE", secret)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.Redis.Password != "s3cr3t" {
			t.Errorf("redis password = %q, want s3cr3t", cfg.Redis.Password)
		}
	})
}
