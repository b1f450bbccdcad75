package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("DISPATCH_MAX_RETRIES", "")
	t.Setenv("DISPATCH_RETRY_DELAY_MS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Dispatcher.MaxRetries != 3 {
		t.Fatalf("expected 3 retries by default, got %d", cfg.Dispatcher.MaxRetries)
	}
	if got := cfg.Dispatcher.RetryDelay(); got != 2*time.Second {
		t.Fatalf("unexpected retry delay %s", got)
	}
	if cfg.App.Addr() != cfg.App.Host+":"+cfg.App.Port {
		t.Fatalf("unexpected addr %s", cfg.App.Addr())
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DISPATCH_WORKERS", "8")
	t.Setenv("DISPATCH_RATE_PER_SECOND", "2.5")
	t.Setenv("REDIS_UNREAD_CACHE_TTL_SECONDS", "60")
	t.Setenv("POSTGRES_RUN_MIGRATIONS", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Dispatcher.Workers != 8 {
		t.Fatalf("expected 8 workers, got %d", cfg.Dispatcher.Workers)
	}
	if cfg.Dispatcher.RatePerSecond != 2.5 {
		t.Fatalf("expected rate 2.5, got %v", cfg.Dispatcher.RatePerSecond)
	}
	if cfg.Redis.UnreadCacheTTL() != time.Minute {
		t.Fatalf("unexpected ttl %s", cfg.Redis.UnreadCacheTTL())
	}
	if cfg.Postgres.RunMigrations {
		t.Fatal("expected migrations disabled")
	}
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	cases := map[string]string{
		"REDIS_DB":                 "zero",
		"DISPATCH_RATE_PER_SECOND": "fast",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", key, value)
			}
		})
	}
}

func TestGetEnvAsIntFallsBack(t *testing.T) {
	t.Setenv("SOME_INT", "not-a-number")
	if got := getEnvAsInt("SOME_INT", 7); got != 7 {
		t.Fatalf("expected fallback 7, got %d", got)
	}
}
