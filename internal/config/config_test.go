package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("BUILDIUM_WEBHOOK_SECRET", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.WebhookSecret != "" {
		t.Fatalf("expected default webhook secret empty, got %s", cfg.WebhookSecret)
	}
	if cfg.WebhookRequireSignature {
		t.Fatalf("expected signature requirement disabled by default")
	}
	if cfg.WebhookTimestampWindow != 5*time.Minute {
		t.Fatalf("expected default timestamp window, got %s", cfg.WebhookTimestampWindow)
	}
	if cfg.WebhookMaxRetries != 3 {
		t.Fatalf("expected default max retries, got %d", cfg.WebhookMaxRetries)
	}
	if cfg.WebhookBackoffBaseMS != 200 {
		t.Fatalf("expected default backoff base, got %d", cfg.WebhookBackoffBaseMS)
	}
	if cfg.BuildiumBaseURL != "https://api.buildium.com" {
		t.Fatalf("expected default buildium base url, got %s", cfg.BuildiumBaseURL)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Fatalf("expected default cors origins, got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.WebhookRateLimit != 10 || cfg.WebhookRateBurst != 20 {
		t.Fatalf("expected default rate limit, got %v/%d", cfg.WebhookRateLimit, cfg.WebhookRateBurst)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("BUILDIUM_WEBHOOK_SECRET", "whsec_test")
	t.Setenv("WEBHOOK_REQUIRE_SIGNATURE", "true")
	t.Setenv("WEBHOOK_TIMESTAMP_WINDOW", "2m")
	t.Setenv("WEBHOOK_MAX_RETRIES", "5")
	t.Setenv("REDELIVERY_QUEUE_URL", "https://sqs.us-east-1.amazonaws.com/123/retries")
	t.Setenv("REDELIVERY_POLL_INTERVAL", "10s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, https://ops.example.com")
	t.Setenv("WEBHOOK_RATE_LIMIT", "2.5")
	t.Setenv("WEBHOOK_RATE_BURST", "5")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Fatalf("expected env override, got %s", cfg.Env)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.WebhookSecret != "whsec_test" {
		t.Fatalf("expected webhook secret override, got %s", cfg.WebhookSecret)
	}
	if !cfg.WebhookRequireSignature {
		t.Fatalf("expected signature requirement enabled")
	}
	if cfg.WebhookTimestampWindow != 2*time.Minute {
		t.Fatalf("expected timestamp window override, got %s", cfg.WebhookTimestampWindow)
	}
	if cfg.WebhookMaxRetries != 5 {
		t.Fatalf("expected max retries override, got %d", cfg.WebhookMaxRetries)
	}
	if cfg.RedeliveryQueueURL != "https://sqs.us-east-1.amazonaws.com/123/retries" {
		t.Fatalf("expected queue url override, got %s", cfg.RedeliveryQueueURL)
	}
	if cfg.RedeliveryPollInterval != 10*time.Second {
		t.Fatalf("expected poll interval override, got %s", cfg.RedeliveryPollInterval)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://ops.example.com" {
		t.Fatalf("expected cors origins override, got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.WebhookRateLimit != 2.5 || cfg.WebhookRateBurst != 5 {
		t.Fatalf("expected rate limit override, got %v/%d", cfg.WebhookRateLimit, cfg.WebhookRateBurst)
	}
}
