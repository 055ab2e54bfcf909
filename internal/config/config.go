package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	DatabaseURL   string

	// Buildium remote API
	BuildiumBaseURL          string
	BuildiumClientID         string
	BuildiumClientSecret     string
	BuildiumRequestTimeout   time.Duration
	BuildiumRetryMaxAttempts int
	BuildiumRetryBaseDelay   time.Duration

	// Webhook verification
	WebhookSecret           string
	WebhookRequireSignature bool
	WebhookTimestampWindow  time.Duration

	// Webhook processing
	WebhookMaxRetries    int
	WebhookBackoffBaseMS int

	// Redelivery queue (scheduled retries for failed events)
	RedeliveryQueueURL     string
	RedeliveryPollInterval time.Duration
	RedeliveryBatchSize    int

	AdminJWTSecret string

	// HTTP surface
	CORSAllowedOrigins []string
	WebhookRateLimit   float64
	WebhookRateBurst   int

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// PagerDuty alerting
	PagerDutyRoutingKey string
	PagerDutyEventsURL  string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		BuildiumBaseURL:          getEnv("BUILDIUM_BASE_URL", "https://api.buildium.com"),
		BuildiumClientID:         getEnv("BUILDIUM_CLIENT_ID", ""),
		BuildiumClientSecret:     getEnv("BUILDIUM_CLIENT_SECRET", ""),
		BuildiumRequestTimeout:   getEnvAsDuration("BUILDIUM_REQUEST_TIMEOUT", 15*time.Second),
		BuildiumRetryMaxAttempts: getEnvAsInt("BUILDIUM_RETRY_MAX_ATTEMPTS", 3),
		BuildiumRetryBaseDelay:   getEnvAsDuration("BUILDIUM_RETRY_BASE_DELAY", 500*time.Millisecond),

		WebhookSecret:           getEnv("BUILDIUM_WEBHOOK_SECRET", ""),
		WebhookRequireSignature: getEnvAsBool("WEBHOOK_REQUIRE_SIGNATURE", false),
		WebhookTimestampWindow:  getEnvAsDuration("WEBHOOK_TIMESTAMP_WINDOW", 5*time.Minute),

		WebhookMaxRetries:    getEnvAsInt("WEBHOOK_MAX_RETRIES", 3),
		WebhookBackoffBaseMS: getEnvAsInt("WEBHOOK_BACKOFF_BASE_MS", 200),

		RedeliveryQueueURL:     getEnv("REDELIVERY_QUEUE_URL", ""),
		RedeliveryPollInterval: getEnvAsDuration("REDELIVERY_POLL_INTERVAL", 30*time.Second),
		RedeliveryBatchSize:    getEnvAsInt("REDELIVERY_BATCH_SIZE", 10),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		WebhookRateLimit:   getEnvAsFloat("WEBHOOK_RATE_LIMIT", 10),
		WebhookRateBurst:   getEnvAsInt("WEBHOOK_RATE_BURST", 20),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		PagerDutyRoutingKey: getEnv("PAGERDUTY_ROUTING_KEY", ""),
		PagerDutyEventsURL:  getEnv("PAGERDUTY_EVENTS_URL", "https://events.pagerduty.com/v2/enqueue"),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsFloat retrieves an environment variable as a float or returns a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated environment variable, dropping
// empty entries.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
