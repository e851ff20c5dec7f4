// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
	GetTriggerKey() string
	GetWebhookRateLimitRPS() float64
	GetWebhookRateLimitBurst() int
}

// CRMConfig provides settings for the CRM platform API client.
type CRMConfig interface {
	GetCRMBaseURL() string
	GetCRMAPIVersion() string
	GetCRMRateLimitRPS() float64
	GetCRMRateLimitBurst() int
}

// ReviewSweepConfig provides settings for the scheduled review sweep.
type ReviewSweepConfig interface {
	GetReviewSweepBatchSize() int
	GetReviewSweepTimeout() time.Duration
	GetReviewSweepInterval() time.Duration
	GetDefaultReviewURL() string
}

// PaymentsConfig provides settings for payment-processor verification.
type PaymentsConfig interface {
	GetProcessorBaseURL() string
	GetSecretsKey() []byte
}

// SchedulerConfig provides settings for the asynq scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// AlertEmailConfig provides settings for operator alert emails.
type AlertEmailConfig interface {
	GetAlertEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetAlertFromName() string
	GetAlertFromAddress() string
	GetAlertToAddress() string
}

// FieldMapConfig provides the optional field map override file path.
type FieldMapConfig interface {
	GetFieldMapPath() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                   string
	HTTPAddr              string
	DatabaseURL           string
	CORSAllowAll          bool
	CORSOrigins           []string
	CORSAllowCreds        bool
	TriggerKey            string
	WebhookRateLimitRPS   float64
	WebhookRateLimitBurst int
	CRMBaseURL            string
	CRMAPIVersion         string
	CRMRateLimitRPS       float64
	CRMRateLimitBurst     int
	ReviewSweepBatchSize  int
	ReviewSweepTimeout    time.Duration
	ReviewSweepInterval   time.Duration
	DefaultReviewURL      string
	ProcessorBaseURL      string
	SecretsKey            []byte
	RedisURL              string
	RedisTLSInsecure      bool
	AsynqQueueName        string
	AsynqConcurrency      int
	AlertEmailEnabled     bool
	SMTPHost              string
	SMTPPort              int
	SMTPUsername          string
	SMTPPassword          string
	AlertFromName         string
	AlertFromAddress      string
	AlertToAddress        string
	FieldMapPath          string
}

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string              { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool            { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string         { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool          { return c.CORSAllowCreds }
func (c *Config) GetTriggerKey() string            { return c.TriggerKey }
func (c *Config) GetWebhookRateLimitRPS() float64  { return c.WebhookRateLimitRPS }
func (c *Config) GetWebhookRateLimitBurst() int    { return c.WebhookRateLimitBurst }

// CRMConfig implementation
func (c *Config) GetCRMBaseURL() string        { return c.CRMBaseURL }
func (c *Config) GetCRMAPIVersion() string     { return c.CRMAPIVersion }
func (c *Config) GetCRMRateLimitRPS() float64  { return c.CRMRateLimitRPS }
func (c *Config) GetCRMRateLimitBurst() int    { return c.CRMRateLimitBurst }

// ReviewSweepConfig implementation
func (c *Config) GetReviewSweepBatchSize() int           { return c.ReviewSweepBatchSize }
func (c *Config) GetReviewSweepTimeout() time.Duration   { return c.ReviewSweepTimeout }
func (c *Config) GetReviewSweepInterval() time.Duration  { return c.ReviewSweepInterval }
func (c *Config) GetDefaultReviewURL() string            { return c.DefaultReviewURL }

// PaymentsConfig implementation
func (c *Config) GetProcessorBaseURL() string { return c.ProcessorBaseURL }
func (c *Config) GetSecretsKey() []byte       { return c.SecretsKey }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string      { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// AlertEmailConfig implementation
func (c *Config) GetAlertEmailEnabled() bool  { return c.AlertEmailEnabled }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetAlertFromName() string    { return c.AlertFromName }
func (c *Config) GetAlertFromAddress() string { return c.AlertFromAddress }
func (c *Config) GetAlertToAddress() string   { return c.AlertToAddress }

// FieldMapConfig implementation
func (c *Config) GetFieldMapPath() string { return c.FieldMapPath }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	secretsKey, err := decodeSecretsKey(getEnv("SECRETS_KEY", ""))
	if err != nil {
		return nil, err
	}

	alertEnabled := strings.EqualFold(getEnv("ALERT_EMAIL_ENABLED", "false"), "true")

	cfg := &Config{
		Env:                   getEnv("APP_ENV", "development"),
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		CORSAllowAll:          corsAllowAll,
		CORSOrigins:           corsOrigins,
		CORSAllowCreds:        strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		TriggerKey:            getEnv("TRIGGER_KEY", ""),
		WebhookRateLimitRPS:   mustFloat(getEnv("WEBHOOK_RATE_LIMIT_RPS", "20")),
		WebhookRateLimitBurst: mustInt(getEnv("WEBHOOK_RATE_LIMIT_BURST", "40")),
		CRMBaseURL:            getEnv("CRM_BASE_URL", "https://services.leadconnectorhq.com"),
		CRMAPIVersion:         getEnv("CRM_API_VERSION", "2021-07-28"),
		CRMRateLimitRPS:       mustFloat(getEnv("CRM_RATE_LIMIT_RPS", "10")),
		CRMRateLimitBurst:     mustInt(getEnv("CRM_RATE_LIMIT_BURST", "10")),
		ReviewSweepBatchSize:  mustInt(getEnv("REVIEW_SWEEP_BATCH_SIZE", "5")),
		ReviewSweepTimeout:    mustDuration(getEnv("REVIEW_SWEEP_TIMEOUT", "5m")),
		ReviewSweepInterval:   mustDuration(getEnv("REVIEW_SWEEP_INTERVAL", "15m")),
		DefaultReviewURL:      getEnv("DEFAULT_REVIEW_URL", "https://g.page/r/review-us"),
		ProcessorBaseURL:      getEnv("PROCESSOR_BASE_URL", "https://api.stripe.com"),
		SecretsKey:            secretsKey,
		RedisURL:              getEnv("REDIS_URL", ""),
		RedisTLSInsecure:      strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:        getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:      mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		AlertEmailEnabled:     alertEnabled,
		SMTPHost:              getEnv("SMTP_HOST", ""),
		SMTPPort:              mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:          getEnv("SMTP_USERNAME", ""),
		SMTPPassword:          getEnv("SMTP_PASSWORD", ""),
		AlertFromName:         getEnv("ALERT_FROM_NAME", "JobFlow"),
		AlertFromAddress:      getEnv("ALERT_FROM_ADDRESS", ""),
		AlertToAddress:        getEnv("ALERT_TO_ADDRESS", ""),
		FieldMapPath:          getEnv("FIELD_MAP_PATH", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.ReviewSweepBatchSize < 1 {
		return nil, fmt.Errorf("REVIEW_SWEEP_BATCH_SIZE must be at least 1")
	}
	if alertEnabled && (cfg.SMTPHost == "" || cfg.AlertFromAddress == "" || cfg.AlertToAddress == "") {
		return nil, fmt.Errorf("SMTP_HOST, ALERT_FROM_ADDRESS and ALERT_TO_ADDRESS are required when ALERT_EMAIL_ENABLED is true")
	}

	return cfg, nil
}

// decodeSecretsKey interprets the value as a hex-encoded 32-byte AES key.
// Empty input is allowed; payment verification is disabled without it.
func decodeSecretsKey(value string) ([]byte, error) {
	if value == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("SECRETS_KEY is not valid hex")
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("SECRETS_KEY must be 64 hex characters (32 bytes)")
	}
	return key, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
