// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"errors"
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
}

// ServiceAuthConfig provides the shared secret used to sign service tokens
// for internal endpoints (scheduler trigger, insights).
type ServiceAuthConfig interface {
	GetServiceTokenSecret() string
}

// WhatsAppConfig provides settings for the WhatsApp Cloud API webhook.
type WhatsAppConfig interface {
	GetWhatsAppVerifyToken() string
	GetWhatsAppAppSecret() string
	GetPhoneDefaultRegion() string
}

// DispatchConfig provides the outbound automation endpoints.
type DispatchConfig interface {
	GetAIDispatchURL() string
	GetFollowupDispatchURL() string
	GetDispatchTimeout() time.Duration
}

// FollowupConfig provides settings for the follow-up scheduler.
type FollowupConfig interface {
	GetFollowupBatchSize() int
	GetFollowupDispatchInterval() time.Duration
	GetBusinessLocation() *time.Location
}

// SchedulerConfig provides settings for the asynq-based periodic trigger.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetFollowupCron() string
}

// MinIOConfig provides settings for the raw webhook archive.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketWebhookArchive() string
	IsMinIOEnabled() bool
}

// EmailConfig provides SMTP settings for urgent lead alerts.
type EmailConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	GetAlertRecipients() []string
	IsEmailEnabled() bool
}

// GeminiConfig provides settings for the insights analysis model.
type GeminiConfig interface {
	GetGeminiAPIKey() string
	GetGeminiModel() string
	IsGeminiEnabled() bool
}

// ClassifierConfig provides the optional keyword rules override file.
type ClassifierConfig interface {
	GetClassifierRulesFile() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                       string
	HTTPAddr                  string
	DatabaseURL               string
	CORSAllowAll              bool
	CORSOrigins               []string
	ServiceTokenSecret        string
	WhatsAppVerifyToken       string
	WhatsAppAppSecret         string
	PhoneDefaultRegion        string
	AIDispatchURL             string
	FollowupDispatchURL       string
	DispatchTimeout           time.Duration
	FollowupBatchSize         int
	FollowupDispatchInterval  time.Duration
	BusinessTimezone          string
	BusinessLocation          *time.Location
	RedisURL                  string
	RedisTLSInsecure          bool
	AsynqQueueName            string
	AsynqConcurrency          int
	FollowupCron              string
	MinIOEndpoint             string
	MinIOAccessKey            string
	MinIOSecretKey            string
	MinIOUseSSL               bool
	MinioBucketWebhookArchive string
	SMTPHost                  string
	SMTPPort                  int
	SMTPUsername              string
	SMTPPassword              string
	EmailFromName             string
	EmailFromAddress          string
	AlertRecipients           []string
	GeminiAPIKey              string
	GeminiModel               string
	ClassifierRulesFile       string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }

// ServiceAuthConfig implementation
func (c *Config) GetServiceTokenSecret() string { return c.ServiceTokenSecret }

// WhatsAppConfig implementation
func (c *Config) GetWhatsAppVerifyToken() string { return c.WhatsAppVerifyToken }
func (c *Config) GetWhatsAppAppSecret() string   { return c.WhatsAppAppSecret }
func (c *Config) GetPhoneDefaultRegion() string  { return c.PhoneDefaultRegion }

// DispatchConfig implementation
func (c *Config) GetAIDispatchURL() string          { return c.AIDispatchURL }
func (c *Config) GetFollowupDispatchURL() string    { return c.FollowupDispatchURL }
func (c *Config) GetDispatchTimeout() time.Duration { return c.DispatchTimeout }

// FollowupConfig implementation
func (c *Config) GetFollowupBatchSize() int                  { return c.FollowupBatchSize }
func (c *Config) GetFollowupDispatchInterval() time.Duration { return c.FollowupDispatchInterval }
func (c *Config) GetBusinessLocation() *time.Location        { return c.BusinessLocation }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }
func (c *Config) GetFollowupCron() string   { return c.FollowupCron }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string  { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool      { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketWebhookArchive() string {
	return c.MinioBucketWebhookArchive
}
func (c *Config) IsMinIOEnabled() bool { return c.MinIOEndpoint != "" }

// EmailConfig implementation
func (c *Config) GetSMTPHost() string          { return c.SMTPHost }
func (c *Config) GetSMTPPort() int             { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string      { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string      { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string     { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string  { return c.EmailFromAddress }
func (c *Config) GetAlertRecipients() []string { return c.AlertRecipients }
func (c *Config) IsEmailEnabled() bool {
	return c.SMTPHost != "" && len(c.AlertRecipients) > 0
}

// GeminiConfig implementation
func (c *Config) GetGeminiAPIKey() string { return c.GeminiAPIKey }
func (c *Config) GetGeminiModel() string  { return c.GeminiModel }
func (c *Config) IsGeminiEnabled() bool   { return c.GeminiAPIKey != "" }

// ClassifierConfig implementation
func (c *Config) GetClassifierRulesFile() string { return c.ClassifierRulesFile }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "*"))
	env := &envParser{}

	cfg := &Config{
		Env:                       getEnv("APP_ENV", "development"),
		HTTPAddr:                  getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:               getEnv("DATABASE_URL", ""),
		CORSAllowAll:              containsWildcard(corsOrigins),
		CORSOrigins:               corsOrigins,
		ServiceTokenSecret:        getEnv("SERVICE_TOKEN_SECRET", ""),
		WhatsAppVerifyToken:       getEnv("WHATSAPP_VERIFY_TOKEN", ""),
		WhatsAppAppSecret:         getEnv("WHATSAPP_APP_SECRET", ""),
		PhoneDefaultRegion:        strings.ToUpper(getEnv("PHONE_DEFAULT_REGION", "CR")),
		AIDispatchURL:             getEnv("AI_DISPATCH_URL", ""),
		FollowupDispatchURL:       getEnv("FOLLOWUP_DISPATCH_URL", ""),
		DispatchTimeout:           env.duration("DISPATCH_TIMEOUT", "15s"),
		FollowupBatchSize:         env.integer("FOLLOWUP_BATCH_SIZE", "10"),
		FollowupDispatchInterval:  env.duration("FOLLOWUP_DISPATCH_INTERVAL", "1s"),
		BusinessTimezone:          getEnv("BUSINESS_TIMEZONE", "America/Costa_Rica"),
		RedisURL:                  getEnv("REDIS_URL", ""),
		RedisTLSInsecure:          strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:            getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:          env.integer("ASYNQ_CONCURRENCY", "2"),
		FollowupCron:              getEnv("FOLLOWUP_CRON", "*/15 * * * *"),
		MinIOEndpoint:             getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:            getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:            getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:               strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketWebhookArchive: getEnv("MINIO_BUCKET_WEBHOOK_ARCHIVE", "whatsapp-webhooks"),
		SMTPHost:                  getEnv("SMTP_HOST", ""),
		SMTPPort:                  env.integer("SMTP_PORT", "587"),
		SMTPUsername:              getEnv("SMTP_USERNAME", ""),
		SMTPPassword:              getEnv("SMTP_PASSWORD", ""),
		EmailFromName:             getEnv("EMAIL_FROM_NAME", "Exterminador"),
		EmailFromAddress:          getEnv("EMAIL_FROM_ADDRESS", ""),
		AlertRecipients:           splitCSV(getEnv("ALERT_RECIPIENTS", "")),
		GeminiAPIKey:              getEnv("GEMINI_API_KEY", ""),
		GeminiModel:               getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		ClassifierRulesFile:       getEnv("CLASSIFIER_RULES_FILE", ""),
	}
	if err := env.err(); err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.BusinessTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid BUSINESS_TIMEZONE %q: %w", cfg.BusinessTimezone, err)
	}
	cfg.BusinessLocation = loc

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.FollowupBatchSize < 1 {
		return fmt.Errorf("FOLLOWUP_BATCH_SIZE must be a positive integer")
	}
	if c.DispatchTimeout <= 0 {
		return fmt.Errorf("DISPATCH_TIMEOUT must be a positive duration")
	}
	if c.FollowupDispatchInterval < 0 {
		return fmt.Errorf("FOLLOWUP_DISPATCH_INTERVAL cannot be negative")
	}
	if c.IsEmailEnabled() && c.EmailFromAddress == "" {
		return fmt.Errorf("EMAIL_FROM_ADDRESS is required when SMTP_HOST and ALERT_RECIPIENTS are set")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

// envParser reads typed variables and collects every malformed value, so a
// typo fails Load instead of silently becoming zero.
type envParser struct {
	errs []error
}

func (p *envParser) duration(key, fallback string) time.Duration {
	value := strings.TrimSpace(getEnv(key, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s %q: %w", key, value, err))
		return 0
	}
	return d
}

func (p *envParser) integer(key, fallback string) int {
	value := strings.TrimSpace(getEnv(key, fallback))
	result, err := strconv.Atoi(value)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s %q: %w", key, value, err))
		return 0
	}
	return result
}

func (p *envParser) err() error {
	return errors.Join(p.errs...)
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
