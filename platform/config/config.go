// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
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

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides Redis and asynq settings shared by the API and the worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// OutreachConfig provides the pacing and batching knobs of the outreach engine.
type OutreachConfig interface {
	GetMessagesPerBatch() int
	GetDelayBetweenMessages() time.Duration
	GetDelayBetweenBatches() time.Duration
	GetMaxRetryAttempts() int
	GetSequenceBatchLimit() int
	GetSequenceConcurrency() int
	GetSequenceTickTimeout() time.Duration
	GetPhoneDefaultRegion() string
}

// TriggerConfig provides the periodic schedule of maintenance tasks.
type TriggerConfig interface {
	GetDecaySchedule() string
	GetSequenceSchedule() string
	GetSchedulerTimezone() string
	GetCampaignJobRetention() time.Duration
}

// WhatsAppConfig provides settings for the GOWA WhatsApp gateway.
type WhatsAppConfig interface {
	GetWhatsAppURL() string
	GetWhatsAppKey() string
	GetWhatsAppDeviceID() string
}

// EmailConfig provides settings for outbound email. Brevo takes precedence over SMTP.
type EmailConfig interface {
	GetBrevoAPIKey() string
	IsBrevoEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	IsSMTPEnabled() bool
}

// SMSConfig provides settings for the SMS provider.
type SMSConfig interface {
	GetSMSAPIURL() string
	GetSMSAccountSID() string
	GetSMSAuthToken() string
	GetSMSFromNumber() string
	IsSMSEnabled() bool
}

// SeedConfig provides the location of the template and sequence catalog.
type SeedConfig interface {
	GetSeedFile() string
	GetSeedWatch() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                  string
	HTTPAddr             string
	DatabaseURL          string
	JWTAccessSecret      string
	CORSAllowAll         bool
	CORSOrigins          []string
	CORSAllowCreds       bool
	RedisURL             string
	RedisTLSInsecure     bool
	AsynqQueueName       string
	AsynqConcurrency     int
	MessagesPerBatch     int
	DelayBetweenMessages time.Duration
	DelayBetweenBatches  time.Duration
	MaxRetryAttempts     int
	SequenceBatchLimit   int
	SequenceConcurrency  int
	SequenceTickTimeout  time.Duration
	PhoneDefaultRegion   string
	DecaySchedule        string
	SequenceSchedule     string
	SchedulerTimezone    string
	CampaignJobRetention time.Duration
	WhatsAppURL          string
	WhatsAppKey          string
	WhatsAppDeviceID     string
	BrevoAPIKey          string
	SMTPHost             string
	SMTPPort             int
	SMTPUsername         string
	SMTPPassword         string
	EmailFromName        string
	EmailFromAddress     string
	SMSAPIURL            string
	SMSAccountSID        string
	SMSAuthToken         string
	SMSFromNumber        string
	SeedFile             string
	SeedWatch            bool
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// OutreachConfig implementation
func (c *Config) GetMessagesPerBatch() int               { return c.MessagesPerBatch }
func (c *Config) GetDelayBetweenMessages() time.Duration { return c.DelayBetweenMessages }
func (c *Config) GetDelayBetweenBatches() time.Duration  { return c.DelayBetweenBatches }
func (c *Config) GetMaxRetryAttempts() int               { return c.MaxRetryAttempts }
func (c *Config) GetSequenceBatchLimit() int             { return c.SequenceBatchLimit }
func (c *Config) GetSequenceConcurrency() int            { return c.SequenceConcurrency }
func (c *Config) GetSequenceTickTimeout() time.Duration  { return c.SequenceTickTimeout }
func (c *Config) GetPhoneDefaultRegion() string          { return c.PhoneDefaultRegion }

// TriggerConfig implementation
func (c *Config) GetDecaySchedule() string               { return c.DecaySchedule }
func (c *Config) GetSequenceSchedule() string            { return c.SequenceSchedule }
func (c *Config) GetSchedulerTimezone() string           { return c.SchedulerTimezone }
func (c *Config) GetCampaignJobRetention() time.Duration { return c.CampaignJobRetention }

// WhatsAppConfig implementation
func (c *Config) GetWhatsAppURL() string      { return c.WhatsAppURL }
func (c *Config) GetWhatsAppKey() string      { return c.WhatsAppKey }
func (c *Config) GetWhatsAppDeviceID() string { return c.WhatsAppDeviceID }

// EmailConfig implementation
func (c *Config) GetBrevoAPIKey() string      { return c.BrevoAPIKey }
func (c *Config) IsBrevoEnabled() bool        { return c.BrevoAPIKey != "" }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) IsSMTPEnabled() bool         { return c.SMTPHost != "" }

// SMSConfig implementation
func (c *Config) GetSMSAPIURL() string     { return c.SMSAPIURL }
func (c *Config) GetSMSAccountSID() string { return c.SMSAccountSID }
func (c *Config) GetSMSAuthToken() string  { return c.SMSAuthToken }
func (c *Config) GetSMSFromNumber() string { return c.SMSFromNumber }
func (c *Config) IsSMSEnabled() bool       { return c.SMSAccountSID != "" && c.SMSAuthToken != "" }

// SeedConfig implementation
func (c *Config) GetSeedFile() string { return c.SeedFile }
func (c *Config) GetSeedWatch() bool  { return c.SeedWatch }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                  getEnv("APP_ENV", "development"),
		HTTPAddr:             getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		JWTAccessSecret:      getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:         corsAllowAll,
		CORSOrigins:          corsOrigins,
		CORSAllowCreds:       strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		RedisURL:             getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisTLSInsecure:     strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:       getEnv("ASYNQ_QUEUE", "outreach"),
		AsynqConcurrency:     mustInt(getEnv("ASYNQ_CONCURRENCY", "4")),
		MessagesPerBatch:     mustInt(getEnv("MESSAGES_PER_BATCH", "30")),
		DelayBetweenMessages: mustSeconds(getEnv("DELAY_BETWEEN_MESSAGES", "2")),
		DelayBetweenBatches:  mustSeconds(getEnv("DELAY_BETWEEN_BATCHES", "20")),
		MaxRetryAttempts:     mustInt(getEnv("MAX_RETRY_ATTEMPTS", "3")),
		SequenceBatchLimit:   mustInt(getEnv("SEQUENCE_BATCH_LIMIT", "100")),
		SequenceConcurrency:  mustInt(getEnv("SEQUENCE_CONCURRENCY", "4")),
		SequenceTickTimeout:  mustDuration(getEnv("SEQUENCE_TICK_TIMEOUT", "10m")),
		PhoneDefaultRegion:   strings.ToUpper(getEnv("PHONE_DEFAULT_REGION", "AL")),
		DecaySchedule:        getEnv("DECAY_SCHEDULE", "0 2 * * *"),
		SequenceSchedule:     getEnv("SEQUENCE_SCHEDULE", "0 9,13,17 * * *"),
		SchedulerTimezone:    getEnv("SCHEDULER_TIMEZONE", "UTC"),
		CampaignJobRetention: time.Duration(mustInt(getEnv("CAMPAIGN_JOB_RETENTION_DAYS", "30"))) * 24 * time.Hour,
		WhatsAppURL:          getEnv("WHATSAPP_URL", ""),
		WhatsAppKey:          getEnv("WHATSAPP_KEY", ""),
		WhatsAppDeviceID:     getEnv("WHATSAPP_DEVICE_ID", ""),
		BrevoAPIKey:          getEnv("BREVO_API_KEY", ""),
		SMTPHost:             getEnv("SMTP_HOST", ""),
		SMTPPort:             mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:         getEnv("SMTP_USERNAME", ""),
		SMTPPassword:         getEnv("SMTP_PASSWORD", ""),
		EmailFromName:        getEnv("EMAIL_FROM_NAME", "Outreach"),
		EmailFromAddress:     getEnv("EMAIL_FROM_ADDRESS", ""),
		SMSAPIURL:            getEnv("SMS_API_URL", "https://api.twilio.com/2010-04-01"),
		SMSAccountSID:        getEnv("SMS_ACCOUNT_SID", ""),
		SMSAuthToken:         getEnv("SMS_AUTH_TOKEN", ""),
		SMSFromNumber:        getEnv("SMS_FROM_NUMBER", ""),
		SeedFile:             getEnv("OUTREACH_SEED_FILE", ""),
		SeedWatch:            strings.EqualFold(getEnv("OUTREACH_SEED_WATCH", "false"), "true"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.MessagesPerBatch < 1 {
		return fmt.Errorf("MESSAGES_PER_BATCH must be a positive integer")
	}
	if c.DelayBetweenMessages < 0 || c.DelayBetweenBatches < 0 {
		return fmt.Errorf("DELAY_BETWEEN_MESSAGES and DELAY_BETWEEN_BATCHES must not be negative")
	}
	if c.MaxRetryAttempts < 0 {
		return fmt.Errorf("MAX_RETRY_ATTEMPTS must not be negative")
	}
	if (c.IsSMTPEnabled() || c.IsBrevoEnabled()) && c.EmailFromAddress == "" {
		return fmt.Errorf("EMAIL_FROM_ADDRESS is required when SMTP_HOST or BREVO_API_KEY is set")
	}
	if c.IsSMSEnabled() && c.SMSFromNumber == "" {
		return fmt.Errorf("SMS_FROM_NUMBER is required when SMS credentials are set")
	}
	if c.CORSAllowAll && c.CORSAllowCreds {
		return fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	return nil
}

// RequireJWT fails when the API process has no token secret configured.
func (c *Config) RequireJWT() error {
	if c.JWTAccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	return nil
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

// mustSeconds parses a whole or fractional number of seconds.
func mustSeconds(value string) time.Duration {
	seconds, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return mustDuration(value)
	}
	return time.Duration(seconds * float64(time.Second))
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
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
