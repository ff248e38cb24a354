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
	GetDatabaseMaxConns() int
	GetDatabaseStatementTimeout() time.Duration
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

// RegistryConfig provides settings for the federal registry API client.
type RegistryConfig interface {
	GetRegistryBaseURL() string
	GetRegistryAPIKey() string
	GetRegistryPageSize() int
	GetRegistryRequestTimeout() time.Duration
	GetRegistryRateLimitBackoff() time.Duration
	GetRegistryMinInterval() time.Duration
}

// EmailConfig provides settings for email sending.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetEmailProvider() string
	GetBrevoAPIKey() string
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// OutreachConfig provides settings for the outreach dispatcher.
type OutreachConfig interface {
	GetOutreachMinSendInterval() time.Duration
	GetOutreachCooldown() time.Duration
	GetOutreachSendTimeout() time.Duration
	GetFollowUpDelay() time.Duration
	GetTrialLength() time.Duration
	GetCampaignBatchLimit() int
}

// TrackingConfig provides settings for tracking links and the ingest endpoints.
type TrackingConfig interface {
	GetAppBaseURL() string
	GetPublicAPIBaseURL() string
	GetTrackingSecret() string
}

// SchedulerConfig provides settings for the background task queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetSchedulerConcurrency() int
	GetContractorSyncCron() string
	GetOpportunitySyncCron() string
	GetSweepCron() string
	GetContractorSyncWindow() time.Duration
	GetSyncMaxRecords() int
}

// RateLimitConfig provides settings for public endpoint rate limiting.
type RateLimitConfig interface {
	GetPublicRateLimit() int
	GetPublicRateWindow() time.Duration
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketSyncArchive() string
	IsMinIOEnabled() bool
}

// KafkaConfig provides settings for the pipeline event relay.
type KafkaConfig interface {
	GetKafkaBrokers() []string
	GetKafkaPipelineTopic() string
	IsKafkaEnabled() bool
}

// TargetingConfig provides the default sync targeting and message templates.
type TargetingConfig interface {
	GetTargeting() Targeting
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env             string
	HTTPAddr        string
	DatabaseURL     string
	RedisURL        string
	JWTAccessSecret string
	CORSAllowAll    bool
	CORSOrigins     []string
	CORSAllowCreds  bool

	DatabaseMaxConns         int
	DatabaseStatementTimeout time.Duration

	AppBaseURL       string
	PublicAPIBaseURL string
	TrackingSecret   string

	RegistryBaseURL          string
	RegistryAPIKey           string
	RegistryPageSize         int
	RegistryRequestTimeout   time.Duration
	RegistryRateLimitBackoff time.Duration
	RegistryMinInterval      time.Duration

	EmailEnabled     bool
	EmailProvider    string
	BrevoAPIKey      string
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	EmailFromName    string
	EmailFromAddress string

	OutreachMinSendInterval time.Duration
	OutreachCooldown        time.Duration
	OutreachSendTimeout     time.Duration
	FollowUpDelay           time.Duration
	TrialLength             time.Duration
	CampaignBatchLimit      int

	SchedulerConcurrency int
	ContractorSyncCron   string
	OpportunitySyncCron  string
	SweepCron            string
	ContractorSyncWindow time.Duration
	SyncMaxRecords       int

	PublicRateLimit  int
	PublicRateWindow time.Duration

	MinIOEndpoint          string
	MinIOAccessKey         string
	MinIOSecretKey         string
	MinIOUseSSL            bool
	MinioBucketSyncArchive string

	KafkaBrokers       []string
	KafkaPipelineTopic string

	Targeting Targeting
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string                     { return c.DatabaseURL }
func (c *Config) GetDatabaseMaxConns() int                   { return c.DatabaseMaxConns }
func (c *Config) GetDatabaseStatementTimeout() time.Duration { return c.DatabaseStatementTimeout }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// RegistryConfig implementation
func (c *Config) GetRegistryBaseURL() string                 { return c.RegistryBaseURL }
func (c *Config) GetRegistryAPIKey() string                  { return c.RegistryAPIKey }
func (c *Config) GetRegistryPageSize() int                   { return c.RegistryPageSize }
func (c *Config) GetRegistryRequestTimeout() time.Duration   { return c.RegistryRequestTimeout }
func (c *Config) GetRegistryRateLimitBackoff() time.Duration { return c.RegistryRateLimitBackoff }
func (c *Config) GetRegistryMinInterval() time.Duration      { return c.RegistryMinInterval }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetEmailProvider() string    { return c.EmailProvider }
func (c *Config) GetBrevoAPIKey() string      { return c.BrevoAPIKey }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }

// OutreachConfig implementation
func (c *Config) GetOutreachMinSendInterval() time.Duration { return c.OutreachMinSendInterval }
func (c *Config) GetOutreachCooldown() time.Duration        { return c.OutreachCooldown }
func (c *Config) GetOutreachSendTimeout() time.Duration     { return c.OutreachSendTimeout }
func (c *Config) GetFollowUpDelay() time.Duration           { return c.FollowUpDelay }
func (c *Config) GetTrialLength() time.Duration             { return c.TrialLength }
func (c *Config) GetCampaignBatchLimit() int                { return c.CampaignBatchLimit }

// TrackingConfig implementation
func (c *Config) GetAppBaseURL() string       { return c.AppBaseURL }
func (c *Config) GetPublicAPIBaseURL() string { return c.PublicAPIBaseURL }
func (c *Config) GetTrackingSecret() string   { return c.TrackingSecret }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string                    { return c.RedisURL }
func (c *Config) GetSchedulerConcurrency() int           { return c.SchedulerConcurrency }
func (c *Config) GetContractorSyncCron() string          { return c.ContractorSyncCron }
func (c *Config) GetOpportunitySyncCron() string         { return c.OpportunitySyncCron }
func (c *Config) GetSweepCron() string                   { return c.SweepCron }
func (c *Config) GetContractorSyncWindow() time.Duration { return c.ContractorSyncWindow }
func (c *Config) GetSyncMaxRecords() int                 { return c.SyncMaxRecords }

// RateLimitConfig implementation
func (c *Config) GetPublicRateLimit() int            { return c.PublicRateLimit }
func (c *Config) GetPublicRateWindow() time.Duration { return c.PublicRateWindow }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string          { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string         { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string         { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool              { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketSyncArchive() string { return c.MinioBucketSyncArchive }
func (c *Config) IsMinIOEnabled() bool              { return c.MinIOEndpoint != "" }

// KafkaConfig implementation
func (c *Config) GetKafkaBrokers() []string     { return c.KafkaBrokers }
func (c *Config) GetKafkaPipelineTopic() string { return c.KafkaPipelineTopic }
func (c *Config) IsKafkaEnabled() bool          { return len(c.KafkaBrokers) > 0 }

// TargetingConfig implementation
func (c *Config) GetTargeting() Targeting { return c.Targeting }

// Load reads configuration from environment variables.
// Missing required values fail here so that no job starts half-configured.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")

	cfg := &Config{
		Env:             getEnv("APP_ENV", "development"),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		RedisURL:        getEnv("REDIS_URL", ""),
		JWTAccessSecret: getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:    corsAllowAll,
		CORSOrigins:     corsOrigins,
		CORSAllowCreds:  strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),

		DatabaseMaxConns:         mustInt(getEnv("DATABASE_MAX_CONNS", "10")),
		DatabaseStatementTimeout: mustDuration(getEnv("DATABASE_STATEMENT_TIMEOUT", "30s")),

		AppBaseURL:       strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:4200"), "/"),
		PublicAPIBaseURL: strings.TrimRight(getEnv("PUBLIC_API_BASE_URL", "http://localhost:8080"), "/"),
		TrackingSecret:   getEnv("TRACKING_SECRET", ""),

		RegistryBaseURL:          strings.TrimRight(getEnv("REGISTRY_BASE_URL", "https://api.sam.gov"), "/"),
		RegistryAPIKey:           getEnv("REGISTRY_API_KEY", ""),
		RegistryPageSize:         mustInt(getEnv("REGISTRY_PAGE_SIZE", "100")),
		RegistryRequestTimeout:   mustDuration(getEnv("REGISTRY_REQUEST_TIMEOUT", "30s")),
		RegistryRateLimitBackoff: mustDuration(getEnv("REGISTRY_RATE_LIMIT_BACKOFF", "60s")),
		RegistryMinInterval:      mustDuration(getEnv("REGISTRY_MIN_INTERVAL", "1s")),

		EmailEnabled:     emailEnabled,
		EmailProvider:    strings.ToLower(getEnv("EMAIL_PROVIDER", "brevo")),
		BrevoAPIKey:      getEnv("BREVO_API_KEY", ""),
		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "GovCon Leads"),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),

		OutreachMinSendInterval: mustDuration(getEnv("OUTREACH_MIN_SEND_INTERVAL", "2s")),
		OutreachCooldown:        mustDuration(getEnv("OUTREACH_COOLDOWN", "168h")),
		OutreachSendTimeout:     mustDuration(getEnv("OUTREACH_SEND_TIMEOUT", "15s")),
		FollowUpDelay:           mustDuration(getEnv("FOLLOW_UP_DELAY", "72h")),
		TrialLength:             mustDuration(getEnv("TRIAL_LENGTH", "336h")),
		CampaignBatchLimit:      mustInt(getEnv("CAMPAIGN_BATCH_LIMIT", "200")),

		SchedulerConcurrency: mustInt(getEnv("SCHEDULER_CONCURRENCY", "5")),
		ContractorSyncCron:   getEnv("CONTRACTOR_SYNC_CRON", "0 5 * * *"),
		OpportunitySyncCron:  getEnv("OPPORTUNITY_SYNC_CRON", "30 5 * * *"),
		SweepCron:            getEnv("SWEEP_CRON", "0 6 * * *"),
		ContractorSyncWindow: mustDuration(getEnv("CONTRACTOR_SYNC_WINDOW", "168h")),
		SyncMaxRecords:       mustInt(getEnv("SYNC_MAX_RECORDS", "1000")),

		PublicRateLimit:  mustInt(getEnv("PUBLIC_RATE_LIMIT", "60")),
		PublicRateWindow: mustDuration(getEnv("PUBLIC_RATE_WINDOW", "1m")),

		MinIOEndpoint:          getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:         getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:         getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:            strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketSyncArchive: getEnv("MINIO_BUCKET_SYNC_ARCHIVE", "sync-archive"),

		KafkaBrokers:       splitCSV(getEnv("KAFKA_BROKERS", "")),
		KafkaPipelineTopic: getEnv("KAFKA_PIPELINE_TOPIC", "govcon.pipeline"),
	}

	targeting, err := LoadTargeting(getEnv("TARGETING_FILE", ""))
	if err != nil {
		return nil, err
	}
	if codes := splitCSV(getEnv("REGISTRY_NAICS_CODES", "")); len(codes) > 0 {
		targeting.Codes = codes
	}
	cfg.Targeting = targeting

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DatabaseMaxConns <= 0 {
		return fmt.Errorf("DATABASE_MAX_CONNS must be positive")
	}
	if c.JWTAccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if c.RegistryAPIKey == "" {
		return fmt.Errorf("REGISTRY_API_KEY is required")
	}
	if c.TrackingSecret == "" {
		return fmt.Errorf("TRACKING_SECRET is required")
	}
	if c.RegistryPageSize <= 0 || c.RegistryRequestTimeout <= 0 {
		return fmt.Errorf("REGISTRY_PAGE_SIZE and REGISTRY_REQUEST_TIMEOUT must be positive")
	}
	if c.OutreachMinSendInterval <= 0 {
		return fmt.Errorf("OUTREACH_MIN_SEND_INTERVAL must be positive")
	}
	if c.EmailEnabled {
		switch c.EmailProvider {
		case "brevo":
			if c.BrevoAPIKey == "" {
				return fmt.Errorf("BREVO_API_KEY is required when EMAIL_PROVIDER is brevo")
			}
		case "smtp":
			if c.SMTPHost == "" {
				return fmt.Errorf("SMTP_HOST is required when EMAIL_PROVIDER is smtp")
			}
		default:
			return fmt.Errorf("unsupported EMAIL_PROVIDER %q", c.EmailProvider)
		}
		if c.EmailFromAddress == "" {
			return fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
		}
	}
	if c.CORSAllowAll && c.CORSAllowCreds {
		return fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
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
