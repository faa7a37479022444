package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"school_portal_core/internal/domain/referral"
	"school_portal_core/internal/domain/reportcard"
	"school_portal_core/internal/domain/sessiontime"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseDriver string
	DatabaseURL    string
	LogLevel       string
	Environment    string

	DefaultTimezone      string
	ReferralCreditAmount int64
	ReportCardMaxUpload  int64

	SignedURLTTL         time.Duration
	BucketLegalDocuments string
	BucketResources      string
	BucketSignatures     string
	BucketReportCards    string
	OSSEndpoint          string
	OSSAccessKey         string
	OSSSecretKey         string

	EmailProvider  string
	ResendAPIKey   string
	SendgridAPIKey string
	EmailFrom      string
	AdminInbox     string

	TelegramToken     string
	ManagerTelegramID int64

	CronSpecDayBefore      string
	CronSpecHourBefore     string
	CronSpecRateLimitSweep string
	ReminderWindow         time.Duration

	RateLimitMax    int
	RateLimitWindow time.Duration

	MetricsAddr string
}

// IsProduction reports whether logs should be machine-readable.
func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "staging"
}

// DefaultLocation is the fallback viewer zone.
func (c *AppConfig) DefaultLocation() *time.Location {
	return sessiontime.ZoneOrDefault(c.DefaultTimezone, time.UTC)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DATABASE_DRIVER", "postgres")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("DEFAULT_TIMEZONE", "America/Vancouver")
	v.SetDefault("REFERRAL_CREDIT_AMOUNT", referral.DefaultCreditAmount)
	v.SetDefault("REPORT_CARD_MAX_UPLOAD_BYTES", reportcard.DefaultMaxUploadBytes)
	v.SetDefault("SIGNED_URL_TTL", 15*time.Minute)
	v.SetDefault("BUCKET_LEGAL_DOCUMENTS", "legal-documents")
	v.SetDefault("BUCKET_RESOURCES", "resources")
	v.SetDefault("BUCKET_SIGNATURES", "signatures")
	v.SetDefault("BUCKET_REPORT_CARDS", "report-cards")
	v.SetDefault("EMAIL_PROVIDER", "noop")
	v.SetDefault("EMAIL_FROM", "School Portal <noreply@localhost>")
	v.SetDefault("CRON_SPEC_DAY_BEFORE", "0 17 * * *")
	v.SetDefault("CRON_SPEC_HOUR_BEFORE", "*/5 * * * *")
	v.SetDefault("CRON_SPEC_RATE_LIMIT_SWEEP", "*/10 * * * *")
	v.SetDefault("REMINDER_WINDOW", 5*time.Minute)
	v.SetDefault("RATE_LIMIT_MAX", 5)
	v.SetDefault("RATE_LIMIT_WINDOW", time.Hour)
	v.SetDefault("METRICS_ADDR", ":9090")
	v.SetDefault("MANAGER_TELEGRAM_ID", 0)
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Errors are ignored if the file doesn't exist; godotenv does not
	// override variables that are already set.
	_ = godotenv.Load()
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	setDefaults(v)
	v.AutomaticEnv()
	return v
}

// FromViper builds and validates the config from an already-populated viper
// instance.
func FromViper(v *viper.Viper) (*AppConfig, error) {
	cfg := &AppConfig{
		DatabaseDriver:         strings.ToLower(v.GetString("DATABASE_DRIVER")),
		DatabaseURL:            v.GetString("DATABASE_URL"),
		LogLevel:               strings.ToLower(v.GetString("LOG_LEVEL")),
		Environment:            strings.ToLower(v.GetString("ENVIRONMENT")),
		DefaultTimezone:        v.GetString("DEFAULT_TIMEZONE"),
		ReferralCreditAmount:   v.GetInt64("REFERRAL_CREDIT_AMOUNT"),
		ReportCardMaxUpload:    v.GetInt64("REPORT_CARD_MAX_UPLOAD_BYTES"),
		SignedURLTTL:           v.GetDuration("SIGNED_URL_TTL"),
		BucketLegalDocuments:   v.GetString("BUCKET_LEGAL_DOCUMENTS"),
		BucketResources:        v.GetString("BUCKET_RESOURCES"),
		BucketSignatures:       v.GetString("BUCKET_SIGNATURES"),
		BucketReportCards:      v.GetString("BUCKET_REPORT_CARDS"),
		OSSEndpoint:            v.GetString("OSS_ENDPOINT"),
		OSSAccessKey:           v.GetString("OSS_ACCESS_KEY"),
		OSSSecretKey:           v.GetString("OSS_SECRET_KEY"),
		EmailProvider:          strings.ToLower(v.GetString("EMAIL_PROVIDER")),
		ResendAPIKey:           v.GetString("RESEND_API_KEY"),
		SendgridAPIKey:         v.GetString("SENDGRID_API_KEY"),
		EmailFrom:              v.GetString("EMAIL_FROM"),
		AdminInbox:             v.GetString("ADMIN_INBOX"),
		TelegramToken:          v.GetString("TELEGRAM_TOKEN"),
		ManagerTelegramID:      v.GetInt64("MANAGER_TELEGRAM_ID"),
		CronSpecDayBefore:      v.GetString("CRON_SPEC_DAY_BEFORE"),
		CronSpecHourBefore:     v.GetString("CRON_SPEC_HOUR_BEFORE"),
		CronSpecRateLimitSweep: v.GetString("CRON_SPEC_RATE_LIMIT_SWEEP"),
		ReminderWindow:         v.GetDuration("REMINDER_WINDOW"),
		RateLimitMax:           v.GetInt("RATE_LIMIT_MAX"),
		RateLimitWindow:        v.GetDuration("RATE_LIMIT_WINDOW"),
		MetricsAddr:            v.GetString("METRICS_ADDR"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	switch cfg.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}
	if !sessiontime.IsValidTimezone(cfg.DefaultTimezone) {
		return nil, fmt.Errorf("DEFAULT_TIMEZONE %q is not an IANA timezone", cfg.DefaultTimezone)
	}
	if cfg.ReferralCreditAmount < 0 {
		return nil, fmt.Errorf("REFERRAL_CREDIT_AMOUNT must not be negative")
	}
	if cfg.ReportCardMaxUpload <= 0 {
		return nil, fmt.Errorf("REPORT_CARD_MAX_UPLOAD_BYTES must be positive")
	}
	if cfg.SignedURLTTL <= 0 {
		return nil, fmt.Errorf("SIGNED_URL_TTL must be positive")
	}
	switch cfg.EmailProvider {
	case "noop":
	case "resend":
		if cfg.ResendAPIKey == "" {
			return nil, fmt.Errorf("RESEND_API_KEY is not set")
		}
	case "sendgrid":
		if cfg.SendgridAPIKey == "" {
			return nil, fmt.Errorf("SENDGRID_API_KEY is not set")
		}
	default:
		return nil, fmt.Errorf("unsupported EMAIL_PROVIDER %q", cfg.EmailProvider)
	}
	if cfg.TelegramToken != "" && cfg.ManagerTelegramID == 0 {
		return nil, fmt.Errorf("MANAGER_TELEGRAM_ID is required when TELEGRAM_TOKEN is set")
	}
	if cfg.RateLimitMax <= 0 || cfg.RateLimitWindow <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW must be positive")
	}
	if cfg.ReminderWindow <= 0 {
		return nil, fmt.Errorf("REMINDER_WINDOW must be positive")
	}
	return cfg, nil
}
