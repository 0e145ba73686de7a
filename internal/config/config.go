package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN       string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL       string `env:"RABBITMQ_URL,required=true"`
	RedisURL          string `env:"REDIS_URL,required=true"`
	RateLimitPerSec   int    `env:"RATE_LIMIT_PER_SEC,default=100"`
	WorkerConcurrency int    `env:"WORKER_CONCURRENCY,default=6"`
	APIPort           int    `env:"API_PORT,default=8080"`
	LogLevel          string `env:"LOG_LEVEL,default=info"`
	BrandName         string `env:"BRAND_NAME,default=TutorHub"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT,default=587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	EmailFrom    string `env:"EMAIL_FROM"`

	SMSAPIURL             string `env:"SMS_API_URL"`
	SMSAPIKey             string `env:"SMS_API_KEY"`
	SMSSenderID           string `env:"SMS_SENDER_ID"`
	SMSDefaultCountryCode string `env:"SMS_DEFAULT_COUNTRY_CODE,default=91"`

	WhatsAppAPIURL       string `env:"WHATSAPP_API_URL"`
	WhatsAppAPIToken     string `env:"WHATSAPP_API_TOKEN"`
	WhatsAppSenderNumber string `env:"WHATSAPP_SENDER_NUMBER"`

	ReconcileSchedule      string `env:"RECONCILE_SCHEDULE,default=@every 5m"`
	ReconcileMinAgeSeconds int    `env:"RECONCILE_MIN_AGE_SECONDS,default=60"`
	ReconcilePageSize      int    `env:"RECONCILE_PAGE_SIZE,default=200"`
	ExpirySchedule         string `env:"EXPIRY_SCHEDULE,default=@daily"`
	ExpiryLookaheadHours   int    `env:"EXPIRY_LOOKAHEAD_HOURS,default=72"`
	JobLockTTLSeconds      int    `env:"JOB_LOCK_TTL_SECONDS,default=600"`
	ProviderTimeoutSeconds int    `env:"PROVIDER_TIMEOUT_SECONDS,default=10"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.APIPort <= 0 || c.APIPort > 65535:
		return fmt.Errorf("API_PORT must be between 1 and 65535")
	case c.WorkerConcurrency <= 0:
		return fmt.Errorf("WORKER_CONCURRENCY must be positive")
	case c.ReconcilePageSize <= 0:
		return fmt.Errorf("RECONCILE_PAGE_SIZE must be positive")
	case c.JobLockTTLSeconds <= 0:
		return fmt.Errorf("JOB_LOCK_TTL_SECONDS must be positive")
	case strings.TrimSpace(c.SMTPHost) != "" && strings.TrimSpace(c.EmailFrom) == "":
		return fmt.Errorf("EMAIL_FROM is required when SMTP_HOST is set")
	}
	return nil
}

// EmailEnabled reports whether an SMTP relay is configured.
func (c *Config) EmailEnabled() bool { return strings.TrimSpace(c.SMTPHost) != "" }

// SMSEnabled reports whether an SMS gateway is configured.
func (c *Config) SMSEnabled() bool { return strings.TrimSpace(c.SMSAPIURL) != "" }

func (c *Config) ReconcileMinAge() time.Duration {
	return time.Duration(c.ReconcileMinAgeSeconds) * time.Second
}

func (c *Config) ExpiryLookahead() time.Duration {
	return time.Duration(c.ExpiryLookaheadHours) * time.Hour
}

func (c *Config) JobLockTTL() time.Duration {
	return time.Duration(c.JobLockTTLSeconds) * time.Second
}

func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.ProviderTimeoutSeconds) * time.Second
}
