package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Twilio     TwilioConfig
	Email      EmailConfig
	AWS        AWSConfig
	Redis      RedisConfig
	Scheduler  SchedulerConfig
	Security   SecurityConfig
	LogLevel   string
	LogFormat  string
	MemoryOnly bool
}

type ServerConfig struct {
	Port        string
	Environment string
}

type DatabaseConfig struct {
	User                   string
	Password               string
	Name                   string
	Host                   string
	Port                   int
	SSLMode                string
	InstanceConnectionName string
}

type TwilioConfig struct {
	AccountSID     string
	AuthToken      string
	PhoneNumber    string
	WhatsAppNumber string
}

// Configured reports whether outbound Twilio sends can be made
func (t TwilioConfig) Configured() bool {
	return t.AccountSID != "" && t.AuthToken != "" && t.PhoneNumber != ""
}

type EmailConfig struct {
	Provider      string // "api", "ses" or "smtp"
	APIKey        string
	APIURL        string
	InboundAPIURL string
	SenderName    string
	FromAddress   string
	WebhookSecret string
	SMTP          SMTPConfig
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
}

type RedisConfig struct {
	Enabled         bool
	Address         string
	Password        string
	DB              int
	RealtimeChannel string
}

type SchedulerConfig struct {
	// Cron is a robfig/cron spec for the in-process trigger; empty leaves
	// triggering to an external caller of the process endpoint.
	Cron      string
	BatchSize int
	LockTTL   time.Duration
}

type SecurityConfig struct {
	CronSecret               string
	JWTSecret                string
	DisableWebhookValidation bool
	PublicBaseURL            string
}

// Load reads configuration from the environment
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: strings.ToLower(getEnv("ENVIRONMENT", "development")),
		},
		Database: DatabaseConfig{
			User:                   getEnv("DB_USER", "postgres"),
			Password:               os.Getenv("DB_PASS"),
			Name:                   getEnv("DB_NAME", "unibox"),
			Host:                   getEnv("DB_HOST", "localhost"),
			Port:                   getEnvInt("DB_PORT", 5432),
			SSLMode:                getEnv("DB_SSLMODE", "disable"),
			InstanceConnectionName: os.Getenv("INSTANCE_CONNECTION_NAME"),
		},
		Twilio: TwilioConfig{
			AccountSID:     os.Getenv("TWILIO_ACCOUNT_SID"),
			AuthToken:      os.Getenv("TWILIO_AUTH_TOKEN"),
			PhoneNumber:    os.Getenv("TWILIO_PHONE_NUMBER"),
			WhatsAppNumber: getEnv("TWILIO_WHATSAPP_NUMBER", "whatsapp:+14155238886"),
		},
		Email: EmailConfig{
			Provider:      strings.ToLower(getEnv("EMAIL_PROVIDER", "api")),
			APIKey:        os.Getenv("CUSTOM_EMAIL_API_KEY"),
			APIURL:        os.Getenv("CUSTOM_EMAIL_API_URL"),
			InboundAPIURL: os.Getenv("CUSTOM_EMAIL_INBOUND_API_URL"),
			SenderName:    getEnv("CUSTOM_EMAIL_SENDER_NAME", "UniBox Email Service"),
			FromAddress:   os.Getenv("EMAIL_FROM_ADDRESS"),
			WebhookSecret: os.Getenv("EMAIL_WEBHOOK_SECRET"),
			SMTP: SMTPConfig{
				Host:     os.Getenv("SMTP_HOST"),
				Port:     getEnvInt("SMTP_PORT", 587),
				Username: os.Getenv("SMTP_USERNAME"),
				Password: os.Getenv("SMTP_PASSWORD"),
			},
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			S3Bucket:        os.Getenv("S3_BUCKET"),
		},
		Redis: loadRedisConfig(),
		Scheduler: SchedulerConfig{
			Cron:      os.Getenv("SCHEDULED_SEND_CRON"),
			BatchSize: getEnvInt("SCHEDULED_BATCH_SIZE", 50),
			LockTTL:   getEnvDuration("SCHEDULED_LOCK_TTL", 5*time.Minute),
		},
		Security: SecurityConfig{
			CronSecret:               os.Getenv("CRON_SECRET"),
			JWTSecret:                os.Getenv("AUTH_JWT_SECRET"),
			DisableWebhookValidation: getEnvBool("DISABLE_WEBHOOK_VALIDATION", false),
			PublicBaseURL:            strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/"),
		},
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFormat:  getEnv("LOG_FORMAT", "text"),
		MemoryOnly: getEnvBool("USE_MEMORY_STORE", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether the service runs with production safeguards
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// WebhookValidationEnabled reports whether provider signatures are checked
func (c *Config) WebhookValidationEnabled() bool {
	return c.Server.Environment != "development" && !c.Security.DisableWebhookValidation
}

// Validate checks the settings a production deployment cannot run without
func (c *Config) Validate() error {
	if c.Scheduler.BatchSize <= 0 {
		return fmt.Errorf("SCHEDULED_BATCH_SIZE must be positive, got %d", c.Scheduler.BatchSize)
	}
	switch c.Email.Provider {
	case "api", "ses":
	case "smtp":
		if c.Email.SMTP.Host == "" {
			return errors.New("SMTP_HOST is required when EMAIL_PROVIDER is smtp")
		}
	default:
		return fmt.Errorf("EMAIL_PROVIDER must be api, ses or smtp, got %q", c.Email.Provider)
	}
	if !c.IsProduction() {
		return nil
	}

	var missing []string
	if c.Twilio.AuthToken == "" {
		missing = append(missing, "TWILIO_AUTH_TOKEN")
	}
	if c.Security.CronSecret == "" {
		missing = append(missing, "CRON_SECRET")
	}
	if c.Security.JWTSecret == "" {
		missing = append(missing, "AUTH_JWT_SECRET")
	}
	if !c.MemoryOnly && c.Database.Password == "" {
		missing = append(missing, "DB_PASS")
	}
	if len(missing) > 0 {
		return errors.New("missing required production settings: " + strings.Join(missing, ", "))
	}
	return nil
}

func loadRedisConfig() RedisConfig {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return RedisConfig{Enabled: false}
	}
	return RedisConfig{
		Enabled:         true,
		Address:         addr,
		Password:        os.Getenv("REDIS_PASSWORD"),
		DB:              getEnvInt("REDIS_DB", 0),
		RealtimeChannel: getEnv("REALTIME_CHANNEL", "unibox:events"),
	}
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
