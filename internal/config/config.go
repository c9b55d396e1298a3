package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for our application.
// Every section is squashed so flat environment keys decode into it.
type Config struct {
	Server       ServerConfig       `mapstructure:",squash"`
	Database     DatabaseConfig     `mapstructure:",squash"`
	Redis        RedisConfig        `mapstructure:",squash"`
	Scheduler    SchedulerConfig    `mapstructure:",squash"`
	Logging      LoggingConfig      `mapstructure:",squash"`
	Business     BusinessConfig     `mapstructure:",squash"`
	Processor    ProcessorConfig    `mapstructure:",squash"`
	Notification NotificationConfig `mapstructure:",squash"`
	Health       HealthConfig       `mapstructure:",squash"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"SERVER_PORT"`
	Host            string        `mapstructure:"SERVER_HOST"`
	Env             string        `mapstructure:"ENV"`
	ReadTimeout     time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `mapstructure:"SERVER_SHUTDOWN_TIMEOUT"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"DATABASE_DRIVER"`
	URL             string        `mapstructure:"DATABASE_URL"`
	MaxOpenConns    int           `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `mapstructure:"DATABASE_CONN_MAX_LIFETIME"`
	AutoMigrate     bool          `mapstructure:"DATABASE_AUTO_MIGRATE"`
}

type RedisConfig struct {
	URL      string        `mapstructure:"REDIS_URL"`
	LockTTL  time.Duration `mapstructure:"REDIS_LOCK_TTL"`
	LockWait time.Duration `mapstructure:"REDIS_LOCK_WAIT"`
}

type SchedulerConfig struct {
	LateFeeSpec    string `mapstructure:"SCHEDULER_LATE_FEE_SPEC"`
	GenerateSpec   string `mapstructure:"SCHEDULER_GENERATE_SPEC"`
	StaleSpec      string `mapstructure:"SCHEDULER_STALE_SPEC"`
	ReminderSpec   string `mapstructure:"SCHEDULER_REMINDER_SPEC"`
	Timezone       string `mapstructure:"SCHEDULER_TIMEZONE"`
	RunImmediately bool   `mapstructure:"SCHEDULER_RUN_IMMEDIATELY"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"LOG_LEVEL"`
	Format string `mapstructure:"LOG_FORMAT"`
}

type BusinessConfig struct {
	MonthsAhead           int           `mapstructure:"BILLING_MONTHS_AHEAD"`
	StaleIntentTimeout    time.Duration `mapstructure:"STALE_INTENT_TIMEOUT"`
	ProratePartialPeriods bool          `mapstructure:"PRORATE_PARTIAL_PERIODS"`
	ReminderDaysBefore    int           `mapstructure:"REMINDER_DAYS_BEFORE"`
	ReminderDaysAfter     int           `mapstructure:"REMINDER_DAYS_AFTER"`
	LateFeeWorkers        int           `mapstructure:"LATE_FEE_WORKERS"`
	GenerationWorkers     int           `mapstructure:"GENERATION_WORKERS"`
}

type ProcessorConfig struct {
	Provider         string `mapstructure:"PROCESSOR_PROVIDER"`
	WebhookSecret    string `mapstructure:"PROCESSOR_WEBHOOK_SECRET"`
	Currency         string `mapstructure:"PROCESSOR_CURRENCY"`
	RazorpayKeyID    string `mapstructure:"RAZORPAY_KEY_ID"`
	RazorpaySecret   string `mapstructure:"RAZORPAY_KEY_SECRET"`
	MercadoPagoToken string `mapstructure:"MERCADOPAGO_ACCESS_TOKEN"`
	PayerEmail       string `mapstructure:"PROCESSOR_PAYER_EMAIL"`
}

type NotificationConfig struct {
	Enabled       bool   `mapstructure:"NOTIFY_ENABLED"`
	SMTPHost      string `mapstructure:"SMTP_HOST"`
	SMTPPort      int    `mapstructure:"SMTP_PORT"`
	SMTPUser      string `mapstructure:"SMTP_USER"`
	SMTPPassword  string `mapstructure:"SMTP_PASSWORD"`
	From          string `mapstructure:"SMTP_FROM"`
	OperatorEmail string `mapstructure:"OPERATOR_EMAIL"`
}

type HealthConfig struct {
	Timeout time.Duration `mapstructure:"HEALTH_CHECK_TIMEOUT"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("ENV", "development")
	v.SetDefault("SERVER_READ_TIMEOUT", "15s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "15s")
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", "30s")

	v.SetDefault("DATABASE_DRIVER", "postgres")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 25)
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", "5m")
	v.SetDefault("DATABASE_AUTO_MIGRATE", false)

	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_LOCK_TTL", "30s")
	v.SetDefault("REDIS_LOCK_WAIT", "10s")

	v.SetDefault("SCHEDULER_LATE_FEE_SPEC", "0 15 0 * * *")
	v.SetDefault("SCHEDULER_GENERATE_SPEC", "0 0 1 * * *")
	v.SetDefault("SCHEDULER_STALE_SPEC", "0 0 * * * *")
	v.SetDefault("SCHEDULER_REMINDER_SPEC", "0 0 9 * * *")
	v.SetDefault("SCHEDULER_TIMEZONE", "UTC")
	v.SetDefault("SCHEDULER_RUN_IMMEDIATELY", false)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("BILLING_MONTHS_AHEAD", 3)
	v.SetDefault("STALE_INTENT_TIMEOUT", "48h")
	v.SetDefault("PRORATE_PARTIAL_PERIODS", false)
	v.SetDefault("REMINDER_DAYS_BEFORE", 3)
	v.SetDefault("REMINDER_DAYS_AFTER", 2)
	v.SetDefault("LATE_FEE_WORKERS", 4)
	v.SetDefault("GENERATION_WORKERS", 4)

	v.SetDefault("PROCESSOR_PROVIDER", "mock")
	v.SetDefault("PROCESSOR_WEBHOOK_SECRET", "")
	v.SetDefault("PROCESSOR_CURRENCY", "USD")
	v.SetDefault("RAZORPAY_KEY_ID", "")
	v.SetDefault("RAZORPAY_KEY_SECRET", "")
	v.SetDefault("MERCADOPAGO_ACCESS_TOKEN", "")
	v.SetDefault("PROCESSOR_PAYER_EMAIL", "")

	v.SetDefault("NOTIFY_ENABLED", false)
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "billing@localhost")
	v.SetDefault("OPERATOR_EMAIL", "")

	v.SetDefault("HEALTH_CHECK_TIMEOUT", "5s")
}

// Load reads configuration from environment variables and files
func Load() (*Config, error) {
	// .env values become process env so child tools see them too
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	// Read from environment variables
	v.AutomaticEnv()

	// Try to read from .env file (optional)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./deployments")

	// Don't fail if .env file doesn't exist
	_ = v.ReadInConfig()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	switch c.Database.Driver {
	case "postgres", "pgx", "sqlite":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be one of postgres, pgx, sqlite (got %q)", c.Database.Driver)
	}

	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Business.MonthsAhead < 0 {
		return fmt.Errorf("BILLING_MONTHS_AHEAD cannot be negative")
	}

	if c.Business.StaleIntentTimeout <= 0 {
		return fmt.Errorf("STALE_INTENT_TIMEOUT must be a positive duration")
	}

	if c.Business.ReminderDaysBefore < 0 || c.Business.ReminderDaysAfter < 0 {
		return fmt.Errorf("REMINDER_DAYS_BEFORE and REMINDER_DAYS_AFTER cannot be negative")
	}

	if c.Business.LateFeeWorkers <= 0 {
		return fmt.Errorf("LATE_FEE_WORKERS must be greater than 0")
	}

	if c.Business.GenerationWorkers <= 0 {
		return fmt.Errorf("GENERATION_WORKERS must be greater than 0")
	}

	switch c.Processor.Provider {
	case "razorpay":
		if c.Processor.RazorpayKeyID == "" || c.Processor.RazorpaySecret == "" {
			return fmt.Errorf("RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET are required for the razorpay provider")
		}
	case "mercadopago":
		if c.Processor.MercadoPagoToken == "" {
			return fmt.Errorf("MERCADOPAGO_ACCESS_TOKEN is required for the mercadopago provider")
		}
	case "mock":
	default:
		return fmt.Errorf("PROCESSOR_PROVIDER must be one of razorpay, mercadopago, mock (got %q)", c.Processor.Provider)
	}

	if c.Processor.WebhookSecret == "" {
		return fmt.Errorf("PROCESSOR_WEBHOOK_SECRET is required")
	}

	if c.Notification.Enabled && c.Notification.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST is required when NOTIFY_ENABLED is set")
	}

	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("SCHEDULER_TIMEZONE must be a valid IANA zone: %w", err)
	}

	if c.Health.Timeout <= 0 {
		return fmt.Errorf("HEALTH_CHECK_TIMEOUT must be a positive duration")
	}

	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production" || c.Server.Env == "prod"
}

// Addr is the listen address for the HTTP server
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// GetSchedulerLocation returns the scheduler timezone
func (c *Config) GetSchedulerLocation() *time.Location {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Name returns the processor provider name in lower case
func (c *ProcessorConfig) Name() string {
	return strings.ToLower(c.Provider)
}
