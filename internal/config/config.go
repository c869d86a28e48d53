package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Storage   StorageConfig   `yaml:"storage"`
	Email     EmailConfig     `yaml:"email"`
	Firebase  FirebaseConfig  `yaml:"firebase"`
	JWT       JWTConfig       `yaml:"jwt"`
	Log       LogConfig       `yaml:"log"`
	Fines     FineConfig      `yaml:"fines"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// ServerConfig contains the HTTP admin API and gRPC health listener settings
type ServerConfig struct {
	Host     string `yaml:"host"`
	HTTPPort int    `yaml:"http_port"`
	GRPCPort int    `yaml:"grpc_port"`
	// PublicURL is used to build links to locally stored evidence images.
	PublicURL string `yaml:"public_url"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "postgres" (lib/pq) or "pgx"
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// RedisConfig contains the inspection lease and request feed settings
type RedisConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Addr            string `yaml:"addr"`
	Password        string `yaml:"password"`
	DB              int    `yaml:"db"`
	Prefix          string `yaml:"prefix"`
	LeaseTTLMinutes int    `yaml:"lease_ttl_minutes"`
	FeedChannel     string `yaml:"feed_channel"`
}

// StorageConfig contains damage evidence storage settings
type StorageConfig struct {
	Type        string   `yaml:"type"`       // "local" or "s3"
	UploadDir   string   `yaml:"upload_dir"` // For local storage
	MaxFileSize int64    `yaml:"max_file_size_mb"`
	S3          S3Config `yaml:"s3"`
}

type S3Config struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	UseSSL          bool   `yaml:"use_ssl"`
	URLExpiryHours  int    `yaml:"url_expiry_hours"`
}

// EmailConfig selects the email channel for notifications
type EmailConfig struct {
	Provider string         `yaml:"provider"` // "smtp", "sendgrid" or "none"
	From     string         `yaml:"from"`
	FromName string         `yaml:"from_name"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	SendGrid SendGridConfig `yaml:"sendgrid"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

type SendGridConfig struct {
	APIKey string `yaml:"api_key"`
}

// FirebaseConfig enables push notifications through FCM topics
type FirebaseConfig struct {
	Enabled         bool   `yaml:"enabled"`
	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file"`
}

// JWTConfig contains the secret used to validate admin access tokens
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// FineConfig contains fine issuing rules
type FineConfig struct {
	DueDays int `yaml:"due_days"`
	// ReminderDaysBefore is how many days before the due date a reminder goes out.
	ReminderDaysBefore int `yaml:"reminder_days_before"`
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	RefundDeposits    string `yaml:"refund_deposits"`
	MarkOverdueFines  string `yaml:"mark_overdue_fines"`
	SendFineReminders string `yaml:"send_fine_reminders"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, applies environment overrides and validates it.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_DRIVER"); val != "" {
		c.Database.Driver = val
	}
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}

	// Redis
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		c.Redis.Addr = val
		c.Redis.Enabled = true
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		c.Redis.Password = val
	}

	// Storage
	if val := os.Getenv("STORAGE_TYPE"); val != "" {
		c.Storage.Type = val
	}
	if val := os.Getenv("UPLOAD_DIR"); val != "" {
		c.Storage.UploadDir = val
	}
	if val := os.Getenv("S3_ACCESS_KEY"); val != "" {
		c.Storage.S3.AccessKeyID = val
	}
	if val := os.Getenv("S3_SECRET_KEY"); val != "" {
		c.Storage.S3.SecretAccessKey = val
	}

	// Email
	if val := os.Getenv("SMTP_PASSWORD"); val != "" {
		c.Email.SMTP.Password = val
	}
	if val := os.Getenv("SENDGRID_API_KEY"); val != "" {
		c.Email.SendGrid.APIKey = val
	}

	// JWT
	if val := os.Getenv("JWT_SECRET"); val != "" {
		c.JWT.Secret = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("HTTP_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.HTTPPort)
	}
	if val := os.Getenv("GRPC_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.GRPCPort)
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid and fills defaults
func (c *Config) Validate() error {
	// Server validation
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid http port: %d", c.Server.HTTPPort)
	}
	if c.Server.GRPCPort == 0 {
		c.Server.GRPCPort = c.Server.HTTPPort + 1
	}
	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 || c.Server.GRPCPort == c.Server.HTTPPort {
		return fmt.Errorf("invalid grpc port: %d", c.Server.GRPCPort)
	}

	// Database validation
	switch c.Database.Driver {
	case "":
		c.Database.Driver = "postgres"
	case "postgres", "pgx":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}

	// Redis validation
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required when redis is enabled")
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "iotkit:"
	}
	if c.Redis.LeaseTTLMinutes <= 0 {
		c.Redis.LeaseTTLMinutes = 30
	}
	if c.Redis.FeedChannel == "" {
		c.Redis.FeedChannel = "borrowing_requests:created"
	}

	// Storage validation
	switch c.Storage.Type {
	case "", "local":
		c.Storage.Type = "local"
		if c.Storage.UploadDir == "" {
			return fmt.Errorf("upload directory is required for local storage")
		}
	case "s3":
		if c.Storage.S3.Endpoint == "" || c.Storage.S3.Bucket == "" {
			return fmt.Errorf("s3 endpoint and bucket are required")
		}
		if c.Storage.S3.URLExpiryHours <= 0 {
			c.Storage.S3.URLExpiryHours = 24 * 7
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}
	if c.Storage.MaxFileSize <= 0 {
		c.Storage.MaxFileSize = 10
	}

	// Email validation
	switch c.Email.Provider {
	case "", "none":
		c.Email.Provider = "none"
	case "smtp":
		if c.Email.SMTP.Host == "" {
			return fmt.Errorf("SMTP host is required")
		}
		if c.Email.SMTP.Port <= 0 || c.Email.SMTP.Port > 65535 {
			return fmt.Errorf("invalid SMTP port: %d", c.Email.SMTP.Port)
		}
	case "sendgrid":
		if c.Email.SendGrid.APIKey == "" {
			return fmt.Errorf("sendgrid api key is required")
		}
	default:
		return fmt.Errorf("unsupported email provider: %s", c.Email.Provider)
	}

	if c.Firebase.Enabled && c.Firebase.ProjectID == "" {
		return fmt.Errorf("firebase project id is required when push is enabled")
	}

	// JWT validation
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}

	// Fine defaults
	if c.Fines.DueDays <= 0 {
		c.Fines.DueDays = 7
	}
	if c.Fines.ReminderDaysBefore <= 0 {
		c.Fines.ReminderDaysBefore = 2
	}

	// Scheduler defaults
	if c.Scheduler.RefundDeposits == "" {
		c.Scheduler.RefundDeposits = "0 */10 * * * *" // every 10 minutes
	}
	if c.Scheduler.MarkOverdueFines == "" {
		c.Scheduler.MarkOverdueFines = "0 0 1 * * *" // 1 AM UTC
	}
	if c.Scheduler.SendFineReminders == "" {
		c.Scheduler.SendFineReminders = "0 0 8 * * *" // 8 AM UTC
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetHTTPAddress returns the admin API address
func (c *Config) GetHTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.HTTPPort)
}

// GetGRPCAddress returns the gRPC health listener address
func (c *Config) GetGRPCAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.GRPCPort)
}

// LeaseTTL returns how long an opened inspection stays reserved
func (c *Config) LeaseTTL() time.Duration {
	return time.Duration(c.Redis.LeaseTTLMinutes) * time.Minute
}
