package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Application   ApplicationConfig   `yaml:"application"`
	Database      DatabaseConfig      `yaml:"database"`
	EmailClient   EmailClientConfig   `yaml:"email_client"`
	Subscriptions SubscriptionsConfig `yaml:"subscriptions"`
	Redis         RedisConfig         `yaml:"redis"`
	Log           LogConfig           `yaml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// ApplicationConfig holds settings about the public-facing application
type ApplicationConfig struct {
	// BaseURL is the externally reachable address used in confirmation links.
	BaseURL string `yaml:"base_url"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL                    string `yaml:"url"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `yaml:"conn_max_lifetime_seconds"`
	ConnectTimeoutSeconds  int    `yaml:"connect_timeout_seconds"`
	StatementTimeoutMs     int    `yaml:"statement_timeout_ms"`
}

// ConnMaxLifetime returns the configured connection lifetime as a duration
func (c DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeSeconds) * time.Second
}

// EmailClientConfig selects and configures the confirmation email dispatcher
type EmailClientConfig struct {
	Provider            string    `yaml:"provider"` // "postmark" or "ses"
	BaseURL             string    `yaml:"base_url"`
	SenderEmail         string    `yaml:"sender_email"`
	AuthorizationToken  string    `yaml:"authorization_token"`
	TimeoutMilliseconds int       `yaml:"timeout_milliseconds"`
	MaxRetries          int       `yaml:"max_retries"`
	SES                 SESConfig `yaml:"ses"`
}

// Timeout returns the configured timeout as a duration
func (c EmailClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMilliseconds) * time.Millisecond
}

// SESConfig holds AWS SES API configuration
type SESConfig struct {
	Region           string `yaml:"region"`
	AccessKey        string `yaml:"access_key"`
	SecretKey        string `yaml:"secret_key"`
	ConfigurationSet string `yaml:"configuration_set"`
}

// SubscriptionsConfig holds onboarding workflow settings
type SubscriptionsConfig struct {
	// TokenAttempts bounds retries after a confirmation token collision.
	TokenAttempts int `yaml:"token_attempts"`
}

// RedisConfig holds the optional Redis connection used for locking
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Enabled reports whether a Redis address is configured
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// LogConfig holds logger settings
type LogConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Redact returns whether PII redaction is on. Defaults to true.
func (c LogConfig) Redact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Application.BaseURL == "" {
		cfg.Application.BaseURL = "http://localhost:8000"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetimeSeconds == 0 {
		cfg.Database.ConnMaxLifetimeSeconds = 300
	}
	if cfg.Database.ConnectTimeoutSeconds == 0 {
		cfg.Database.ConnectTimeoutSeconds = 5
	}
	if cfg.Database.StatementTimeoutMs == 0 {
		cfg.Database.StatementTimeoutMs = 15000
	}
	if cfg.EmailClient.Provider == "" {
		cfg.EmailClient.Provider = "postmark"
	}
	if cfg.EmailClient.TimeoutMilliseconds == 0 {
		cfg.EmailClient.TimeoutMilliseconds = 10000
	}
	if cfg.EmailClient.SES.Region == "" {
		cfg.EmailClient.SES.Region = "us-east-1"
	}
	if cfg.Subscriptions.TokenAttempts == 0 {
		cfg.Subscriptions.TokenAttempts = 3
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("APP_BASE_URL"); v != "" {
		cfg.Application.BaseURL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("EMAIL_CLIENT_PROVIDER"); v != "" {
		cfg.EmailClient.Provider = v
	}
	if v := os.Getenv("EMAIL_CLIENT_BASE_URL"); v != "" {
		cfg.EmailClient.BaseURL = v
	}
	if v := os.Getenv("EMAIL_CLIENT_SENDER_EMAIL"); v != "" {
		cfg.EmailClient.SenderEmail = v
	}
	if v := os.Getenv("EMAIL_CLIENT_AUTHORIZATION_TOKEN"); v != "" {
		cfg.EmailClient.AuthorizationToken = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.EmailClient.SES.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.EmailClient.SES.SecretKey = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.EmailClient.SES.Region = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	return cfg, nil
}
