// Package config loads application configuration from a YAML file with
// environment-variable overrides for everything secret or deploy-specific.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Provider   ProviderConfig   `yaml:"provider"`
	Deployment DeploymentConfig `yaml:"deployment"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// RedisConfig holds connection settings for progress tracking and locking.
// Redis is optional; with no address the server runs without live progress
// and falls back to advisory locks.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ProviderConfig selects and configures the mail-provider bridge.
type ProviderConfig struct {
	// Kind is "google" or "microsoft".
	Kind string `yaml:"kind"`

	// Google domain-wide delegation.
	GoogleCredentialsFile string `yaml:"google_credentials_file"`
	GmailBaseURL          string `yaml:"gmail_base_url"`

	// Microsoft client-credentials app.
	MicrosoftTenantID     string `yaml:"microsoft_tenant_id"`
	MicrosoftClientID     string `yaml:"microsoft_client_id"`
	MicrosoftClientSecret string `yaml:"microsoft_client_secret"`
	GraphBaseURL          string `yaml:"graph_base_url"`
}

// DeploymentConfig tunes the orchestrator and the reaper.
type DeploymentConfig struct {
	Concurrency         int `yaml:"concurrency"`
	WriteTimeoutSeconds int `yaml:"write_timeout_seconds"`
	ReapIntervalMinutes int `yaml:"reap_interval_minutes"`
	StuckAgeMinutes     int `yaml:"stuck_age_minutes"`
}

// WriteTimeout returns the per-target provider write timeout.
func (c DeploymentConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

// ReapInterval returns how often the reaper scans.
func (c DeploymentConfig) ReapInterval() time.Duration {
	return time.Duration(c.ReapIntervalMinutes) * time.Minute
}

// StuckAge returns how old a running deployment must be before reaping.
func (c DeploymentConfig) StuckAge() time.Duration {
	return time.Duration(c.StuckAgeMinutes) * time.Minute
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Load reads and parses the YAML file at path, applying defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Deployment.Concurrency == 0 {
		cfg.Deployment.Concurrency = 8
	}
	if cfg.Deployment.WriteTimeoutSeconds == 0 {
		cfg.Deployment.WriteTimeoutSeconds = 30
	}
	if cfg.Deployment.ReapIntervalMinutes == 0 {
		cfg.Deployment.ReapIntervalMinutes = 5
	}
	if cfg.Deployment.StuckAgeMinutes == 0 {
		cfg.Deployment.StuckAgeMinutes = 120
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	return &cfg, nil
}

// LoadFromEnv loads the YAML config, then overrides with environment
// variables where present. A .env file is honored if one exists.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("PROVIDER_KIND"); v != "" {
		cfg.Provider.Kind = v
	}
	if v := os.Getenv("GOOGLE_CREDENTIALS_FILE"); v != "" {
		cfg.Provider.GoogleCredentialsFile = v
	}
	if v := os.Getenv("MICROSOFT_TENANT_ID"); v != "" {
		cfg.Provider.MicrosoftTenantID = v
	}
	if v := os.Getenv("MICROSOFT_CLIENT_ID"); v != "" {
		cfg.Provider.MicrosoftClientID = v
	}
	if v := os.Getenv("MICROSOFT_CLIENT_SECRET"); v != "" {
		cfg.Provider.MicrosoftClientSecret = v
	}
	if v := os.Getenv("DEPLOYMENT_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Deployment.Concurrency = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	return cfg, nil
}
