package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// DefaultBootstrapPath is read when neither -config nor a launch request is
// given on the command line.
const DefaultBootstrapPath = "/etc/appmgr/initial.config"

// Config holds all process configuration.
type Config struct {
	Manager   ManagerConfig
	Admin     AdminConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ManagerConfig holds component manager configuration.
type ManagerConfig struct {
	StagingDir    string        `envconfig:"APPMGR_STAGING_DIR"`
	LaunchTimeout time.Duration `envconfig:"APPMGR_LAUNCH_TIMEOUT" default:"30s"`
	MountPath     string        `envconfig:"APPMGR_MOUNT"`
}

// AdminConfig holds admin HTTP server configuration.
type AdminConfig struct {
	Enabled        bool     `envconfig:"ADMIN_ENABLED" default:"true"`
	Host           string   `envconfig:"ADMIN_HOST" default:"127.0.0.1"`
	Port           string   `envconfig:"ADMIN_PORT" default:"8300"`
	AllowedOrigins []string `envconfig:"ADMIN_CORS_ORIGINS" default:"http://localhost:3000"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"50"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"100"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Addr returns the admin listen address.
func (a AdminConfig) Addr() string {
	return a.Host + ":" + a.Port
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Manager: ManagerConfig{
			LaunchTimeout: 30 * time.Second,
		},
		Admin: AdminConfig{
			Enabled:        true,
			Host:           "127.0.0.1",
			Port:           "8300",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,
		},
	}
}
