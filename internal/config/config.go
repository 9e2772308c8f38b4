package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL"`
	DBMinConns  int32  `envconfig:"DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"8"`

	// APIKey and APIKeyBcrypt guard write endpoints. The hash wins when both are set.
	APIKey       string `envconfig:"API_KEY"`
	APIKeyBcrypt string `envconfig:"API_KEY_BCRYPT"`

	RedisURL          string        `envconfig:"REDIS_URL"`
	DirectoryCacheTTL time.Duration `envconfig:"DIRECTORY_CACHE_TTL" default:"5m"`

	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`
	HTTPHost           string `envconfig:"HTTP_HOST" default:"0.0.0.0"`
	HTTPPort           int    `envconfig:"HTTP_PORT" default:"8080"`
}

// Load reads the environment and requires a database.
func Load() (*Config, error) {
	cfg, err := process()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithoutDatabase is used by commands that can run on the in-memory store.
func LoadWithoutDatabase() (*Config, error) {
	cfg, err := process()
	if err != nil {
		return nil, err
	}
	if err := cfg.validateCommon(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func process() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) cannot exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return c.validateCommon()
}

func (c *Config) validateCommon() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.DirectoryCacheTTL < 0 {
		return fmt.Errorf("DIRECTORY_CACHE_TTL must be >= 0")
	}
	return nil
}

// HasAPIKey reports whether any write credential is configured.
func (c *Config) HasAPIKey() bool {
	if c == nil {
		return false
	}
	return strings.TrimSpace(c.APIKey) != "" || strings.TrimSpace(c.APIKeyBcrypt) != ""
}

func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPHost, c.HTTPPort)
}

func (c *Config) CORSAllowedOriginsList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		if _, exists := seen[origin]; exists {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	return origins
}
