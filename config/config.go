// Package config loads and validates clearmatch configuration from the environment,
// an optional .env file, and an optional config file using Viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	// DBDriver is "sqlite" (default) or "postgres".
	DBDriver string `mapstructure:"DB_DRIVER"`
	// DBPath is the SQLite file; defaults under the XDG data home.
	DBPath string `mapstructure:"DB_PATH"`
	// DatabaseURL is the Postgres DSN, required when DBDriver is postgres.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	HubSpotBaseURL string `mapstructure:"HUBSPOT_BASE_URL"`
	// HubSpotAccessToken is the private app token. HubSpotAccessTokenFile takes precedence.
	HubSpotAccessToken     string `mapstructure:"HUBSPOT_ACCESS_TOKEN"`
	HubSpotAccessTokenFile string `mapstructure:"HUBSPOT_ACCESS_TOKEN_FILE"`
	// HubSpotPageSize is the contacts page size (1-100).
	HubSpotPageSize int `mapstructure:"HUBSPOT_PAGE_SIZE"`
	// HubSpotRequestsPerSecond throttles HubSpot calls. 0 disables throttling.
	HubSpotRequestsPerSecond float64 `mapstructure:"HUBSPOT_REQUESTS_PER_SECOND"`

	// SyncPageDelay is the fixed pause before each following page request (e.g. "100ms").
	SyncPageDelay         time.Duration `mapstructure:"SYNC_PAGE_DELAY"`
	SyncUpdateConcurrency int           `mapstructure:"SYNC_UPDATE_CONCURRENCY"`

	// HTTPAddr is the listen address for `serve`.
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// AuthJWTSecret verifies HS256 bearer tokens. Empty disables auth.
	AuthJWTSecret string `mapstructure:"AUTH_JWT_SECRET"`
	// DefaultOrganizationID is used when a request names no organization.
	DefaultOrganizationID string `mapstructure:"DEFAULT_ORGANIZATION_ID"`

	Debug   bool `mapstructure:"DEBUG"`
	LogJSON bool `mapstructure:"LOG_JSON"`
}

// Keys lists every configuration key, so callers can bind flags to the same names.
var Keys = []string{
	"DB_DRIVER", "DB_PATH", "DATABASE_URL",
	"HUBSPOT_BASE_URL", "HUBSPOT_ACCESS_TOKEN", "HUBSPOT_ACCESS_TOKEN_FILE", "HUBSPOT_PAGE_SIZE",
	"HUBSPOT_REQUESTS_PER_SECOND", "SYNC_PAGE_DELAY", "SYNC_UPDATE_CONCURRENCY",
	"HTTP_ADDR", "AUTH_JWT_SECRET", "DEFAULT_ORGANIZATION_ID",
	"DEBUG", "LOG_JSON",
}

// DefaultDBPath returns the XDG-compliant SQLite location.
func DefaultDBPath() string {
	return filepath.Join(xdg.DataHome, "clearmatch", "clearmatch.db")
}

// Load builds Config with a fresh Viper instance. See LoadWith.
func Load(path string) (*Config, error) {
	return LoadWith(viper.New(), path)
}

// LoadWith reads .env (if present) into the environment, then the optional config file at
// path, then environment variables, and validates the result. Flags bound to v win over all.
func LoadWith(v *viper.Viper, path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: reading .env: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	v.AutomaticEnv()

	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_PATH", DefaultDBPath())
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("HUBSPOT_BASE_URL", "https://api.hubapi.com")
	v.SetDefault("HUBSPOT_ACCESS_TOKEN", "")
	v.SetDefault("HUBSPOT_ACCESS_TOKEN_FILE", "")
	v.SetDefault("HUBSPOT_PAGE_SIZE", 100)
	v.SetDefault("HUBSPOT_REQUESTS_PER_SECOND", 10)
	v.SetDefault("SYNC_PAGE_DELAY", "100ms")
	v.SetDefault("SYNC_UPDATE_CONCURRENCY", 8)
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("AUTH_JWT_SECRET", "")
	v.SetDefault("DEFAULT_ORGANIZATION_ID", "")
	v.SetDefault("DEBUG", false)
	v.SetDefault("LOG_JSON", false)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks field ranges. The HubSpot token is checked lazily by HubSpotToken,
// since commands like `status` and `migrate` never call HubSpot.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite":
		if strings.TrimSpace(c.DBPath) == "" {
			return errors.New("config: DB_PATH must be set for the sqlite driver")
		}
	case "postgres":
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return errors.New("config: DATABASE_URL must be set for the postgres driver")
		}
	default:
		return fmt.Errorf("config: DB_DRIVER must be sqlite or postgres, got %q", c.DBDriver)
	}

	if c.HubSpotPageSize < 1 || c.HubSpotPageSize > 100 {
		return errors.New("config: HUBSPOT_PAGE_SIZE must be between 1 and 100")
	}
	if c.HubSpotRequestsPerSecond < 0 {
		return errors.New("config: HUBSPOT_REQUESTS_PER_SECOND must not be negative")
	}
	if c.SyncPageDelay < 0 {
		return errors.New("config: SYNC_PAGE_DELAY must not be negative")
	}
	if c.SyncUpdateConcurrency < 1 {
		return errors.New("config: SYNC_UPDATE_CONCURRENCY must be at least 1")
	}

	return nil
}

// DSN returns the data source for the configured driver.
func (c *Config) DSN() string {
	if c.DBDriver == "postgres" {
		return c.DatabaseURL
	}
	return c.DBPath
}

// HubSpotToken resolves the HubSpot access token, preferring the token file.
func (c *Config) HubSpotToken() (string, error) {
	return LoadSecret(SecretSource{
		Name:  "HubSpot access token",
		Value: c.HubSpotAccessToken,
		File:  c.HubSpotAccessTokenFile,
	})
}

// AuthEnabled reports whether HTTP requests must carry a verified JWT.
func (c *Config) AuthEnabled() bool {
	return strings.TrimSpace(c.AuthJWTSecret) != ""
}
