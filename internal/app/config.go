package app

import (
	"encoding/hex"
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds the complete application configuration, loadable from
// environment variables (DISCOUNTS_ prefix), flags, or YAML config files.
type Config struct {
	Addr           string        `default:"0.0.0.0:8080" usage:"API server listen address"`
	Timezone       string        `default:"UTC" usage:"IANA time zone used to compare discount date windows"`
	RequestTimeout time.Duration `default:"10s" usage:"Per-request handler timeout, 0 disables" flag:"request-timeout"`
	Storage        StorageConfig
	Admin          AdminConfig
	RateLimit      RateLimitConfig
	CORS           CORSConfig
	Graceful       GracefulConfig
}

// StorageConfig selects and configures the discount store.
type StorageConfig struct {
	Driver          string        `default:"postgres" usage:"Storage backend: postgres or memory"`
	DatabaseURL     string        `usage:"PostgreSQL connection URL (DISCOUNTS_STORAGE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	MaxConns        int32         `default:"10" usage:"Maximum pool connections"`
	MinConns        int32         `default:"0" usage:"Minimum idle pool connections"`
	MaxConnLifetime time.Duration `default:"1h" usage:"Maximum lifetime of a pooled connection"`
}

// AdminConfig controls authentication of the discount management routes.
//
// With KeyHash set, only that key is accepted. Otherwise the postgres driver
// looks keys up in the api_keys table. The memory driver without KeyHash
// leaves admin routes open.
type AdminConfig struct {
	KeyHash string `usage:"Hex HMAC-SHA256 of the admin API key" flag:"admin-key-hash"`
	Pepper  string `usage:"HMAC pepper for API key hashing (DISCOUNTS_ADMIN_PEPPER)" flag:"admin-pepper"`
}

// RateLimitConfig controls the per-client token bucket.
type RateLimitConfig struct {
	RPS     float64       `default:"20" usage:"Sustained requests per second per client, 0 disables"`
	Burst   int           `default:"40" usage:"Burst size per client"`
	IdleTTL time.Duration `default:"10m" usage:"Forget clients idle for this long"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
	MaxAge           int      `default:"86400" usage:"Preflight cache duration in seconds"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, flags and YAML
// config files, then applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(os.Args[1:], []string{"config.yaml", "/etc/discounts/config.yaml"})
}

func loadConfig(args, files []string) (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "DISCOUNTS",
		Args:      args,
		Files:     files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's DISCOUNTS_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.Storage.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.Storage.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("database URL is required: set DISCOUNTS_STORAGE_DATABASE_URL or DATABASE_URL")
		}
	case DriverMemory:
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if _, err := c.Location(); err != nil {
		return err
	}

	if c.Admin.KeyHash != "" {
		if b, err := hex.DecodeString(c.Admin.KeyHash); err != nil || len(b) != 32 {
			return errors.New("admin key hash must be 64 hex characters")
		}
	}
	if c.Admin.Pepper == "" && (c.Admin.KeyHash != "" || c.Storage.Driver == DriverPostgres) {
		return errors.New("admin pepper is required: set DISCOUNTS_ADMIN_PEPPER")
	}

	if c.RateLimit.RPS > 0 && c.RateLimit.Burst <= 0 {
		return errors.New("rate limit burst must be positive")
	}
	return nil
}

// Location returns the time zone for date window checks.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "load timezone %q", c.Timezone)
	}
	return loc, nil
}
