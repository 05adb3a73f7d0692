package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearPlatformEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PORT", "")
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearPlatformEnv(t)
	t.Setenv("DISCOUNTS_STORAGE_DRIVER", "memory")

	cfg, err := loadConfig([]string{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, int32(10), cfg.Storage.MaxConns)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 20.0, cfg.RateLimit.RPS)
	assert.Equal(t, []string{"*"}, cfg.CORS.Origins)
	assert.Equal(t, 15*time.Second, cfg.Graceful.ShutdownTimeout)
}

func TestLoadConfig_PlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("PORT", "9090")
	t.Setenv("DISCOUNTS_ADMIN_PEPPER", "pepper")

	cfg, err := loadConfig([]string{}, nil)
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, "postgres://platform/db", cfg.Storage.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)
}

func TestLoadConfig_File(t *testing.T) {
	clearPlatformEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: 127.0.0.1:9000
timezone: Africa/Kigali
storage:
  driver: memory
rate_limit:
  rps: 5
  burst: 10
`), 0o600))

	cfg, err := loadConfig([]string{}, []string{path})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 5.0, cfg.RateLimit.RPS)
	assert.Equal(t, 10, cfg.RateLimit.Burst)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Africa/Kigali", loc.String())
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			Timezone:  "UTC",
			Storage:   StorageConfig{Driver: DriverPostgres, DatabaseURL: "postgres://x"},
			Admin:     AdminConfig{Pepper: "pepper"},
			RateLimit: RateLimitConfig{RPS: 1, Burst: 1},
		}
	}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"Valid", func(*Config) {}, ""},
		{"MemoryWithoutPepper", func(c *Config) {
			c.Storage = StorageConfig{Driver: DriverMemory}
			c.Admin.Pepper = ""
		}, ""},
		{"UnknownDriver", func(c *Config) { c.Storage.Driver = "redis" }, "unknown storage driver"},
		{"MissingURL", func(c *Config) { c.Storage.DatabaseURL = "" }, "database URL is required"},
		{"BadTimezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, "load timezone"},
		{"BadKeyHash", func(c *Config) { c.Admin.KeyHash = "abc" }, "64 hex characters"},
		{"PostgresWithoutPepper", func(c *Config) { c.Admin.Pepper = "" }, "admin pepper is required"},
		{"KeyHashWithoutPepper", func(c *Config) {
			c.Storage = StorageConfig{Driver: DriverMemory}
			c.Admin = AdminConfig{KeyHash: "0000000000000000000000000000000000000000000000000000000000000000"}
		}, "admin pepper is required"},
		{"ZeroBurst", func(c *Config) { c.RateLimit.Burst = 0 }, "burst must be positive"},
		{"RateLimitDisabled", func(c *Config) { c.RateLimit = RateLimitConfig{} }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
