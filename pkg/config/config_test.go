package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stroyhub/authd/pkg/observability"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080", HealthPort: "9090"},
		Store:  StoreConfig{Type: "postgres", PostgresURL: "postgres://localhost/authd"},
		Cache:  CacheConfig{Type: "memory"},
		Audit:  AuditConfig{Type: "db"},
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("AUTHD_POSTGRES_URL", "postgres://localhost/authd")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, int64(1024*1024), cfg.Server.MaxBodyBytes)

	assert.Equal(t, "postgres", cfg.Store.Type)
	assert.Equal(t, 25, cfg.Store.PostgresMaxConns)
	assert.True(t, cfg.Store.SeedBuiltIn)
	assert.Equal(t, "@hourly", cfg.Store.CleanupSchedule)

	assert.Equal(t, "memory", cfg.Cache.Type)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 10000, cfg.Cache.MemorySize)

	assert.Equal(t, "db", cfg.Audit.Type)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
	assert.True(t, cfg.Observability.MetricsEnabled)
	assert.False(t, cfg.Observability.OTelEnabled)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("AUTHD_PORT", "8181")
	t.Setenv("AUTHD_STORE_TYPE", "file")
	t.Setenv("AUTHD_CATALOG_DIR", "/etc/authd/roles")
	t.Setenv("AUTHD_CATALOG_WATCH", "false")
	t.Setenv("AUTHD_CACHE_TYPE", "redis")
	t.Setenv("AUTHD_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("AUTHD_CACHE_TTL", "30s")
	t.Setenv("AUTHD_AUDIT_TYPE", "file")
	t.Setenv("AUTHD_AUDIT_FILE", "/tmp/audit.log")
	t.Setenv("AUTHD_LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8181", cfg.Server.Port)
	assert.Equal(t, "file", cfg.Store.Type)
	assert.Equal(t, "/etc/authd/roles", cfg.Store.CatalogDir)
	assert.False(t, cfg.Store.CatalogWatch)
	assert.Equal(t, "redis", cfg.Cache.Type)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, "file", cfg.Audit.Type)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
}

func TestLoadConfig_InvalidFailsValidation(t *testing.T) {
	t.Setenv("AUTHD_STORE_TYPE", "postgres")
	t.Setenv("AUTHD_POSTGRES_URL", "")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing port", func(c *Config) { c.Server.Port = "" }, "server port"},
		{"missing health port", func(c *Config) { c.Server.HealthPort = "" }, "health port"},
		{"same ports", func(c *Config) { c.Server.HealthPort = "8080" }, "must be different"},
		{"postgres without url", func(c *Config) { c.Store.PostgresURL = "" }, "postgres URL"},
		{"file without dir", func(c *Config) {
			c.Store.Type = "file"
			c.Audit.Type = "none"
		}, "catalog directory"},
		{"unknown store", func(c *Config) { c.Store.Type = "dynamo" }, "invalid store type"},
		{"redis without url", func(c *Config) { c.Cache.Type = "redis" }, "redis URL"},
		{"unknown cache", func(c *Config) { c.Cache.Type = "memcached" }, "invalid cache type"},
		{"db audit without postgres", func(c *Config) {
			c.Store.Type = "file"
			c.Store.CatalogDir = "/etc/authd/roles"
		}, "db audit logger requires the postgres store"},
		{"file audit without path", func(c *Config) {
			c.Audit.Type = "file"
			c.Audit.FilePath = ""
		}, "audit file path"},
		{"unknown audit", func(c *Config) { c.Audit.Type = "syslog" }, "invalid audit type"},
		{"otel without endpoint", func(c *Config) {
			c.Observability.OTelEnabled = true
			c.Observability.OTelEndpoint = ""
		}, "OpenTelemetry endpoint"},
		{"otel without service name", func(c *Config) {
			c.Observability.OTelEnabled = true
			c.Observability.OTelEndpoint = "localhost:4317"
			c.Observability.OTelServiceName = ""
		}, "service name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("AUTHD_TEST_STRING", "value")
	assert.Equal(t, "value", getEnv("AUTHD_TEST_STRING", "fallback"))
	assert.Equal(t, "fallback", getEnv("AUTHD_TEST_UNSET", "fallback"))

	t.Setenv("AUTHD_TEST_BOOL", "1")
	assert.True(t, getEnvBool("AUTHD_TEST_BOOL", false))
	t.Setenv("AUTHD_TEST_BOOL", "TRUE")
	assert.True(t, getEnvBool("AUTHD_TEST_BOOL", false))
	t.Setenv("AUTHD_TEST_BOOL", "no")
	assert.False(t, getEnvBool("AUTHD_TEST_BOOL", true))

	t.Setenv("AUTHD_TEST_INT", "42")
	assert.Equal(t, 42, getEnvInt("AUTHD_TEST_INT", 1))
	t.Setenv("AUTHD_TEST_INT", "not-a-number")
	assert.Equal(t, 1, getEnvInt("AUTHD_TEST_INT", 1))

	t.Setenv("AUTHD_TEST_DURATION", "90s")
	assert.Equal(t, 90*time.Second, getEnvDuration("AUTHD_TEST_DURATION", time.Minute))
	t.Setenv("AUTHD_TEST_DURATION", "soon")
	assert.Equal(t, time.Minute, getEnvDuration("AUTHD_TEST_DURATION", time.Minute))
}
