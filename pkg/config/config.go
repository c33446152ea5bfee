package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/stroyhub/authd/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Store configuration
	Store StoreConfig

	// Cache configuration
	Cache CacheConfig

	// Audit configuration
	Audit AuditConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string

	// MaxBodyBytes limits request body size
	MaxBodyBytes int64
}

// StoreConfig holds role store configuration
type StoreConfig struct {
	// Type selects the backend: "postgres" or "file"
	Type string

	// Postgres settings
	PostgresURL      string
	PostgresMaxConns int
	PostgresMinConns int

	// File catalog settings
	CatalogDir   string
	CatalogWatch bool

	// SeedBuiltIn seeds the built-in role catalog on startup
	SeedBuiltIn bool

	// CleanupInterval is the cron schedule for sweeping expired assignments
	CleanupSchedule string
}

// CacheConfig holds decision cache configuration
type CacheConfig struct {
	// Type selects the backend: "memory", "redis" or "none"
	Type string

	TTL time.Duration

	// Memory cache settings
	MemorySize int

	// Redis settings
	RedisURL      string
	RedisPassword string
	RedisDB       int
	RedisPoolSize int
}

// AuditConfig holds audit trail configuration
type AuditConfig struct {
	// Type selects the backend: "db", "file" or "none"
	Type string

	FilePath    string
	FileMaxSize int64
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Store:         loadStoreConfig(),
		Cache:         loadCacheConfig(),
		Audit:         loadAuditConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("AUTHD_HOST", "0.0.0.0"),
		Port:            getEnv("AUTHD_PORT", "8080"),
		ReadTimeout:     getEnvDuration("AUTHD_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("AUTHD_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("AUTHD_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("AUTHD_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("AUTHD_HEALTH_PORT", "9090"),
		MaxBodyBytes:    getEnvInt64("AUTHD_MAX_BODY_BYTES", 1*1024*1024),
	}
}

// loadStoreConfig loads role store configuration from environment
func loadStoreConfig() StoreConfig {
	return StoreConfig{
		Type:             getEnv("AUTHD_STORE_TYPE", "postgres"),
		PostgresURL:      getEnv("AUTHD_POSTGRES_URL", ""),
		PostgresMaxConns: getEnvInt("AUTHD_POSTGRES_MAX_CONNS", 25),
		PostgresMinConns: getEnvInt("AUTHD_POSTGRES_MIN_CONNS", 5),
		CatalogDir:       getEnv("AUTHD_CATALOG_DIR", ""),
		CatalogWatch:     getEnvBool("AUTHD_CATALOG_WATCH", true),
		SeedBuiltIn:      getEnvBool("AUTHD_SEED_BUILTIN_ROLES", true),
		CleanupSchedule:  getEnv("AUTHD_CLEANUP_SCHEDULE", "@hourly"),
	}
}

// loadCacheConfig loads decision cache configuration from environment
func loadCacheConfig() CacheConfig {
	return CacheConfig{
		Type:          getEnv("AUTHD_CACHE_TYPE", "memory"),
		TTL:           getEnvDuration("AUTHD_CACHE_TTL", 5*time.Minute),
		MemorySize:    getEnvInt("AUTHD_CACHE_SIZE", 10000),
		RedisURL:      getEnv("AUTHD_REDIS_URL", ""),
		RedisPassword: getEnv("AUTHD_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("AUTHD_REDIS_DB", 0),
		RedisPoolSize: getEnvInt("AUTHD_REDIS_POOL_SIZE", 10),
	}
}

// loadAuditConfig loads audit trail configuration from environment
func loadAuditConfig() AuditConfig {
	return AuditConfig{
		Type:        getEnv("AUTHD_AUDIT_TYPE", "db"),
		FilePath:    getEnv("AUTHD_AUDIT_FILE", "/var/log/authd/audit.log"),
		FileMaxSize: getEnvInt64("AUTHD_AUDIT_FILE_MAX_SIZE", 100*1024*1024),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("AUTHD_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("AUTHD_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("AUTHD_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("AUTHD_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("AUTHD_OTEL_SERVICE_NAME", "authd"),
		OTelServiceVersion: getEnv("AUTHD_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("AUTHD_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	switch c.Store.Type {
	case "postgres":
		if c.Store.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres store")
		}
	case "file":
		if c.Store.CatalogDir == "" {
			return fmt.Errorf("catalog directory is required for file store")
		}
	default:
		return fmt.Errorf("invalid store type: %s (must be postgres or file)", c.Store.Type)
	}

	switch c.Cache.Type {
	case "memory", "none":
	case "redis":
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("redis URL is required for redis cache")
		}
	default:
		return fmt.Errorf("invalid cache type: %s (must be memory, redis, or none)", c.Cache.Type)
	}

	switch c.Audit.Type {
	case "none":
	case "db":
		if c.Store.Type != "postgres" {
			return fmt.Errorf("db audit logger requires the postgres store")
		}
	case "file":
		if c.Audit.FilePath == "" {
			return fmt.Errorf("audit file path is required for file audit logger")
		}
	default:
		return fmt.Errorf("invalid audit type: %s (must be db, file, or none)", c.Audit.Type)
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
