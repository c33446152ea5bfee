// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	AUTHD_HOST="0.0.0.0"
//	AUTHD_PORT="8080"
//	AUTHD_HEALTH_PORT="9090"
//	AUTHD_READ_TIMEOUT="15s"
//	AUTHD_WRITE_TIMEOUT="15s"
//
// Store settings:
//
//	AUTHD_STORE_TYPE="postgres"  # postgres, file
//	AUTHD_POSTGRES_URL="postgres://localhost/authd"
//	AUTHD_POSTGRES_MAX_CONNS="25"
//	AUTHD_CATALOG_DIR="/etc/authd/roles"
//	AUTHD_SEED_BUILTIN_ROLES="true"
//	AUTHD_CLEANUP_SCHEDULE="@hourly"
//
// Cache settings:
//
//	AUTHD_CACHE_TYPE="memory"  # memory, redis, none
//	AUTHD_CACHE_TTL="5m"
//	AUTHD_CACHE_SIZE="10000"
//	AUTHD_REDIS_URL="redis://localhost:6379"
//
// Audit settings:
//
//	AUTHD_AUDIT_TYPE="db"  # db, file, none
//	AUTHD_AUDIT_FILE="/var/log/authd/audit.log"
//
// Observability settings:
//
//	AUTHD_LOG_LEVEL="info"  # debug, info, warn, error
//	AUTHD_METRICS_ENABLED="true"
//	AUTHD_OTEL_ENABLED="false"
//	AUTHD_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Store: %s\n", cfg.Store.Type)
//	fmt.Printf("Log level: %s\n", cfg.Observability.LogLevel)
//
// # Related Packages
//
//   - pkg/authz: Uses store and cache configuration
//   - pkg/observability: Uses observability configuration
package config
