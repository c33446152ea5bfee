package authz

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"

	"github.com/stroyhub/authd/pkg/audit"
	"github.com/stroyhub/authd/pkg/observability"
)

// Config holds wiring configuration for the authorization components
type Config struct {
	// CacheTTL is how long decisions stay cached. Zero disables caching.
	CacheTTL time.Duration

	// CacheSize bounds the in-memory decision cache
	CacheSize int

	// Redis, when set, is used for the decision cache instead of memory
	Redis *redis.Client

	// SeedBuiltIn seeds the built-in role catalog during Initialize
	SeedBuiltIn bool

	// Metrics, when set, receives check and mutation observations
	Metrics *observability.Metrics
}

// DefaultConfig returns default authorization configuration
func DefaultConfig() Config {
	return Config{
		CacheTTL:    5 * time.Minute,
		CacheSize:   10000,
		SeedBuiltIn: true,
	}
}

// Manager wires the store, resolver, engine, handlers and enforcement
// middleware into one component the service binary can mount.
type Manager struct {
	store      *Store
	catalog    *FileCatalog
	engine     *Engine
	handlers   *Handlers
	middleware *Middleware
	config     Config
}

// NewManager creates a database-backed authorization manager
func NewManager(db *sql.DB, auditLogger audit.Logger, logger *observability.Logger, config Config) *Manager {
	store := NewStore(db)
	resolver := NewResolver(store)

	opts := []EngineOption{WithModuleCatalog(store)}
	if cache := buildCache(config); cache != nil {
		opts = append(opts, WithDecisionCache(cache))
	}
	if config.Metrics != nil {
		opts = append(opts, WithMetrics(config.Metrics))
	}
	engine := NewEngine(resolver, opts...)

	return &Manager{
		store:      store,
		engine:     engine,
		handlers:   NewHandlers(engine, store, store, auditLogger, logger),
		middleware: NewMiddleware(engine),
		config:     config,
	}
}

// NewFileManager creates a manager backed by a YAML role catalog. Role
// administration endpoints are disabled; the catalog files are the
// source of truth.
func NewFileManager(catalog *FileCatalog, auditLogger audit.Logger, logger *observability.Logger, config Config) *Manager {
	resolver := NewResolver(catalog)

	var opts []EngineOption
	if cache := buildCache(config); cache != nil {
		opts = append(opts, WithDecisionCache(cache))
	}
	if config.Metrics != nil {
		opts = append(opts, WithMetrics(config.Metrics))
	}
	engine := NewEngine(resolver, opts...)

	return &Manager{
		catalog:    catalog,
		engine:     engine,
		handlers:   NewHandlers(engine, nil, nil, auditLogger, logger),
		middleware: NewMiddleware(engine),
		config:     config,
	}
}

func buildCache(config Config) DecisionCache {
	if config.CacheTTL <= 0 {
		return nil
	}
	if config.Redis != nil {
		return NewRedisDecisionCache(config.Redis, config.CacheTTL)
	}
	size := config.CacheSize
	if size <= 0 {
		size = 10000
	}
	return NewMemoryDecisionCache(size, config.CacheTTL)
}

// Initialize runs migrations and seeds the built-in role catalog. It is
// a no-op for file-backed managers.
func (m *Manager) Initialize(ctx context.Context) error {
	if m.store == nil {
		return nil
	}

	if err := RunMigrations(ctx, m.store.DB()); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	if m.config.SeedBuiltIn {
		if err := m.store.SeedBuiltInRoles(ctx); err != nil {
			return fmt.Errorf("seed built-in roles: %w", err)
		}
	}

	return nil
}

// RegisterRoutes mounts the authorization routes on the router
func (m *Manager) RegisterRoutes(router *mux.Router) {
	m.handlers.RegisterRoutes(router)
}

// Engine returns the decision engine
func (m *Manager) Engine() *Engine {
	return m.engine
}

// Store returns the database store, or nil for file-backed managers
func (m *Manager) Store() *Store {
	return m.store
}

// Middleware returns the enforcement middleware
func (m *Manager) Middleware() *Middleware {
	return m.middleware
}

// Can is a convenience wrapper for a boolean permission check
func (m *Manager) Can(ctx context.Context, user User, permission string, scope *Context) (bool, error) {
	return m.engine.Can(ctx, user, permission, scope)
}

// CleanupExpired removes assignments that expired before now. The
// service binary runs this on a schedule.
func (m *Manager) CleanupExpired(ctx context.Context) (int64, error) {
	if m.store == nil {
		return 0, nil
	}
	return m.store.CleanupExpiredAssignments(ctx, time.Now().UTC())
}

// Stats reports row counts for monitoring
func (m *Manager) Stats(ctx context.Context) (map[string]int64, error) {
	if m.store == nil {
		return map[string]int64{}, nil
	}

	stats := make(map[string]int64)
	for name, query := range map[string]string{
		"roles":       `SELECT COUNT(*) FROM roles WHERE is_active = TRUE`,
		"assignments": `SELECT COUNT(*) FROM role_assignments`,
		"contexts":    `SELECT COUNT(*) FROM auth_contexts`,
	} {
		var count int64
		if err := m.store.DB().QueryRowContext(ctx, query).Scan(&count); err != nil {
			return nil, fmt.Errorf("count %s: %w", name, err)
		}
		stats[name] = count
	}
	return stats, nil
}
