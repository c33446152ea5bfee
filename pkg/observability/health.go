package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
)

// HealthChecker probes the service's dependencies.
type HealthChecker struct {
	db    *sql.DB
	redis *redis.Client
}

// NewHealthChecker creates a checker. Either dependency may be nil when
// the deployment does not use it.
func NewHealthChecker(db *sql.DB, rdb *redis.Client) *HealthChecker {
	return &HealthChecker{db: db, redis: rdb}
}

// HealthStatus is the aggregate probe result.
type HealthStatus struct {
	Healthy   bool              `json:"healthy"`
	Checks    map[string]string `json:"checks"`
	CheckedAt time.Time         `json:"checked_at"`
}

// Check probes each configured dependency with a short deadline.
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status := HealthStatus{
		Healthy:   true,
		Checks:    make(map[string]string),
		CheckedAt: time.Now().UTC(),
	}

	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			status.Healthy = false
			status.Checks["database"] = err.Error()
		} else {
			status.Checks["database"] = "ok"
		}
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			status.Healthy = false
			status.Checks["redis"] = err.Error()
		} else {
			status.Checks["redis"] = "ok"
		}
	}

	return status
}

// Handler serves the probe as JSON, 503 when unhealthy.
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := h.Check(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if !status.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(status)
	})
}
