package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/stroyhub/authd/pkg/observability"
)

// Decision is the outcome of one authorization check: Allow, or a
// structured Deny whose Reason renders both a log record and an HTTP
// payload.
type Decision struct {
	Allowed      bool       `json:"allowed"`
	Reason       DenyReason `json:"-"`
	MatchedRoles []string   `json:"matched_roles,omitempty"`
	CheckedAt    time.Time  `json:"checked_at"`
	Cached       bool       `json:"cached,omitempty"`
}

// Engine evaluates authorization requests against resolved permission
// sets. It is a pure synchronous evaluator: everything it consults is
// fetched through snapshot interfaces before or during one call, and no
// state is shared between checks, so a single Engine is safe for
// concurrent use.
type Engine struct {
	resolver *Resolver
	modules  ModuleCatalog
	cache    DecisionCache
	metrics  *observability.Metrics
	tracer   trace.Tracer
	now      func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithModuleCatalog makes module-scoped checks consult activation state
// before evaluating permissions.
func WithModuleCatalog(catalog ModuleCatalog) EngineOption {
	return func(e *Engine) { e.modules = catalog }
}

// WithDecisionCache memoizes decisions by request hash. Entries must be
// invalidated when role assignments change: a stale Allow is a security
// bug, not a correctness nuisance, so keep the cache TTL short.
func WithDecisionCache(cache DecisionCache) EngineOption {
	return func(e *Engine) { e.cache = cache }
}

// WithMetrics records check outcomes, latencies and decision cache
// traffic on the given collectors.
func WithMetrics(metrics *observability.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = metrics }
}

// NewEngine creates a decision engine over the given resolver.
func NewEngine(resolver *Resolver, opts ...EngineOption) *Engine {
	e := &Engine{
		resolver: resolver,
		tracer:   otel.Tracer("authz"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Authorize evaluates one request. A denial is a definitive answer
// carried in the Decision, not an error; the error return is reserved
// for infrastructure failures (the role store being unreachable, a
// broken module catalog).
func (e *Engine) Authorize(ctx context.Context, req Request) (*Decision, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "authz.Authorize",
		trace.WithAttributes(
			attribute.Int64("authz.user_id", req.User().ID),
			attribute.String("authz.permission", req.Permission()),
			attribute.String("authz.kind", string(req.Kind())),
		))
	defer span.End()

	user := req.User()
	if !user.IsActive {
		return e.observe(req, e.deny(span, NewUserBlocked(user.ID)), start), nil
	}

	cacheKey := decisionKey(user.ID, req.Hash())
	if e.cache != nil {
		if d, ok := e.cache.Get(ctx, cacheKey); ok {
			if e.metrics != nil {
				e.metrics.CacheHitsTotal.Inc()
			}
			cached := *d
			cached.Cached = true
			span.SetAttributes(attribute.Bool("authz.cached", true), attribute.Bool("authz.allowed", cached.Allowed))
			return e.observe(req, &cached, start), nil
		}
		if e.metrics != nil {
			e.metrics.CacheMissesTotal.Inc()
		}
	}

	res, err := e.resolver.Resolve(ctx, user.ID, req.Context())
	if err != nil {
		var rnf *RoleNotFoundError
		if errors.As(err, &rnf) {
			rnf.UserID = user.ID
			return e.observe(req, e.deny(span, rnf), start), nil
		}
		return nil, err
	}

	var decision *Decision
	switch req.Kind() {
	case KindRole:
		decision, err = e.authorizeRole(ctx, req, res)
	case KindInterface:
		decision = e.authorizeInterface(req, res)
	case KindModule:
		decision, err = e.authorizeModule(ctx, req, res)
	default:
		decision = e.authorizePermission(req, res, req.Permission())
	}
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Bool("authz.allowed", decision.Allowed))
	if e.cache != nil {
		e.cache.Set(ctx, cacheKey, decision)
	}
	return e.observe(req, decision, start), nil
}

func (e *Engine) observe(req Request, d *Decision, start time.Time) *Decision {
	if e.metrics != nil {
		reason := ""
		if d.Reason != nil {
			reason = d.Reason.ReasonKind()
		}
		e.metrics.ObserveCheck(string(req.Kind()), d.Allowed, reason, time.Since(start))
	}
	return d
}

// ObserveMutation counts one role or assignment mutation when metrics
// are wired. The admin handlers call this alongside the audit event.
func (e *Engine) ObserveMutation(operation string) {
	if e.metrics != nil {
		e.metrics.RoleMutationsTotal.WithLabelValues(operation).Inc()
	}
}

// Can is a convenience wrapper that collapses the decision to a boolean.
// The full diagnostic is discarded; prefer Authorize anywhere the denial
// reason reaches a log or a client.
func (e *Engine) Can(ctx context.Context, user User, permission string, scope *Context) (bool, error) {
	d, err := e.Authorize(ctx, NewRequest(user, permission).WithContext(scope))
	if err != nil {
		return false, err
	}
	return d.Allowed, nil
}

// EffectivePermissions resolves and merges the user's applicable roles
// without checking anything, for introspection endpoints.
func (e *Engine) EffectivePermissions(ctx context.Context, userID int64, scope *Context) (PermissionSet, error) {
	res, err := e.resolver.Resolve(ctx, userID, scope)
	if err != nil {
		return NewPermissionSet(nil, nil), err
	}
	return res.Permissions, nil
}

// InvalidateUser drops cached decisions for the user. Callers must
// invoke this on every role or assignment mutation affecting the user.
func (e *Engine) InvalidateUser(ctx context.Context, userID int64) {
	if e.cache != nil {
		e.cache.InvalidateUser(ctx, userID)
	}
}

func (e *Engine) authorizeRole(ctx context.Context, req Request, res *Resolution) (*Decision, error) {
	slug := req.RoleSlug()
	orgID := req.OrganizationID()

	// The slug must resolve to a stored definition before possession is
	// checked: a deleted role is misconfiguration, not denial.
	role, err := e.resolver.roles.GetRoleBySlug(ctx, slug, orgID)
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			var rnf *RoleNotFoundError
			if orgID != nil {
				rnf = NewCustomRoleNotFound(slug, *orgID)
			} else {
				rnf = NewSystemRoleNotFound(slug)
			}
			rnf.UserID = req.User().ID
			return e.denied(rnf), nil
		}
		return nil, fmt.Errorf("look up role %q: %w", slug, err)
	}
	if !role.IsActive {
		rnf := NewInactiveRole(role.Slug, role.OrganizationID)
		rnf.UserID = req.User().ID
		return e.denied(rnf), nil
	}

	if res.HoldsRole(slug) {
		return e.allowed([]string{slug}), nil
	}
	if len(res.Roles) == 0 && len(res.ExpiredSlugs) > 0 {
		return e.denied(NewExpiredRole(req.User().ID, res.ExpiredSlugs[0], req.Context())), nil
	}
	return e.denied(NewInsufficientPermissions(req.User().ID, []string{rolePrefix + slug}, res.Permissions.All(), req.Context())), nil
}

func (e *Engine) authorizeInterface(req Request, res *Resolution) *Decision {
	if res.Permissions.HasSystemPermission(req.Permission()) {
		return e.allowed(res.RoleNames())
	}
	if len(res.Roles) == 0 && len(res.ExpiredSlugs) > 0 {
		return e.denied(NewExpiredRole(req.User().ID, res.ExpiredSlugs[0], req.Context()))
	}
	return e.denied(NewCannotAccessInterface(req.User().ID, req.InterfaceName(), req.Context()))
}

func (e *Engine) authorizeModule(ctx context.Context, req Request, res *Resolution) (*Decision, error) {
	if e.modules != nil {
		if orgID := req.OrganizationID(); orgID != nil {
			active, err := e.modules.IsModuleActive(ctx, *orgID, req.Module())
			if err != nil {
				return nil, fmt.Errorf("check module %q activation: %w", req.Module(), err)
			}
			if !active {
				return e.denied(NewModuleNotActive(req.User().ID, req.Module(), orgID, req.Context())), nil
			}
		}
	}
	return e.authorizePermission(req, res, req.Permission()), nil
}

func (e *Engine) authorizePermission(req Request, res *Resolution, permission string) *Decision {
	if res.Permissions.HasPermission(permission) {
		var matched []string
		for _, role := range res.Roles {
			if role.PermissionSet().HasPermission(permission) {
				matched = append(matched, role.Slug)
			}
		}
		return e.allowed(matched)
	}
	if len(res.Roles) == 0 && len(res.ExpiredSlugs) > 0 {
		return e.denied(NewExpiredRole(req.User().ID, res.ExpiredSlugs[0], req.Context()))
	}
	return e.denied(NewInsufficientPermissions(req.User().ID, []string{permission}, res.Permissions.All(), req.Context()))
}

func (e *Engine) allowed(matched []string) *Decision {
	return &Decision{
		Allowed:      true,
		MatchedRoles: matched,
		CheckedAt:    e.now().UTC(),
	}
}

func (e *Engine) denied(reason DenyReason) *Decision {
	return &Decision{
		Allowed:   false,
		Reason:    reason,
		CheckedAt: e.now().UTC(),
	}
}

func (e *Engine) deny(span trace.Span, reason DenyReason) *Decision {
	span.SetAttributes(
		attribute.Bool("authz.allowed", false),
		attribute.String("authz.deny_reason", reason.ReasonKind()),
	)
	return e.denied(reason)
}

func decisionKey(userID int64, hash string) string {
	return fmt.Sprintf("authz:decision:%d:%s", userID, hash)
}
