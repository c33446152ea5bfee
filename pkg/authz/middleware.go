package authz

import (
	"context"
	"net/http"

	"github.com/stroyhub/authd/pkg/contextkeys"
	"github.com/stroyhub/authd/pkg/httputil"
)

// Middleware enforces authorization on HTTP routes. It expects the
// principal and scope middleware to have populated the request context.
type Middleware struct {
	engine *Engine
}

// NewMiddleware creates enforcement middleware around the engine
func NewMiddleware(engine *Engine) *Middleware {
	return &Middleware{engine: engine}
}

// RequirePermission guards a route behind a permission check. The deny
// payload of the decision is rendered unchanged so clients see the
// same diagnostics as the check endpoint.
func (m *Middleware) RequirePermission(permission string) func(http.Handler) http.Handler {
	return m.require(func(user User, scope *Context) Request {
		return NewRequest(user, permission).WithContext(scope)
	})
}

// RequireRole guards a route behind membership in a role
func (m *Middleware) RequireRole(slug string) func(http.Handler) http.Handler {
	return m.require(func(user User, scope *Context) Request {
		return NewRequest(user, rolePrefix+slug).
			WithContext(scope).
			WithMeta(Meta{CheckType: CheckRole})
	})
}

// RequireInterface guards a route behind an interface access check
func (m *Middleware) RequireInterface(name string) func(http.Handler) http.Handler {
	return m.require(func(user User, scope *Context) Request {
		return NewRequest(user, interfacePrefix+name).
			WithContext(scope).
			WithMeta(Meta{CheckType: CheckInterface})
	})
}

// RequireModulePermission guards a route behind "<module>.<action>"
func (m *Middleware) RequireModulePermission(module, action string) func(http.Handler) http.Handler {
	return m.RequirePermission(module + "." + action)
}

func (m *Middleware) require(build func(User, *Context) Request) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			req := build(user, ScopeFromContext(r.Context()))
			decision, err := m.engine.Authorize(r.Context(), req)
			if err != nil {
				httputil.WriteInternalError(w, err)
				return
			}

			if !decision.Allowed {
				WriteDenial(w, decision.Reason)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// WriteDenial renders a deny reason as its canonical HTTP payload
func WriteDenial(w http.ResponseWriter, reason DenyReason) {
	if reason == nil {
		httputil.WriteForbidden(w, "forbidden")
		return
	}
	httputil.WriteJSON(w, reason.StatusCode(), reason.HTTPResponse())
}

// UserFromContext reads the authenticated subject placed in the
// context by the identity middleware. Defined here rather than imported
// to keep this package free of the HTTP wiring packages.
func UserFromContext(ctx context.Context) (User, bool) {
	user, ok := ctx.Value(contextkeys.PrincipalKey).(User)
	return user, ok
}

// ScopeFromContext returns the resolved scope from the context, or nil
func ScopeFromContext(ctx context.Context) *Context {
	if scope, ok := ctx.Value(contextkeys.ScopeKey).(*Context); ok {
		return scope
	}
	return nil
}
