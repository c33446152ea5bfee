package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/stroyhub/authd/pkg/authz"
	"github.com/stroyhub/authd/pkg/contextkeys"
	"github.com/stroyhub/authd/pkg/httputil"
)

// Scope headers set by callers to select the authorization scope of a
// request. Path variables take precedence over headers.
const (
	HeaderOrganizationID = "X-Organization-ID"
	HeaderProjectID      = "X-Project-ID"
)

// ScopeMiddleware resolves the authorization scope of the request and
// stores it under contextkeys.ScopeKey as *authz.Context. A project
// scope is loaded through the store so its parent organization is
// attached. Requests without scope information pass through with no
// scope set, which callers treat as a global check.
func ScopeMiddleware(contexts authz.ContextStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope, err := resolveScope(r, contexts)
			if err != nil {
				httputil.WriteBadRequest(w, err.Error())
				return
			}
			if scope == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), contextkeys.ScopeKey, scope)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func resolveScope(r *http.Request, contexts authz.ContextStore) (*authz.Context, error) {
	vars := mux.Vars(r)

	if id, ok := scopeID(vars["project_id"], r.Header.Get(HeaderProjectID)); ok {
		if contexts != nil {
			return contexts.GetContext(r.Context(), id)
		}
		return &authz.Context{ID: id, Type: authz.ContextProject}, nil
	}

	if id, ok := scopeID(vars["org_id"], r.Header.Get(HeaderOrganizationID)); ok {
		if contexts != nil {
			return contexts.GetContext(r.Context(), id)
		}
		return &authz.Context{ID: id, Type: authz.ContextOrganization, ResourceID: id}, nil
	}

	return nil, nil
}

func scopeID(pathVar, header string) (int64, bool) {
	raw := pathVar
	if raw == "" {
		raw = header
	}
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ScopeFromContext returns the scope stored by ScopeMiddleware, or nil
func ScopeFromContext(ctx context.Context) *authz.Context {
	if scope, ok := ctx.Value(contextkeys.ScopeKey).(*authz.Context); ok {
		return scope
	}
	return nil
}
