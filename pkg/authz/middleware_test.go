package authz

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stroyhub/authd/pkg/contextkeys"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func withIdentity(r *http.Request, user User, scope *Context) *http.Request {
	ctx := context.WithValue(r.Context(), contextkeys.PrincipalKey, user)
	if scope != nil {
		ctx = context.WithValue(ctx, contextkeys.ScopeKey, scope)
	}
	return r.WithContext(ctx)
}

func newGuardedMiddleware(t *testing.T) *Middleware {
	t.Helper()
	store := newFakeRoleStore()
	store.addRole(foremanRole())
	store.addRole(accountantRole())
	store.assign(10, Assignment{ID: 1, RoleID: 1})
	return NewMiddleware(NewEngine(NewResolver(store)))
}

func TestRequirePermission_Allowed(t *testing.T) {
	mw := newGuardedMiddleware(t)
	handler := mw.RequirePermission("projects.view")(okHandler())

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/projects", nil), activeUser(), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestRequirePermission_Denied(t *testing.T) {
	mw := newGuardedMiddleware(t)
	handler := mw.RequirePermission("payments.view")(okHandler())

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/payments", nil), activeUser(), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "insufficient_permissions", payload["error"])
	assert.Equal(t, float64(403), payload["code"])
	assert.Contains(t, payload["missing_permissions"], "payments.view")
}

func TestRequirePermission_NoPrincipal(t *testing.T) {
	mw := newGuardedMiddleware(t)
	handler := mw.RequirePermission("projects.view")(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/projects", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	mw := newGuardedMiddleware(t)

	rec := httptest.NewRecorder()
	mw.RequireRole("foreman")(okHandler()).
		ServeHTTP(rec, withIdentity(httptest.NewRequest(http.MethodGet, "/site", nil), activeUser(), nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mw.RequireRole("accountant")(okHandler()).
		ServeHTTP(rec, withIdentity(httptest.NewRequest(http.MethodGet, "/office", nil), activeUser(), nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireRole_UnknownRoleIs404(t *testing.T) {
	mw := newGuardedMiddleware(t)

	rec := httptest.NewRecorder()
	mw.RequireRole("ghost")(okHandler()).
		ServeHTTP(rec, withIdentity(httptest.NewRequest(http.MethodGet, "/x", nil), activeUser(), nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "role_not_found", payload["error"])
	assert.Equal(t, "ghost", payload["role_slug"])
}

func TestRequireInterface(t *testing.T) {
	store := newFakeRoleStore()
	store.addRole(accountantRole())
	store.assign(10, Assignment{ID: 1, RoleID: 2})
	mw := NewMiddleware(NewEngine(NewResolver(store)))

	rec := httptest.NewRecorder()
	mw.RequireInterface("office")(okHandler()).
		ServeHTTP(rec, withIdentity(httptest.NewRequest(http.MethodGet, "/office", nil), activeUser(), nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mw.RequireInterface("warehouse")(okHandler()).
		ServeHTTP(rec, withIdentity(httptest.NewRequest(http.MethodGet, "/wh", nil), activeUser(), nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "unauthorized", payload["error"])
	assert.Equal(t, "missing_permission", payload["cause"])
}

func TestRequireModulePermission_ScopeFromContext(t *testing.T) {
	store := newFakeRoleStore()
	store.addRole(accountantRole())
	store.assign(10, Assignment{ID: 1, RoleID: 2})

	catalog := &fakeModuleCatalog{active: map[string]bool{}}
	mw := NewMiddleware(NewEngine(NewResolver(store), WithModuleCatalog(catalog)))

	org := &Context{ID: 100, Type: ContextOrganization, ResourceID: 42}
	req := withIdentity(httptest.NewRequest(http.MethodGet, "/payments", nil), activeUser(), org)

	rec := httptest.NewRecorder()
	mw.RequireModulePermission("payments", "view")(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "module_not_active", payload["cause"])
	assert.Equal(t, "payments", payload["module"])
}

func TestWriteDenial_NilReason(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteDenial(rec, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestScopeFromContext_Missing(t *testing.T) {
	assert.Nil(t, ScopeFromContext(context.Background()))
}
