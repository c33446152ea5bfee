package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stroyhub/authd/pkg/authz"
)

func TestPrincipalMiddleware(t *testing.T) {
	var captured authz.User
	var present bool
	handler := PrincipalMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, present = PrincipalFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, "10")
	req.Header.Set(HeaderUsername, "petrov")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, present)
	assert.Equal(t, int64(10), captured.ID)
	assert.Equal(t, "petrov", captured.Username)
	assert.True(t, captured.IsActive)
}

func TestPrincipalMiddleware_BlockedHeader(t *testing.T) {
	var captured authz.User
	handler := PrincipalMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = PrincipalFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, "10")
	req.Header.Set(HeaderUserBlocked, "true")

	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.False(t, captured.IsActive)
}

func TestPrincipalMiddleware_Rejects(t *testing.T) {
	handler := PrincipalMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be reached")
	}))

	tests := []struct {
		name   string
		userID string
	}{
		{"missing header", ""},
		{"not a number", "petrov"},
		{"zero", "0"},
		{"negative", "-5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.userID != "" {
				req.Header.Set(HeaderUserID, tt.userID)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestPrincipalFromContext_Missing(t *testing.T) {
	_, ok := PrincipalFromContext(context.Background())
	assert.False(t, ok)
}
