package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/stroyhub/authd/pkg/authz"
	"github.com/stroyhub/authd/pkg/contextkeys"
	"github.com/stroyhub/authd/pkg/httputil"
)

// Identity headers set by the edge gateway after authentication. The
// service trusts these headers; it performs authorization, not
// authentication.
const (
	HeaderUserID      = "X-User-ID"
	HeaderUsername    = "X-User-Name"
	HeaderUserBlocked = "X-User-Blocked"
)

// PrincipalMiddleware extracts the authenticated subject from the
// identity headers and stores it under contextkeys.PrincipalKey.
// Requests without a user ID are rejected with 401.
func PrincipalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idStr := r.Header.Get(HeaderUserID)
		if idStr == "" {
			httputil.WriteUnauthorized(w, "missing user identity")
			return
		}
		userID, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil || userID <= 0 {
			httputil.WriteUnauthorized(w, "invalid user identity")
			return
		}

		user := authz.User{
			ID:       userID,
			Username: r.Header.Get(HeaderUsername),
			IsActive: r.Header.Get(HeaderUserBlocked) != "true",
		}

		ctx := context.WithValue(r.Context(), contextkeys.PrincipalKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// PrincipalFromContext returns the subject stored by PrincipalMiddleware
func PrincipalFromContext(ctx context.Context) (authz.User, bool) {
	user, ok := ctx.Value(contextkeys.PrincipalKey).(authz.User)
	return user, ok
}
