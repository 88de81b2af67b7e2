// Package authn extracts operator identity for mutating endpoints. Two
// modes: trusted proxy headers (dev and header-auth deployments) and JWT
// bearer tokens. The package only identifies callers; credential handling
// lives outside this service.
package authn

import (
	"context"
	"encoding/json"
	"net/http"
)

// Operator roles.
const (
	RoleAdmin    = "admin"
	RoleHelpdesk = "helpdesk"
	RoleViewer   = "viewer"
)

// Header names for header-mode identity, set by a trusted reverse proxy.
const (
	UserHeader = "X-Remote-User"
	RoleHeader = "X-Remote-Role"
)

// Identity is the authenticated caller of a request.
type Identity struct {
	User string
	Role string
}

// IsOperator reports whether the identity may perform mutating operations.
func (i *Identity) IsOperator() bool {
	return i.Role == RoleAdmin || i.Role == RoleHelpdesk
}

type identityKey struct{}

// WithIdentity attaches an identity to the context.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the request identity, or nil if none was established.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}

// HeaderMiddleware populates the request identity from the remote-user
// headers. Requests without the user header pass through anonymous; the
// role guards decide what anonymous callers may do.
func HeaderMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := r.Header.Get(UserHeader)
		if user == "" {
			next.ServeHTTP(w, r)
			return
		}
		role := r.Header.Get(RoleHeader)
		if role == "" {
			role = RoleViewer
		}
		ctx := WithIdentity(r.Context(), &Identity{User: user, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireOperator rejects requests whose identity lacks an operator role:
// 401 for anonymous callers, 403 for authenticated non-operators.
func RequireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := FromContext(r.Context())
		if id == nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !id.IsOperator() {
			writeError(w, http.StatusForbidden, "operator role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// OperatorName returns the identity's user for audit fields, falling back
// to the given default when the request is anonymous.
func OperatorName(ctx context.Context, fallback string) string {
	if id := FromContext(ctx); id != nil && id.User != "" {
		return id.User
	}
	return fallback
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
