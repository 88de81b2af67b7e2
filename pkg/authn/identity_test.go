package authn

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identityEcho(t *testing.T) (http.Handler, *Identity) {
	t.Helper()
	captured := &Identity{}
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := FromContext(r.Context()); id != nil {
			*captured = *id
		}
		w.WriteHeader(http.StatusOK)
	})
	return h, captured
}

func TestHeaderMiddleware(t *testing.T) {
	inner, captured := identityEcho(t)
	h := HeaderMiddleware(inner)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(UserHeader, "jdoe")
	req.Header.Set(RoleHeader, RoleHelpdesk)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "jdoe", captured.User)
	assert.Equal(t, RoleHelpdesk, captured.Role)
}

func TestHeaderMiddlewareDefaultsRoleToViewer(t *testing.T) {
	inner, captured := identityEcho(t)
	h := HeaderMiddleware(inner)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(UserHeader, "jdoe")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, RoleViewer, captured.Role)
}

func TestHeaderMiddlewareAnonymousPassesThrough(t *testing.T) {
	var sawIdentity bool
	h := HeaderMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawIdentity = FromContext(r.Context()) != nil
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, sawIdentity)
}

func TestRequireOperator(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	guarded := RequireOperator(next)

	tests := []struct {
		name string
		id   *Identity
		want int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"viewer", &Identity{User: "v", Role: RoleViewer}, http.StatusForbidden},
		{"helpdesk", &Identity{User: "h", Role: RoleHelpdesk}, http.StatusOK},
		{"admin", &Identity{User: "a", Role: RoleAdmin}, http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tc.id != nil {
				req = req.WithContext(WithIdentity(req.Context(), tc.id))
			}
			rec := httptest.NewRecorder()
			guarded.ServeHTTP(rec, req)
			require.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestOperatorName(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "system", OperatorName(req.Context(), "system"))

	ctx := WithIdentity(req.Context(), &Identity{User: "jdoe", Role: RoleAdmin})
	assert.Equal(t, "jdoe", OperatorName(ctx, "system"))
}
