package httptransport

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"truconn/internal/platform/middleware"
)

const testSigningKey = "router-test-signing-key"

func signToken(t *testing.T, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  "user-1",
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSigningKey))
	require.NoError(t, err)
	return signed
}

func okRoute(path string) RouteRegistrar {
	return func(r chi.Router) {
		r.Get(path, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	}
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := Config{
		SigningKey: testSigningKey,
		Health:     http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }),
		Logger:     slog.New(slog.DiscardHandler),
	}
	routes := Routes{
		Public:       []RouteRegistrar{okRoute("/public")},
		Citizen:      []RouteRegistrar{okRoute("/citizen-only")},
		Organization: []RouteRegistrar{okRoute("/org-only")},
		Oversight:    []RouteRegistrar{okRoute("/oversight")},
	}
	return NewRouter(cfg, routes)
}

func do(t *testing.T, router http.Handler, path, token string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec.Code
}

func TestRouterGroups(t *testing.T) {
	router := newTestRouter(t)

	citizen := signToken(t, string(middleware.RoleCitizen))
	org := signToken(t, string(middleware.RoleOrganization))
	staff := signToken(t, string(middleware.RoleStaff))

	tests := []struct {
		name  string
		path  string
		token string
		want  int
	}{
		{"health open", "/healthz", "", http.StatusOK},
		{"public open", "/public", "", http.StatusOK},
		{"citizen route without token", "/citizen-only", "", http.StatusUnauthorized},
		{"citizen route with citizen", "/citizen-only", citizen, http.StatusOK},
		{"citizen route with org", "/citizen-only", org, http.StatusForbidden},
		{"org route with org", "/org-only", org, http.StatusOK},
		{"org route with citizen", "/org-only", citizen, http.StatusForbidden},
		{"oversight with org", "/oversight", org, http.StatusOK},
		{"oversight with staff", "/oversight", staff, http.StatusOK},
		{"oversight with citizen", "/oversight", citizen, http.StatusForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, do(t, router, tc.path, tc.token))
		})
	}
}

func TestRouterServesMetrics(t *testing.T) {
	router := newTestRouter(t)
	assert.Equal(t, http.StatusOK, do(t, router, "/metrics", ""))
}
