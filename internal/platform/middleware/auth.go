package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Role identifies the kind of principal behind a request. The identity
// collaborator issues the token; this layer only trusts its claims.
type Role string

const (
	RoleCitizen      Role = "citizen"
	RoleOrganization Role = "organization"
	RoleStaff        Role = "staff"
)

// IsValid reports whether the role is one of the defined set.
func (r Role) IsValid() bool {
	switch r {
	case RoleCitizen, RoleOrganization, RoleStaff:
		return true
	}
	return false
}

// Principal is the authenticated caller attached to the request context.
type Principal struct {
	UserID string
	Role   Role
}

type contextKeyPrincipal struct{}

// GetPrincipal retrieves the authenticated principal from the context.
// The zero Principal is returned when the request was not authenticated.
func GetPrincipal(ctx context.Context) Principal {
	p, _ := ctx.Value(contextKeyPrincipal{}).(Principal)
	return p
}

// WithPrincipal attaches a principal to the context. Exported for handler tests.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKeyPrincipal{}, p)
}

type principalClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// RequireAuth validates the bearer token and attaches the principal to the
// request context. Tokens are HS256 signed by the identity collaborator.
func RequireAuth(signingKey string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", GetRequestID(ctx),
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims := &principalClaims{}
			parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return []byte(signingKey), nil
			})
			if err != nil || !parsed.Valid {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", GetRequestID(ctx),
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			role := Role(claims.Role)
			if claims.Subject == "" || !role.IsValid() {
				logger.WarnContext(ctx, "unauthorized access - malformed claims",
					"request_id", GetRequestID(ctx),
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			ctx = WithPrincipal(ctx, Principal{UserID: claims.Subject, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects requests whose principal is not one of the allowed roles.
// Must run after RequireAuth.
func RequireRole(logger *slog.Logger, roles ...Role) func(http.Handler) http.Handler {
	allowed := make(map[Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			principal := GetPrincipal(ctx)
			if _, ok := allowed[principal.Role]; !ok {
				logger.WarnContext(ctx, "forbidden - role not permitted",
					"role", string(principal.Role),
					"path", r.URL.Path,
					"request_id", GetRequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden","error_description":"caller role is not permitted for this operation"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
