package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/waypointwalk/waypointwalk/internal/api/models"
	"github.com/waypointwalk/waypointwalk/internal/auth"
)

type subjectKey struct{}

// TokenValidator checks a bearer token for a role.
type TokenValidator interface {
	RequireRole(tokenString, role string) (*auth.Claims, error)
}

var _ TokenValidator = (*auth.JWTService)(nil)

// RequireRole creates middleware that admits only bearer tokens carrying role.
// Missing or invalid tokens get 401, valid tokens without the role get 403.
func RequireRole(validator TokenValidator, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, detail := bearerToken(r)
			if detail != "" {
				writeUnauthorized(w, r, detail)
				return
			}

			claims, err := validator.RequireRole(tokenString, role)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrForbidden):
					writeForbidden(w, r, "token does not grant the "+role+" role")
				case errors.Is(err, auth.ErrTokenExpired):
					writeUnauthorized(w, r, "access token has expired")
				case errors.Is(err, auth.ErrInvalidToken):
					writeUnauthorized(w, r, "invalid access token")
				default:
					writeUnauthorized(w, r, "authentication failed")
				}
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey{}, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, string) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", "missing authorization header"
	}

	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", "invalid authorization header format"
	}

	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", "missing bearer token"
	}
	return token, ""
}

// writeUnauthorized writes the problem directly; the response package imports middleware.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="waypointwalk"`)
	problem := models.NewUnauthorized(GetRequestID(r.Context()), detail)
	problem.Instance = r.URL.Path
	problem.Write(w)
}

func writeForbidden(w http.ResponseWriter, r *http.Request, detail string) {
	problem := models.NewForbidden(GetRequestID(r.Context()), detail)
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// GetSubject returns the authenticated token subject, or "" for anonymous requests.
func GetSubject(ctx context.Context) string {
	if sub, ok := ctx.Value(subjectKey{}).(string); ok {
		return sub
	}
	return ""
}
