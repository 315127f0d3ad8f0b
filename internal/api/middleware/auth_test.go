package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waypointwalk/waypointwalk/internal/api/middleware"
	"github.com/waypointwalk/waypointwalk/internal/auth"
)

func newTestJWT() *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{SigningKey: "test-signing-key-at-least-32-bytes!!"})
}

func operatorOnly(t *testing.T, svc *auth.JWTService) http.Handler {
	t.Helper()
	return middleware.RequireRole(svc, auth.RoleOperator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(middleware.GetSubject(r.Context())))
	}))
}

func TestRequireRole_MissingHeader(t *testing.T) {
	handler := operatorOnly(t, newTestJWT())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/v1/routes/r1", http.NoBody))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
	assert.Contains(t, rec.Body.String(), "missing authorization header")
}

func TestRequireRole_MalformedHeader(t *testing.T) {
	handler := operatorOnly(t, newTestJWT())

	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "token123"},
		{"basic auth", "Basic dXNlcjpwYXNz"},
		{"empty bearer", "Bearer "},
		{"just bearer", "Bearer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/v1/routes/r1", http.NoBody)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestRequireRole_InvalidToken(t *testing.T) {
	handler := operatorOnly(t, newTestJWT())

	req := httptest.NewRequest(http.MethodPut, "/v1/routes/r1", http.NoBody)
	req.Header.Set("Authorization", "Bearer invalid.jwt.token")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid access token")
}

func TestRequireRole_TokenFromOtherKey(t *testing.T) {
	handler := operatorOnly(t, newTestJWT())

	other := auth.NewJWTService(auth.JWTConfig{SigningKey: "a-completely-different-signing-key!!"})
	token, _, err := other.Issue("ops@example.com", auth.RoleOperator)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/v1/routes/r1", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole_ExpiredToken(t *testing.T) {
	svc := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-signing-key-at-least-32-bytes!!",
		TTL:        time.Millisecond,
	})
	token, _, err := svc.Issue("ops@example.com", auth.RoleOperator)
	require.NoError(t, err)

	time.Sleep(1100 * time.Millisecond)

	req := httptest.NewRequest(http.MethodPut, "/v1/routes/r1", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	operatorOnly(t, svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "expired")
}

func TestRequireRole_WrongRole(t *testing.T) {
	svc := newTestJWT()
	token, _, err := svc.Issue("walker-1", "walker")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodDelete, "/v1/routes/r1", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	operatorOnly(t, svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "operator")
}

func TestRequireRole_ValidOperator(t *testing.T) {
	svc := newTestJWT()
	token, _, err := svc.Issue("ops@example.com", auth.RoleOperator)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/v1/routes/r1", http.NoBody)
	req.Header.Set("Authorization", "bearer "+token)
	rec := httptest.NewRecorder()

	operatorOnly(t, svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ops@example.com", rec.Body.String())
}

func TestGetSubject_Anonymous(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	assert.Empty(t, middleware.GetSubject(req.Context()))
}
