package response_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waypointwalk/waypointwalk/internal/api/middleware"
	"github.com/waypointwalk/waypointwalk/internal/api/models"
	"github.com/waypointwalk/waypointwalk/internal/api/response"
)

// serve runs fn behind the RequestID middleware so responses carry an id.
func serve(t *testing.T, method, path string, fn http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	middleware.RequestID(fn).ServeHTTP(rec, httptest.NewRequest(method, path, http.NoBody))
	return rec
}

func TestJSON(t *testing.T) {
	rec := serve(t, http.MethodGet, "/v1/routes", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"message": "hello"})
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Header().Get("X-Request-Id"), "req_"))
	assert.JSONEq(t, `{"message":"hello"}`, rec.Body.String())
}

func TestJSON_WithoutRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	response.JSON(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody), http.StatusOK, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Request-Id"))
	assert.Empty(t, rec.Body.String())
}

func TestCreated(t *testing.T) {
	rec := serve(t, http.MethodPost, "/v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		response.Created(w, r, "/v1/sessions/s-1", map[string]string{"id": "s-1"})
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "/v1/sessions/s-1", rec.Header().Get("Location"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestNoContent(t *testing.T) {
	rec := serve(t, http.MethodDelete, "/v1/sessions/s-1", func(w http.ResponseWriter, r *http.Request) {
		response.NoContent(w, r)
	})

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Empty(t, rec.Body.String())
}

func TestProblems(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter, *http.Request)
		status int
		typ    string
	}{
		{"bad request", func(w http.ResponseWriter, r *http.Request) { response.BadRequest(w, r, "d", nil) }, http.StatusBadRequest, models.ProblemTypeValidation},
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) { response.Unauthorized(w, r, "d") }, http.StatusUnauthorized, models.ProblemTypeUnauthorized},
		{"forbidden", func(w http.ResponseWriter, r *http.Request) { response.Forbidden(w, r, "d") }, http.StatusForbidden, models.ProblemTypeForbidden},
		{"not found", func(w http.ResponseWriter, r *http.Request) { response.NotFound(w, r, "d") }, http.StatusNotFound, models.ProblemTypeNotFound},
		{"conflict", func(w http.ResponseWriter, r *http.Request) { response.Conflict(w, r, "d") }, http.StatusConflict, models.ProblemTypeConflict},
		{"internal", func(w http.ResponseWriter, r *http.Request) { response.InternalError(w, r, "d") }, http.StatusInternalServerError, models.ProblemTypeInternal},
		{"unavailable", func(w http.ResponseWriter, r *http.Request) { response.ServiceUnavailable(w, r, "d") }, http.StatusServiceUnavailable, models.ProblemTypeUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, http.MethodGet, "/v1/routes/r1", tt.write)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

			var problem models.Problem
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
			assert.Equal(t, tt.typ, problem.Type)
			assert.Equal(t, "/v1/routes/r1", problem.Instance)
			assert.Equal(t, rec.Header().Get("X-Request-Id"), problem.TraceID)
		})
	}
}

func TestDecode(t *testing.T) {
	type body struct {
		RouteID string `json:"routeId"`
	}

	tests := []struct {
		name    string
		payload string
		wantErr string
	}{
		{"valid", `{"routeId":"r1"}`, ""},
		{"empty", ``, "empty"},
		{"malformed", `{"routeId":`, "invalid JSON"},
		{"unknown field", `{"routeId":"r1","extra":true}`, "unknown field"},
		{"trailing data", `{"routeId":"r1"} {}`, "unexpected data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/sessions", strings.NewReader(tt.payload))

			var got body
			err := response.Decode(req, &got)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "r1", got.RouteID)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
