package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/waypointwalk/waypointwalk/internal/api/models"
)

// RateLimitConfig holds configuration for rate limiting.
type RateLimitConfig struct {
	RequestLimit int
	WindowLength time.Duration
}

var (
	// StandardRateLimit applies to catalog reads and session lifecycle calls (100 req/min).
	StandardRateLimit = RateLimitConfig{
		RequestLimit: 100,
		WindowLength: time.Minute,
	}

	// PositionRateLimit applies to position pushes. A device reporting every second
	// stays well inside 300 req/min.
	PositionRateLimit = RateLimitConfig{
		RequestLimit: 300,
		WindowLength: time.Minute,
	}

	// WriteRateLimit applies to catalog edits (30 req/min).
	WriteRateLimit = RateLimitConfig{
		RequestLimit: 30,
		WindowLength: time.Minute,
	}
)

// RateLimitByIP limits requests per client IP (as resolved by chi's RealIP middleware).
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(rateLimitExceeded(cfg)),
	)
}

// RateLimitBySubject limits authenticated requests per token subject and
// falls back to the client IP for anonymous ones.
func RateLimitBySubject(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(keyBySubjectOrIP),
		httprate.WithLimitHandler(rateLimitExceeded(cfg)),
	)
}

func keyBySubjectOrIP(r *http.Request) (string, error) {
	if sub := GetSubject(r.Context()); sub != "" {
		return "sub:" + sub, nil
	}
	return httprate.KeyByRealIP(r)
}

func rateLimitExceeded(cfg RateLimitConfig) http.HandlerFunc {
	retryAfter := int(cfg.WindowLength.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	return func(w http.ResponseWriter, r *http.Request) {
		problem := models.NewTooManyRequests(GetRequestID(r.Context()), "Rate limit exceeded. Please try again later.")
		problem.Instance = r.URL.Path

		// httprate does not expose the window reset, so the full window is a safe upper bound.
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		problem.Write(w)
	}
}
