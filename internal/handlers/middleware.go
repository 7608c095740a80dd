package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"routinely/internal/models"
	"routinely/internal/security"

	"github.com/rs/cors"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const CallerContextKey ContextKey = "caller"

// Middleware holds dependencies for middleware functions
type Middleware struct {
	tokens  *security.TokenVerifier
	limiter *security.RateLimiter
}

// NewMiddleware creates a new middleware instance
func NewMiddleware(tokens *security.TokenVerifier, limiter *security.RateLimiter) *Middleware {
	return &Middleware{
		tokens:  tokens,
		limiter: limiter,
	}
}

// RequireAuth is middleware that requires a valid bearer token
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			respondWithError(w, http.StatusUnauthorized, CodeUnauthorized, ErrUnauthorized, "", nil)
			return
		}

		caller, err := m.tokens.Verify(strings.TrimSpace(token))
		if err != nil {
			respondWithError(w, http.StatusUnauthorized, CodeUnauthorized, ErrUnauthorized, "", nil)
			return
		}

		ctx := context.WithValue(r.Context(), CallerContextKey, caller)
		next(w, r.WithContext(ctx))
	}
}

// RateLimit throttles mutating requests per caller, falling back to client IP
func (m *Middleware) RateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + security.GetClientIP(r)
		if caller, ok := GetCallerFromContext(r.Context()); ok {
			key = "user:" + caller.UserID
		}

		if !m.limiter.Allow(key) {
			w.Header().Set("Retry-After", strconv.Itoa(int(m.limiter.Window().Seconds())))
			respondWithError(w, http.StatusTooManyRequests, CodeRateLimited, ErrTooManyRequests, "", nil)
			return
		}
		next(w, r)
	}
}

// Protected wraps a mutating handler with auth and rate limiting
func (m *Middleware) Protected(next http.HandlerFunc) http.HandlerFunc {
	return m.RequireAuth(m.RateLimit(next))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Logging middleware logs HTTP requests
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		log.Printf("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

// CORS allows browser clients on the given origins to call the API with a bearer token
func CORS(allowedOrigins []string, debug bool) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"Retry-After"},
		MaxAge:         600,
		Debug:          debug,
	}).Handler
}

// GetCallerFromContext retrieves the authenticated caller from the request context
func GetCallerFromContext(ctx context.Context) (models.Caller, bool) {
	caller, ok := ctx.Value(CallerContextKey).(models.Caller)
	return caller, ok
}
