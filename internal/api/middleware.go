// internal/api/middleware.go
package api

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/codr1/folio/internal/api/apiutil"
	"github.com/codr1/folio/internal/api/authz"
	"github.com/codr1/folio/internal/ratelimit"
)

type Middleware func(http.Handler) http.Handler

// ChainMiddleware wraps h so the first middleware listed runs innermost.
func ChainMiddleware(h http.Handler, middleware ...Middleware) http.Handler {
	for _, m := range middleware {
		h = m(h)
	}
	return h
}

type requestIDKey struct{}

// RequestIDFromContext returns the ID assigned by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestObserver receives the outcome of every request.
type RequestObserver interface {
	ObserveRequest(method, route string, status int, elapsed time.Duration)
}

func WithLogging(next http.Handler) http.Handler {
	return WithObservedLogging(nil)(next)
}

// WithObservedLogging logs every request and, when observer is non-nil,
// reports its latency keyed by the matched route pattern.
func WithObservedLogging(observer RequestObserver) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Create response wrapper to capture status code
			wrapped := wrapResponseWriter(w)

			next.ServeHTTP(wrapped, r)
			elapsed := time.Since(start)

			log.Ctx(r.Context()).Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", wrapped.status).
				Dur("duration", elapsed).
				Msg("Request completed")

			if observer != nil {
				observer.ObserveRequest(r.Method, r.Pattern, wrapped.status, elapsed)
			}
		})
	}
}

func WithRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger := log.Ctx(r.Context())
				stack := debug.Stack()
				logger.Error().
					Interface("error", err).
					Str("stack", string(stack)).
					Msg("Panic recovered")

				apiutil.WriteError(w, http.StatusInternalServerError, "internal server error", "")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()

		// Create a logger with the request ID
		logger := log.With().Str("request_id", requestID).Logger()

		// Add both the request ID and logger to context
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		ctx = logger.WithContext(ctx)

		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithAuth attaches the admin resolved by gate to the request context.
// A gate error leaves the request anonymous.
func WithAuth(gate authz.Gate) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			admin, err := gate.Authorize(r)
			if err != nil {
				log.Ctx(r.Context()).Warn().Err(err).Msg("Failed to load auth session")
				next.ServeHTTP(w, r)
				return
			}

			if admin != nil {
				r = r.WithContext(authz.ContextWithAdmin(r.Context(), admin))
			}

			next.ServeHTTP(w, r)
		})
	}
}

// WithAdminAuth rejects requests that WithAuth did not authenticate.
func WithAdminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := log.Ctx(r.Context())
		if err := authz.RequireAdmin(r.Context()); err != nil {
			switch {
			case errors.Is(err, authz.ErrUnauthenticated):
				logger.Warn().Str("path", r.URL.Path).Msg("Admin access denied: unauthenticated")
				apiutil.WriteError(w, http.StatusUnauthorized, "authentication required", "")
			case errors.Is(err, authz.ErrForbidden):
				logger.Warn().Str("path", r.URL.Path).Msg("Admin access denied: forbidden")
				apiutil.WriteError(w, http.StatusForbidden, "forbidden", "")
			default:
				logger.Error().Err(err).Msg("Admin access denied: error")
				apiutil.WriteError(w, http.StatusInternalServerError, "failed to authorize request", "")
			}
			return
		}

		next.ServeHTTP(w, r)
	})
}

// WithThrottle limits each client IP with throttle.
func WithThrottle(throttle *ratelimit.Throttle, trustProxy bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ratelimit.GetClientIP(r, trustProxy)
			if ok, wait := throttle.Allow(ip, time.Now()); !ok {
				ratelimit.LogRateLimitExceeded(r.Context(), "mutation", ip, ip, "throttled")
				apiutil.WriteRetryAfter(w, wait)
				apiutil.WriteError(w, http.StatusTooManyRequests, "too many requests", "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// responseWriter wrapper to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
