package middleware

import (
	"context"
	"log/slog"
	"net/http"
)

// contextKey is the private type for middleware context keys.
type contextKey string

// LoggerContextKey is the context key carrying the request-scoped logger.
const LoggerContextKey contextKey = "logger"

// WithRequestLogger derives a per-request logger carrying the request's
// method, path, id, and client IP, so every line a handler logs correlates
// back to the request. Place it after RequestID and WithClientIP in the
// chain; attributes from middleware that has not run yet are simply absent.
func WithRequestLogger(baseLogger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLogger := baseLogger.With(
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			if id := GetRequestID(r.Context()); id != "" {
				reqLogger = reqLogger.With(slog.String("request_id", id))
			}
			if ip := GetClientIPFromContext(r.Context()); ip != "" {
				reqLogger = reqLogger.With(slog.String("client_ip", ip))
			}

			ctx := context.WithValue(r.Context(), LoggerContextKey, reqLogger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetLogger returns the request-scoped logger, the fallback when given, or
// slog.Default() as a last resort.
func GetLogger(ctx context.Context, fallback ...*slog.Logger) *slog.Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*slog.Logger); ok {
		return logger
	}
	if len(fallback) > 0 && fallback[0] != nil {
		return fallback[0]
	}
	return slog.Default()
}
