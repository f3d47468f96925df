package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// ClientIPContextKey is the context key carrying the resolved client IP.
const ClientIPContextKey contextKey = "client_ip"

// GetClientIP resolves the originating client address. Proxy headers win
// over RemoteAddr because the service runs behind a reverse proxy in every
// deployed environment; the proxy must strip inbound copies of these
// headers or they are spoofable.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// First entry is the original client, the rest are proxies.
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// WithClientIP resolves the client IP once per request and stores it in the
// context for handlers and the request logger.
func WithClientIP() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), ClientIPContextKey, GetClientIP(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClientIPFromContext returns the IP stored by WithClientIP, or "" when
// the middleware did not run.
func GetClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(ClientIPContextKey).(string)
	return ip
}
