package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"
)

const (
	KB = 1024
	MB = 1024 * KB

	// DefaultMaxBodySize bounds request bodies. The largest legitimate
	// payload this service sees is a cart snapshot, so 1MB is already
	// generous.
	DefaultMaxBodySize = 1 * MB

	// DefaultTimeout bounds request handling end to end.
	DefaultTimeout = 30 * time.Second
)

// MaxBodySize rejects requests whose declared length exceeds the limit and
// caps chunked bodies via http.MaxBytesReader, which makes later reads fail
// once the limit is crossed.
func MaxBodySize(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				respondTooLarge(w, r, "Request body too large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}

// Timeout cancels the request context after the given duration and answers
// 503 if the handler has not started writing yet. A handler that already
// wrote a header keeps the connection; the client sees a truncated body.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			done := make(chan struct{})
			tw := &timeoutWriter{ResponseWriter: w, done: done}

			go func() {
				defer close(done)
				next.ServeHTTP(tw, r.WithContext(ctx))
			}()

			select {
			case <-done:
			case <-ctx.Done():
				tw.mu.Lock()
				defer tw.mu.Unlock()
				if !tw.wroteHeader {
					tw.timedOut = true
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusServiceUnavailable)
					w.Write([]byte(`{"error": {"code": "internal", "message": "Request timed out"}}`))
				}
			}
		})
	}
}

// timeoutWriter serializes writes between the handler goroutine and the
// timeout path, and suppresses handler output after a timeout response has
// gone out.
type timeoutWriter struct {
	http.ResponseWriter
	mu          sync.Mutex
	wroteHeader bool
	timedOut    bool
	done        chan struct{}
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.wroteHeader || tw.timedOut {
		return
	}
	tw.wroteHeader = true
	tw.ResponseWriter.WriteHeader(code)
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return 0, context.DeadlineExceeded
	}
	if !tw.wroteHeader {
		tw.wroteHeader = true
		tw.ResponseWriter.WriteHeader(http.StatusOK)
	}
	return tw.ResponseWriter.Write(b)
}
