package middleware

import (
	"net/http"
	"sync"
	"time"
)

// RateLimiterConfig tunes the per-key token bucket.
type RateLimiterConfig struct {
	// RequestsPerSecond is the steady-state refill rate.
	RequestsPerSecond float64

	// BurstSize caps how many requests a key can spend at once.
	BurstSize int

	// CleanupInterval is how often idle buckets are discarded.
	CleanupInterval time.Duration

	// KeyFunc derives the bucket key from a request. Defaults to the
	// client IP.
	KeyFunc func(r *http.Request) string
}

// DefaultRateLimiterConfig is the limit for the public surface: generous
// enough for a checkout flow, tight enough to blunt scripted abuse.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 10,
		BurstSize:         20,
		CleanupInterval:   time.Minute,
		KeyFunc:           GetClientIP,
	}
}

// StrictRateLimiterConfig is the limit for the admin surface, which sees
// only operator traffic.
func StrictRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 2,
		BurstSize:         10,
		CleanupInterval:   time.Minute,
		KeyFunc:           GetClientIP,
	}
}

type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// take refills by elapsed time, then spends one token if available.
func (b *bucket) take(rate float64, burst int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.tokens += now.Sub(b.lastRefill).Seconds() * rate
	if limit := float64(burst); b.tokens > limit {
		b.tokens = limit
	}
	b.lastRefill = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// RateLimiter is an in-memory per-key token bucket limiter.
type RateLimiter struct {
	config  RateLimiterConfig
	mu      sync.Mutex
	buckets map[string]*bucket
	stop    chan struct{}
}

// NewRateLimiter creates a limiter and starts its idle-bucket cleanup
// goroutine; call Stop to release it.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.KeyFunc == nil {
		config.KeyFunc = GetClientIP
	}
	rl := &RateLimiter{
		config:  config,
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Allow reports whether the key has budget for one more request.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(rl.config.BurstSize), lastRefill: time.Now()}
		rl.buckets[key] = b
	}
	rl.mu.Unlock()

	return b.take(rl.config.RequestsPerSecond, rl.config.BurstSize)
}

// Middleware rejects over-budget requests with 429 and a Retry-After hint.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(rl.config.KeyFunc(r)) {
			w.Header().Set("Retry-After", "1")
			respondTooManyRequests(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Stop terminates the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	close(rl.stop)
}

// cleanupLoop drops buckets that refilled completely and sat unused for a
// full cleanup interval; a key that returns just gets a fresh full bucket.
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			now := time.Now()
			rl.mu.Lock()
			for key, b := range rl.buckets {
				b.mu.Lock()
				idle := b.tokens >= float64(rl.config.BurstSize) &&
					now.Sub(b.lastRefill) > rl.config.CleanupInterval
				b.mu.Unlock()
				if idle {
					delete(rl.buckets, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}
