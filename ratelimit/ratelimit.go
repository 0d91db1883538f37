// Package ratelimit provides per-client HTTP request throttling.
// Each client (keyed by remote IP, after the RealIP middleware has run)
// gets its own token bucket; requests over the limit are rejected with 429
// using the standard error envelope.
package ratelimit

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/user/libcat-go/apperror"
	"github.com/user/libcat-go/auth"
	"github.com/user/libcat-go/config"
)

// client tracks one remote address's limiter and when it was last seen,
// so idle entries can be evicted.
type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter hands out per-client token buckets.
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*client
	limit   rate.Limit
	burst   int

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a Limiter from the configured requests-per-minute and burst,
// and starts a background sweep that drops clients idle for several
// windows. Call Stop to end the sweep.
func New(cfg config.RateLimitConfig) *Limiter {
	l := &Limiter{
		clients: make(map[string]*client),
		limit:   rate.Limit(float64(cfg.RequestsPerMinute) / 60.0),
		burst:   cfg.Burst,
		done:    make(chan struct{}),
	}
	go l.sweep()
	return l
}

// Stop ends the background sweep. Safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

// Allow reports whether one more request from key fits in its bucket.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = time.Now()
	return c.limiter.Allow()
}

// sweep periodically evicts clients that have been idle long enough for
// their bucket to have refilled completely anyway.
func (l *Limiter) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-3 * time.Minute)
			l.mu.Lock()
			for key, c := range l.clients {
				if c.lastSeen.Before(cutoff) {
					delete(l.clients, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

// Middleware applies the limiter to every request, keyed by the remote IP.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			key = host
		}
		if !l.Allow(key) {
			appErr := apperror.NewAppError(apperror.UnknownError, "too many requests", nil)
			auth.WriteJSON(w, http.StatusTooManyRequests, appErr.ToResponse())
			return
		}
		next.ServeHTTP(w, r)
	})
}
