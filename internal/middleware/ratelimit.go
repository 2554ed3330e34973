package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

// WriteLimiter counts mutating requests per client in fixed windows.
type WriteLimiter struct {
	limit  int
	period time.Duration

	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

// NewWriteLimiter allows limit mutating requests per client per period. A
// limit of zero or less disables limiting.
func NewWriteLimiter(limit int, period time.Duration) *WriteLimiter {
	return &WriteLimiter{
		limit:   limit,
		period:  period,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Allow records a request for key. When the key is over its limit it returns
// false and the time until the window resets.
func (l *WriteLimiter) Allow(key string) (bool, time.Duration) {
	if l.limit <= 0 {
		return true, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		l.windows[key] = &window{count: 1, resetAt: now.Add(l.period)}
		return true, 0
	}
	w.count++
	if w.count > l.limit {
		return false, w.resetAt.Sub(now)
	}
	return true, 0
}

// Sweep drops windows that have already reset.
func (l *WriteLimiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, key)
		}
	}
}

// Run sweeps expired windows once per period until ctx is done.
func (l *WriteLimiter) Run(ctx context.Context) {
	if l.limit <= 0 {
		return
	}
	ticker := time.NewTicker(l.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

func isMutation(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

// LimitWrites rejects mutating requests from a client that is over its limit
// with 429 and a Retry-After header. Reads always pass.
func LimitWrites(l *WriteLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isMutation(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			ok, retry := l.Allow(RealIP(r))
			if !ok {
				secs := int(retry.Round(time.Second) / time.Second)
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{"error": "too many requests"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
