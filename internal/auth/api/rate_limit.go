package authapi

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// LoginLimiter throttles login attempts per key (client IP).
type LoginLimiter interface {
	// Allow records an attempt at now and reports whether it is permitted.
	// When it is not, retryAfter is how long the caller should wait.
	Allow(ctx context.Context, key string, now time.Time) (ok bool, retryAfter time.Duration, err error)
}

// MemoryLimiter is a per-key sliding-window limiter for a single process.
type MemoryLimiter struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	events    map[string][]time.Time
	lastSweep time.Time
}

var _ LoginLimiter = (*MemoryLimiter)(nil)

// NewMemoryLimiter constructs a MemoryLimiter with safe defaults when inputs are invalid.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	def := DefaultConfig()
	if limit <= 0 {
		limit = def.LoginIPMax
	}
	if window <= 0 {
		window = def.LoginIPWindow
	}
	return &MemoryLimiter{
		limit:  limit,
		window: window,
		events: make(map[string][]time.Time),
	}
}

// Allow implements LoginLimiter.
func (l *MemoryLimiter) Allow(_ context.Context, key string, now time.Time) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cut := now.Add(-l.window)
	l.sweep(now, cut)

	events := l.events[key]
	dst := events[:0]
	for _, t := range events {
		if t.After(cut) {
			dst = append(dst, t)
		}
	}

	if len(dst) >= l.limit {
		l.events[key] = dst
		return false, dst[0].Add(l.window).Sub(now), nil
	}
	l.events[key] = append(dst, now)
	return true, 0, nil
}

// sweep drops idle keys at most once per window.
func (l *MemoryLimiter) sweep(now, cut time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now
	for k, events := range l.events {
		if len(events) == 0 || !events[len(events)-1].After(cut) {
			delete(l.events, k)
		}
	}
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		secs := int64(retryAfter.Seconds())
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}
	writeError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
}
