package authapi

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// failureLimiter is a keyed sliding-window counter of failed attempts.
// A key is blocked once it has limit failures inside window; it unblocks when
// the oldest failure ages out.
type failureLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	events map[string][]time.Time
	// next full sweep of idle keys
	sweepAt time.Time
}

func newFailureLimiter(limit int, window time.Duration) *failureLimiter {
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &failureLimiter{
		limit:  limit,
		window: window,
		events: make(map[string][]time.Time),
	}
}

// prune drops events at or before now-window. Caller holds mu.
func (l *failureLimiter) prune(key string, now time.Time) []time.Time {
	cut := now.Add(-l.window)
	evs := l.events[key]
	dst := evs[:0]
	for _, t := range evs {
		if t.After(cut) {
			dst = append(dst, t)
		}
	}
	if len(dst) == 0 {
		delete(l.events, key)
		return nil
	}
	l.events[key] = dst
	return dst
}

func (l *failureLimiter) sweep(now time.Time) {
	if now.Before(l.sweepAt) {
		return
	}
	for k := range l.events {
		l.prune(k, now)
	}
	l.sweepAt = now.Add(l.window)
}

// Blocked reports whether key is over the limit and for how long.
func (l *failureLimiter) Blocked(key string, now time.Time) (bool, time.Duration) {
	if key == "" {
		return false, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)
	evs := l.prune(key, now)
	if len(evs) < l.limit {
		return false, 0
	}
	// Blocked until enough old failures leave the window.
	oldest := evs[len(evs)-l.limit]
	return true, oldest.Add(l.window).Sub(now)
}

// Fail records one failure for key.
func (l *failureLimiter) Fail(key string, now time.Time) {
	if key == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	evs := l.prune(key, now)
	// Keep memory bounded: only the newest limit events matter.
	if len(evs) >= l.limit {
		evs = evs[len(evs)-l.limit+1:]
	}
	l.events[key] = append(evs, now)
}

// Reset forgets key (e.g. after a successful login).
func (l *failureLimiter) Reset(key string) {
	l.mu.Lock()
	delete(l.events, key)
	l.mu.Unlock()
}

// retryAfterSeconds rounds up so clients never retry early.
func retryAfterSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 1
	}
	return int64(math.Ceil(d.Seconds()))
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration, msg string) {
	w.Header().Set("Retry-After", strconv.FormatInt(retryAfterSeconds(retryAfter), 10))
	writeError(w, http.StatusTooManyRequests, codeRateLimited, msg)
}
