package server

import (
	"context"
	"sync"
	"time"
)

// RateLimiter gates submissions per caller key. The in-process
// implementation below is best-effort protection only: counters reset on
// restart and are not shared across instances. A keyed counter store with
// expiry can replace it behind this interface.
type RateLimiter interface {
	Allow(key string) bool
}

type windowEntry struct {
	times    []time.Time
	lastSeen time.Time
}

// IPRateLimiter keeps a sliding window of request timestamps per caller
// IP: a request is admitted only if fewer than maxEvents requests landed
// within the trailing window. Idle entries are pruned periodically to
// bound memory.
type IPRateLimiter struct {
	mu        sync.Mutex
	entries   map[string]*windowEntry
	maxEvents int
	window    time.Duration
	maxIdle   time.Duration
	now       func() time.Time
}

// NewIPRateLimiter creates a limiter allowing maxEvents per window per key.
func NewIPRateLimiter(maxEvents int, window time.Duration) *IPRateLimiter {
	return &IPRateLimiter{
		entries:   make(map[string]*windowEntry),
		maxEvents: maxEvents,
		window:    window,
		maxIdle:   3 * window,
		now:       time.Now,
	}
}

func (l *IPRateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.entries[key]
	if !ok {
		entry = &windowEntry{}
		l.entries[key] = entry
	}
	entry.lastSeen = now

	cutoff := now.Add(-l.window)
	kept := entry.times[:0]
	for _, t := range entry.times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	entry.times = kept

	if len(entry.times) >= l.maxEvents {
		return false
	}
	entry.times = append(entry.times, now)
	return true
}

// StartCleanup prunes idle entries every interval until ctx is done.
func (l *IPRateLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.prune()
			}
		}
	}()
}

func (l *IPRateLimiter) prune() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.maxIdle)
	for key, entry := range l.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(l.entries, key)
		}
	}
}
