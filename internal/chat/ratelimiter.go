package chat

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

type rateEntry struct {
	count       int
	windowStart time.Time
	lastSeen    time.Time
}

// RateLimiter caps requests per connection in fixed windows.
type RateLimiter struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	window  time.Duration
	max     int
	entries map[string]*rateEntry
}

// NewRateLimiter allows max calls per window for each connection.
func NewRateLimiter(clock clockwork.Clock, window time.Duration, max int) *RateLimiter {
	return &RateLimiter{
		clock:   clock,
		window:  window,
		max:     max,
		entries: make(map[string]*rateEntry),
	}
}

// Allow counts one call for connID. The call is counted even when it is
// rejected.
func (l *RateLimiter) Allow(connID string) error {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[connID]
	if !ok || now.Sub(entry.windowStart) >= l.window {
		l.entries[connID] = &rateEntry{count: 1, windowStart: now, lastSeen: now}
		return nil
	}
	entry.count++
	entry.lastSeen = now
	if entry.count > l.max {
		return apperrors.NewRateLimited("too many requests, slow down")
	}
	return nil
}

// Forget drops the connection's counter.
func (l *RateLimiter) Forget(connID string) {
	l.mu.Lock()
	delete(l.entries, connID)
	l.mu.Unlock()
}

// Sweep evicts counters idle for more than two windows and reports how many
// were removed.
func (l *RateLimiter) Sweep() int {
	cutoff := l.clock.Now().Add(-2 * l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for id, entry := range l.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(l.entries, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of tracked connections.
func (l *RateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
