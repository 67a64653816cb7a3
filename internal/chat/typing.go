package chat

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type typingKey struct {
	connID   string
	ticketID string
}

type typingTimer struct {
	timer clockwork.Timer
}

// TypingTracker debounces typing indicators per connection and ticket.
type TypingTracker struct {
	mu     sync.Mutex
	clock  clockwork.Clock
	expiry time.Duration
	timers map[typingKey]*typingTimer
}

// NewTypingTracker expires typing state after the given idle period.
func NewTypingTracker(clock clockwork.Clock, expiry time.Duration) *TypingTracker {
	return &TypingTracker{
		clock:  clock,
		expiry: expiry,
		timers: make(map[typingKey]*typingTimer),
	}
}

// Start (re)arms the expiry timer. onExpire runs once if no Start or Stop
// for the same key happens within the expiry period.
func (t *TypingTracker) Start(connID, ticketID string, onExpire func()) {
	key := typingKey{connID: connID, ticketID: ticketID}
	entry := &typingTimer{}

	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.timers[key]; ok {
		prev.timer.Stop()
	}
	entry.timer = t.clock.AfterFunc(t.expiry, func() {
		t.mu.Lock()
		if t.timers[key] != entry {
			t.mu.Unlock()
			return
		}
		delete(t.timers, key)
		t.mu.Unlock()
		onExpire()
	})
	t.timers[key] = entry
}

// Stop cancels a pending timer and reports whether one existed.
func (t *TypingTracker) Stop(connID, ticketID string) bool {
	key := typingKey{connID: connID, ticketID: ticketID}

	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.timers[key]
	if !ok {
		return false
	}
	entry.timer.Stop()
	delete(t.timers, key)
	return true
}

// ClearConnection cancels every timer owned by the connection without
// firing callbacks.
func (t *TypingTracker) ClearConnection(connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key, entry := range t.timers {
		if key.connID == connID {
			entry.timer.Stop()
			delete(t.timers, key)
		}
	}
}

// Pending reports the number of armed timers.
func (t *TypingTracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}
