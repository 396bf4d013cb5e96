package server

import (
	"sync"
	"time"

	"quickdraw/server/logging"
)

// presenceTracker records the last authenticated action per player. Entries
// are never removed; a record simply goes stale once the TTL elapses.
type presenceTracker struct {
	mu       sync.Mutex
	lastSeen map[int64]time.Time
	ttl      time.Duration
	clock    logging.Clock
}

func newPresenceTracker(clock logging.Clock, ttl time.Duration) *presenceTracker {
	if ttl <= 0 {
		ttl = presenceTTL
	}
	return &presenceTracker{
		lastSeen: make(map[int64]time.Time),
		ttl:      ttl,
		clock:    clock,
	}
}

// MarkActive stamps uid with the current time. Always succeeds.
func (p *presenceTracker) MarkActive(uid int64) {
	now := p.clock.Now()
	p.mu.Lock()
	p.lastSeen[uid] = now
	p.mu.Unlock()
}

// IsActive reports whether uid acted within the TTL window. A player with no
// record is inactive.
func (p *presenceTracker) IsActive(uid int64) bool {
	now := p.clock.Now()
	p.mu.Lock()
	seen, ok := p.lastSeen[uid]
	p.mu.Unlock()
	if !ok {
		return false
	}
	return now.Sub(seen) < p.ttl
}
