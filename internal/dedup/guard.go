// Package dedup holds the in-process half of the two-tier duplicate
// defense: a process-wide membership test that collapses near-simultaneous
// observations of the same physical message (a listener/poller race) into
// a single pipeline execution.
package dedup

import (
	"sync"
	"time"
)

// Guard tracks message identities that are mid-pipeline or recently
// completed. It is safe for concurrent use from multiple adapter
// callbacks. State is scoped to the process lifetime and cleared on
// restart; the remote duplicate detector covers everything this guard
// cannot see.
type Guard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
	done     map[string]time.Time
	ttl      time.Duration
	now      func() time.Time
}

// NewGuard creates a guard that remembers completed identities for ttl.
// now is injectable so TTL expiry is testable; pass nil for time.Now.
func NewGuard(ttl time.Duration, now func() time.Time) *Guard {
	if now == nil {
		now = time.Now
	}
	return &Guard{
		inFlight: make(map[string]struct{}),
		done:     make(map[string]time.Time),
		ttl:      ttl,
		now:      now,
	}
}

// Begin admits an identity into the pipeline. It returns false if the
// identity is already in flight or completed within the TTL, in which
// case the caller must drop the message without further work.
func (g *Guard) Begin(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.pruneLocked()

	if _, ok := g.inFlight[id]; ok {
		return false
	}
	if _, ok := g.done[id]; ok {
		return false
	}
	g.inFlight[id] = struct{}{}
	return true
}

// Finish records an identity as completed. Re-observations of the same
// message are dropped until the TTL elapses.
func (g *Guard) Finish(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, id)
	g.done[id] = g.now()
}

// Release removes an identity without recording completion. Used when
// processing failed and the message should be admitted again by a later
// scan instead of being blocked for a full TTL.
func (g *Guard) Release(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, id)
}

// pruneLocked drops completed entries older than the TTL. Called lazily
// from Begin; there is no background sweeper.
func (g *Guard) pruneLocked() {
	cutoff := g.now().Add(-g.ttl)
	for id, at := range g.done {
		if at.Before(cutoff) {
			delete(g.done, id)
		}
	}
}
