package session

import (
	"context"
	"sync"
	"time"

	"github.com/Jay-Parmar/PokerPlannerBE/tracker"
)

// Registry owns the table of live sessions, one per ticket. A session
// is constructed lazily on the first Acquire for its key and evicted
// once the last holder releases it.
type Registry struct {
	store   Store
	tracker tracker.Gateway
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	sess *Session
	refs int
}

// NewRegistry returns an empty registry. now may be nil.
func NewRegistry(store Store, gateway tracker.Gateway, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		store:   store,
		tracker: gateway,
		now:     now,
		entries: make(map[string]*entry),
	}
}

// Acquire returns the live session for the ticket, constructing it from
// the store if needed, and takes a reference. Construction happens
// under the registry lock so two concurrent acquires for the same key
// can never build two sessions.
func (r *Registry) Acquire(ctx context.Context, ticketID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[ticketID]; ok {
		e.refs++
		return e.sess, nil
	}
	sess, err := newSession(ctx, ticketID, r.store, r.tracker, r.now)
	if err != nil {
		return nil, err
	}
	r.entries[ticketID] = &entry{sess: sess, refs: 1}
	return sess, nil
}

// Release drops one reference; the session is evicted when the count
// reaches zero. The handle must not be used after its release.
func (r *Registry) Release(ticketID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[ticketID]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(r.entries, ticketID)
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Reap evicts sessions that nobody references and no connection is
// attached to, and returns how many were removed. Release already
// evicts on the last drop; this catches entries orphaned by broken
// release bookkeeping. An entry with live references is never touched:
// a holder between Acquire and its first Attach must keep its session,
// or a later Acquire would construct a second one for the same ticket.
func (r *Registry) Reap() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for id, e := range r.entries {
		if e.refs > 0 {
			continue
		}
		if e.sess.Empty() {
			delete(r.entries, id)
			count++
		}
	}
	return count
}
