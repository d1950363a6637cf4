// Package session keeps consultations in memory for the standalone server.
// Each session has its own lock so turns on one session are serialized while
// different sessions proceed independently.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"triage-agent/internal/domain"
)

// ErrNotFound is returned for unknown or evicted session IDs.
var ErrNotFound = errors.New("session: not found")

type entry struct {
	mu       sync.Mutex
	sess     domain.Session
	lastUsed time.Time
	evicted  bool
}

type Registry struct {
	idleTTL time.Duration

	mu      sync.Mutex
	entries map[string]*entry

	now   func() time.Time
	newID func() string
}

// NewRegistry returns an empty registry. Sessions idle longer than idleTTL are
// removed by Sweep; a non-positive idleTTL keeps them forever.
func NewRegistry(idleTTL time.Duration) *Registry {
	return &Registry{
		idleTTL: idleTTL,
		entries: make(map[string]*entry),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Create starts an empty consultation and returns it.
func (r *Registry) Create() domain.Session {
	now := r.now()
	sess := domain.NewSession(r.newID(), now)

	r.mu.Lock()
	r.entries[sess.ID] = &entry{sess: sess, lastUsed: now}
	r.mu.Unlock()
	return snapshot(sess)
}

// Get returns a copy of the session. It waits for an in-flight turn on the
// same session to finish.
func (r *Registry) Get(id string) (domain.Session, error) {
	e, err := r.touch(id)
	if err != nil {
		return domain.Session{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted {
		return domain.Session{}, ErrNotFound
	}
	return snapshot(e.sess), nil
}

// Update runs fn with exclusive access to the session and stores its result.
// When fn fails the stored session is left as it was and returned with the
// error.
func (r *Registry) Update(id string, fn func(domain.Session) (domain.Session, error)) (domain.Session, error) {
	e, err := r.touch(id)
	if err != nil {
		return domain.Session{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted {
		return domain.Session{}, ErrNotFound
	}

	next, err := fn(snapshot(e.sess))
	if err != nil {
		return snapshot(e.sess), err
	}
	next.ID = e.sess.ID
	e.sess = next

	r.mu.Lock()
	e.lastUsed = r.now()
	r.mu.Unlock()
	return snapshot(next), nil
}

// Delete removes a session. Deleting an unknown ID is not an error.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	e, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()
	if ok {
		e.mu.Lock()
		e.evicted = true
		e.mu.Unlock()
	}
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep evicts sessions idle for longer than the TTL and returns how many
// were removed. Sessions with a turn in flight are skipped.
func (r *Registry) Sweep() int {
	if r.idleTTL <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, e := range r.entries {
		if e.lastUsed.After(cutoff) {
			continue
		}
		if !e.mu.TryLock() {
			continue
		}
		e.evicted = true
		e.mu.Unlock()
		delete(r.entries, id)
		removed++
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 || r.idleTTL <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Sweep()
		}
	}
}

func (r *Registry) touch(id string) (*entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	e.lastUsed = r.now()
	return e, nil
}

func snapshot(s domain.Session) domain.Session {
	s.History = domain.CloneHistory(s.History)
	return s
}
