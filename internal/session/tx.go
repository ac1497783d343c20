package session

import (
	"context"
	"fmt"

	"github.com/Rrens/nl2sql/internal/domain"
)

// Handle is exclusive access to one session.
type Handle struct {
	store    *Store
	id       string
	e        *entry
	created  bool
	released bool
}

// ID returns the session id.
func (h *Handle) ID() string {
	return h.id
}

// Created reports whether Acquire created the session.
func (h *Handle) Created() bool {
	return h.created
}

// Session returns a copy of the committed state.
func (h *Handle) Session() *domain.Session {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	return h.e.session.Clone()
}

// Begin starts a staged transaction on a working copy of the session.
func (h *Handle) Begin() *Tx {
	return &Tx{h: h, working: h.Session()}
}

// Release unlocks the session. It is safe to call more than once.
func (h *Handle) Release() {
	if h.released {
		return
	}
	h.released = true

	h.store.mu.Lock()
	h.e.lastSeen = h.store.now()
	h.store.mu.Unlock()

	<-h.e.lock
}

// Tx stages writes to a session. Nothing is visible until Commit.
type Tx struct {
	h         *Handle
	working   *domain.Session
	committed bool
	closed    bool
}

// Session returns the mutable working copy.
func (t *Tx) Session() *domain.Session {
	return t.working
}

// Commit applies the working copy. It refuses when ctx is already done so a
// cancelled call never leaves a partial mutation behind.
func (t *Tx) Commit(ctx context.Context) error {
	if t.closed {
		return fmt.Errorf("transaction already closed")
	}
	if err := ctx.Err(); err != nil {
		t.closed = true
		return fmt.Errorf("commit refused: %w", err)
	}

	s := t.h.store
	t.working.LastActivity = s.now()

	s.mu.Lock()
	t.h.e.session = t.working
	s.mu.Unlock()

	t.working = t.working.Clone()
	t.committed = true
	t.closed = true
	return nil
}

// Rollback discards staged writes. It is a no-op after Commit.
func (t *Tx) Rollback() {
	t.closed = true
}

// Committed reports whether Commit succeeded.
func (t *Tx) Committed() bool {
	return t.committed
}
