package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/nl2sql/internal/domain"
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:-]{0,127}$`)

// ErrNoSnapshotter is returned by Save and Restore when no snapshot store is configured.
var ErrNoSnapshotter = errors.New("session snapshots are not configured")

// ValidateID checks that id is usable as a session key.
func ValidateID(id string) error {
	if !idPattern.MatchString(id) {
		return &domain.SessionError{SessionID: id, Reason: "invalid session id"}
	}
	return nil
}

// NewID returns a fresh random session id.
func NewID() string {
	return uuid.NewString()
}

// ExpireFunc is called after a session has been torn down.
type ExpireFunc func(ctx context.Context, s *domain.Session)

type entry struct {
	lock     chan struct{}
	session  *domain.Session
	lastSeen time.Time
	expired  bool
}

// Store keeps sessions in memory. Each session has its own lock so independent
// sessions never block each other.
type Store struct {
	mu         sync.Mutex
	entries    map[string]*entry
	tombstones map[string]time.Time

	idleTimeout time.Duration
	now         func() time.Time
	onExpire    ExpireFunc
	snapshots   domain.Snapshotter
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithExpireHook registers fn to run when a session is expired or ended.
func WithExpireHook(fn ExpireFunc) Option {
	return func(s *Store) { s.onExpire = fn }
}

// WithSnapshotter enables Save and Restore.
func WithSnapshotter(snap domain.Snapshotter) Option {
	return func(s *Store) { s.snapshots = snap }
}

// NewStore creates a store. A zero idleTimeout disables expiry.
func NewStore(idleTimeout time.Duration, opts ...Option) *Store {
	s := &Store{
		entries:     make(map[string]*entry),
		tombstones:  make(map[string]time.Time),
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Acquire locks the session with the given id, creating it when unknown.
// The caller must Release the handle.
func (s *Store) Acquire(ctx context.Context, id string) (*Handle, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if _, ok := s.tombstones[id]; ok {
		delete(s.tombstones, id)
		s.mu.Unlock()
		return nil, &domain.SessionError{SessionID: id, Reason: "session expired after inactivity"}
	}

	created := false
	e, ok := s.entries[id]
	if !ok {
		e = &entry{
			lock:    make(chan struct{}, 1),
			session: domain.NewSession(id, s.now()),
		}
		s.entries[id] = e
		created = true
	}
	e.lastSeen = s.now()
	s.mu.Unlock()

	select {
	case e.lock <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("failed to lock session %s: %w", id, ctx.Err())
	}

	if e.expired {
		<-e.lock
		s.mu.Lock()
		delete(s.tombstones, id)
		s.mu.Unlock()
		return nil, &domain.SessionError{SessionID: id, Reason: "session expired after inactivity"}
	}

	return &Handle{store: s, id: id, e: e, created: created}, nil
}

// Get returns a copy of the committed session state.
func (s *Store) Get(id string) (*domain.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	return e.session.Clone(), true
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Delete ends a session and runs the expire hook. Unknown ids are a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	e, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	select {
	case e.lock <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("failed to lock session %s: %w", id, ctx.Err())
	}
	defer func() { <-e.lock }()

	if e.expired {
		return nil
	}

	s.mu.Lock()
	e.expired = true
	delete(s.entries, id)
	s.mu.Unlock()

	s.expire(ctx, e.session)
	return nil
}

// Sweep tears down sessions idle for longer than the idle timeout and returns
// how many were removed. Sessions currently locked are skipped.
func (s *Store) Sweep(ctx context.Context) int {
	if s.idleTimeout <= 0 {
		return 0
	}

	now := s.now()
	var victims []*entry

	s.mu.Lock()
	for id, e := range s.entries {
		if now.Sub(e.lastSeen) < s.idleTimeout {
			continue
		}
		select {
		case e.lock <- struct{}{}:
		default:
			continue
		}
		e.expired = true
		delete(s.entries, id)
		s.tombstones[id] = now
		victims = append(victims, e)
	}
	for id, at := range s.tombstones {
		if now.Sub(at) > s.idleTimeout {
			delete(s.tombstones, id)
		}
	}
	s.mu.Unlock()

	for _, e := range victims {
		log.Info().Str("session_id", e.session.ID).Msg("Session expired")
		s.expire(ctx, e.session)
		<-e.lock
	}

	return len(victims)
}

// Run sweeps idle sessions every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 || s.idleTimeout <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(ctx); n > 0 {
				log.Debug().Int("expired", n).Msg("Swept idle sessions")
			}
		}
	}
}

// Save persists the committed state of a session.
func (s *Store) Save(ctx context.Context, id string) error {
	if s.snapshots == nil {
		return ErrNoSnapshotter
	}

	sess, ok := s.Get(id)
	if !ok {
		return &domain.SessionError{SessionID: id, Reason: "session not found"}
	}

	if err := s.snapshots.SaveSnapshot(ctx, sess); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Restore loads a saved session into the store, replacing any live state with
// the same id. Restored sessions never carry a live connection.
func (s *Store) Restore(ctx context.Context, id string) (*domain.Session, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	if s.snapshots == nil {
		return nil, ErrNoSnapshotter
	}

	saved, err := s.snapshots.LoadSnapshot(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if saved == nil {
		return nil, &domain.SessionError{SessionID: id, Reason: "no saved session"}
	}

	h, err := s.Acquire(ctx, id)
	if err != nil {
		// A tombstone was consumed, so the retry starts from a clean slot.
		var sessErr *domain.SessionError
		if !errors.As(err, &sessErr) {
			return nil, err
		}
		if h, err = s.Acquire(ctx, id); err != nil {
			return nil, err
		}
	}
	defer h.Release()

	tx := h.Begin()
	previous := tx.Session().Connection

	restored := saved.Clone()
	restored.ID = id
	restored.ClearConnection()
	if restored.Preferences == nil {
		restored.Preferences = make(map[string]string)
	}
	*tx.Session() = *restored

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	if previous != nil {
		s.expire(ctx, &domain.Session{ID: id, Connection: previous})
	}

	return h.Session(), nil
}

func (s *Store) expire(ctx context.Context, sess *domain.Session) {
	if s.onExpire != nil {
		s.onExpire(context.WithoutCancel(ctx), sess)
	}
}
