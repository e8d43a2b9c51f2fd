// Package store persists challenge sessions. Both implementations serialize
// mutations per session id through Update; distinct sessions never contend.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"checkout/internal/challenge/models"
	"checkout/pkg/platform/sentinel"
)

// DefaultRetention keeps a session readable for a while after it expires so
// late steps get ChallengeExpired instead of NotFound.
const DefaultRetention = 15 * time.Minute

// MemoryStore is a process-local session store.
type MemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string]*models.Session
	locks     keyLocks
	retention time.Duration
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryRetention overrides how long expired sessions are kept.
func WithMemoryRetention(d time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		s.retention = d
	}
}

func NewMemory(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		sessions:  make(map[string]*models.Session),
		locks:     keyLocks{m: make(map[string]*keyLock)},
		retention: DefaultRetention,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Create(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID]; exists {
		return fmt.Errorf("challenge session %s: %w", session.ID, sentinel.ErrConflict)
	}
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("challenge session %s: %w", id, sentinel.ErrNotFound)
	}
	return session.Clone(), nil
}

// Update runs fn on a copy of the session while holding the session's lock
// and stores the result. If fn returns an error nothing is written.
func (s *MemoryStore) Update(ctx context.Context, id string, fn func(*models.Session) error) (*models.Session, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(session); err != nil {
		return nil, err
	}
	session.Version++

	s.mu.Lock()
	s.sessions[id] = session.Clone()
	s.mu.Unlock()
	return session, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("challenge session %s: %w", id, sentinel.ErrNotFound)
	}
	delete(s.sessions, id)
	return nil
}

// Sweep removes sessions whose retention window has passed and returns how
// many were removed.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, session := range s.sessions {
		if !session.ExpiresAt.IsZero() && now.After(session.ExpiresAt.Add(s.retention)) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// RunJanitor sweeps every interval until ctx is cancelled.
func (s *MemoryStore) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Sweep(now)
		}
	}
}

// Len returns the number of stored sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// keyLocks hands out one mutex per key and forgets it once no goroutine holds
// or waits on it.
type keyLocks struct {
	mu sync.Mutex
	m  map[string]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

func (k *keyLocks) lock(key string) func() {
	k.mu.Lock()
	l, ok := k.m[key]
	if !ok {
		l = &keyLock{}
		k.m[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.m, key)
		}
		k.mu.Unlock()
	}
}
