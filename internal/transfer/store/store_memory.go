// Package store persists wizard snapshots. Every save is checked against the
// version the caller loaded; a mismatch returns sentinel.ErrConflict so the
// caller can reload and retry.
package store

import (
	"context"
	"sync"
	"time"

	"remitflow/internal/transfer/wizard"
	"remitflow/pkg/platform/sentinel"
)

type entry struct {
	state     wizard.State
	expiresAt time.Time
}

// InMemoryStore keeps snapshots in process. Suitable for a single instance.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]entry
	intents  map[string]string
	ttl      time.Duration
	now      func() time.Time
}

type MemoryOption func(*InMemoryStore)

// WithClock overrides the clock used for TTL expiry.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *InMemoryStore) { s.now = now }
}

// NewInMemoryStore builds a store whose sessions expire ttl after their last
// save. A zero ttl keeps sessions forever.
func NewInMemoryStore(ttl time.Duration, opts ...MemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		sessions: make(map[string]entry),
		intents:  make(map[string]string),
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) expiry() time.Time {
	if s.ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(s.ttl)
}

func (s *InMemoryStore) live(e entry) bool {
	return e.expiresAt.IsZero() || s.now().Before(e.expiresAt)
}

func (s *InMemoryStore) Create(_ context.Context, state *wizard.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[state.SessionID]; ok && s.live(existing) {
		return sentinel.ErrConflict
	}
	state.Version = 1
	s.put(state)
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, sessionID string) (*wizard.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[sessionID]
	if !ok || !s.live(e) {
		return nil, sentinel.ErrNotFound
	}
	st := e.state.Clone()
	return &st, nil
}

func (s *InMemoryStore) Save(_ context.Context, state *wizard.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[state.SessionID]
	if !ok || !s.live(e) {
		return sentinel.ErrNotFound
	}
	if e.state.Version != state.Version {
		return sentinel.ErrConflict
	}
	state.Version++
	s.put(state)
	return nil
}

func (s *InMemoryStore) put(state *wizard.State) {
	s.sessions[state.SessionID] = entry{state: state.Clone(), expiresAt: s.expiry()}
	if state.Intent != nil {
		s.intents[state.Intent.ID] = state.SessionID
	}
}

func (s *InMemoryStore) FindSessionByIntent(_ context.Context, intentID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessionID, ok := s.intents[intentID]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	if e, ok := s.sessions[sessionID]; !ok || !s.live(e) {
		return "", sentinel.ErrNotFound
	}
	return sessionID, nil
}

// DeleteExpired drops expired sessions and their intent index entries.
func (s *InMemoryStore) DeleteExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.sessions {
		if s.live(e) {
			continue
		}
		delete(s.sessions, id)
		removed++
	}
	for intentID, sessionID := range s.intents {
		if _, ok := s.sessions[sessionID]; !ok {
			delete(s.intents, intentID)
		}
	}
	return removed, nil
}
