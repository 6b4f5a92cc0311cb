// Package session keeps short-lived video call sessions between a user and
// a character.
package session

import (
	"context"
	"sync"
	"time"

	kerrors "kokoro/src/errors"
	"kokoro/src/personality"
)

// Session is one live video call.
type Session struct {
	ID            string                `json:"id"`
	Character     personality.Character `json:"character"`
	History       []personality.Turn    `json:"history"`
	StartedAt     time.Time             `json:"started_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
	TotalMessages int                   `json:"total_messages"`
}

// Store keeps sessions by id. Get reports missing or expired sessions with
// errors.ErrSessionNotFound.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

type memoryEntry struct {
	session Session
	expires time.Time
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore creates a store whose sessions expire ttl after their last
// write; zero keeps them until deleted.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{sessions: make(map[string]memoryEntry), ttl: ttl, now: time.Now}
}

func (m *MemoryStore) put(s *Session) {
	var expires time.Time
	if m.ttl > 0 {
		expires = m.now().Add(m.ttl)
	}
	cp := *s
	cp.History = append([]personality.Turn(nil), s.History...)
	m.sessions[s.ID] = memoryEntry{session: cp, expires: expires}
}

func (m *MemoryStore) expired(e memoryEntry) bool {
	return !e.expires.IsZero() && !m.now().Before(e.expires)
}

// Create also drops abandoned sessions whose ttl has passed.
func (m *MemoryStore) Create(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purge()
	m.put(s)
	return nil
}

func (m *MemoryStore) purge() {
	for id, e := range m.sessions {
		if m.expired(e) {
			delete(m.sessions, id)
		}
	}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[id]
	if !ok {
		return nil, kerrors.ErrSessionNotFound
	}
	if m.expired(e) {
		delete(m.sessions, id)
		return nil, kerrors.ErrSessionNotFound
	}
	s := e.session
	s.History = append([]personality.Turn(nil), e.session.History...)
	return &s, nil
}

func (m *MemoryStore) Update(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[s.ID]
	if !ok {
		return kerrors.ErrSessionNotFound
	}
	if m.expired(e) {
		delete(m.sessions, s.ID)
		return kerrors.ErrSessionNotFound
	}
	m.put(s)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return kerrors.ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}
