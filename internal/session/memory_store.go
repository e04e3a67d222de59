package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps sessions in an in-process map, matching the demo
// deployment shape. Expired records are dropped lazily on Load and
// periodically by the sweeper so abandoned login round trips cannot leak.
type MemoryStore struct {
	mu       sync.RWMutex
	ttl      time.Duration
	sessions map[string]Session
}

// NewMemoryStore constructs an empty store with the given session TTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:      ttl,
		sessions: make(map[string]Session),
	}
}

// Create stores a fresh anonymous session and returns it.
func (m *MemoryStore) Create(_ context.Context) (*Session, error) {
	id, err := GenerateID()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	s := Session{
		ID:        id,
		RecordID:  uuid.New(),
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	out := s
	return &out, nil
}

// Load returns the session for id, or nil when absent or expired.
func (m *MemoryStore) Load(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		return nil, nil
	}

	if time.Now().After(s.ExpiresAt) {
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
		return nil, nil
	}

	out := s
	return &out, nil
}

// Save overwrites the record and slides its expiry, last writer wins.
func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	s.ExpiresAt = time.Now().Add(m.ttl)

	m.mu.Lock()
	m.sessions[s.ID] = *s
	m.mu.Unlock()
	return nil
}

// Destroy removes the record; destroying twice is a no-op.
func (m *MemoryStore) Destroy(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}

// StartSweeper launches a goroutine that evicts expired sessions and expired
// pending states until ctx is cancelled.
func (m *MemoryStore) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sweep(time.Now())
			}
		}
	}()
}

func (m *MemoryStore) sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, s := range m.sessions {
		if now.After(s.ExpiresAt) {
			delete(m.sessions, id)
			continue
		}
		if s.PendingState != "" && now.After(s.PendingStateExpiry) {
			s.PendingState = ""
			s.PendingStateExpiry = time.Time{}
			m.sessions[id] = s
		}
	}
}

func (m *MemoryStore) len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
