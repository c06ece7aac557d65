package state

import (
	"sync"
	"time"
)

// Session stores temporary data for a user.
type Session struct {
	TempData  map[string]any
	UpdatedAt time.Time
}

// Manager stores per-user temporary values.
type Manager interface {
	SetTemp(userID int64, key string, value any)
	GetTemp(userID int64, key string) (any, bool)
	// TakeTemp returns the value and removes it.
	TakeTemp(userID int64, key string) (any, bool)
	ClearTemp(userID int64, key string)
	Clear(userID int64)
}

// MemoryManager is an in-memory Manager. Sessions idle longer than the TTL
// are invisible to readers and removed by Prune.
type MemoryManager struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryManager constructs an in-memory Manager. ttl <= 0 disables expiry.
func NewMemoryManager(ttl time.Duration) *MemoryManager {
	return &MemoryManager{
		sessions: make(map[int64]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (m *MemoryManager) expired(s *Session, now time.Time) bool {
	return m.ttl > 0 && now.Sub(s.UpdatedAt) > m.ttl
}

// live returns the session for userID, dropping it when expired. Caller holds mu.
func (m *MemoryManager) live(userID int64) (*Session, bool) {
	s, ok := m.sessions[userID]
	if !ok {
		return nil, false
	}
	if m.expired(s, m.now()) {
		delete(m.sessions, userID)
		return nil, false
	}
	return s, true
}

// SetTemp stores a temporary key/value pair for the given user session.
func (m *MemoryManager) SetTemp(userID int64, key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.live(userID)
	if !ok {
		s = &Session{TempData: make(map[string]any)}
		m.sessions[userID] = s
	}
	s.TempData[key] = value
	s.UpdatedAt = m.now()
}

// GetTemp retrieves a temporary value by key for the given user session.
func (m *MemoryManager) GetTemp(userID int64, key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.live(userID)
	if !ok {
		return nil, false
	}
	v, ok := s.TempData[key]
	return v, ok
}

// TakeTemp retrieves and removes a temporary value.
func (m *MemoryManager) TakeTemp(userID int64, key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.live(userID)
	if !ok {
		return nil, false
	}
	v, ok := s.TempData[key]
	if ok {
		delete(s.TempData, key)
		if len(s.TempData) == 0 {
			delete(m.sessions, userID)
		}
	}
	return v, ok
}

// ClearTemp removes a temporary key/value pair for the given user session.
func (m *MemoryManager) ClearTemp(userID int64, key string) {
	_, _ = m.TakeTemp(userID, key)
}

// Clear removes the entire session for a user.
func (m *MemoryManager) Clear(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

// Prune drops expired sessions and returns how many were removed.
func (m *MemoryManager) Prune() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, s := range m.sessions {
		if m.expired(s, now) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored sessions.
func (m *MemoryManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
