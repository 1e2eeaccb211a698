package cart

import (
	"context"
	"sync"
	"time"
)

// MemoryStorage keeps values in process memory.
type MemoryStorage struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: map[string]string{}}
}

func (m *MemoryStorage) GetItem(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.items[key]
	return value, ok, nil
}

func (m *MemoryStorage) SetItem(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

func (m *MemoryStorage) RemoveItem(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// defaultSessionIdle matches the SESSION_TTL default.
const defaultSessionIdle = 24 * time.Hour

// MemorySessions hands out one MemoryStorage per session id. Sessions not
// touched for the idle period are dropped on a later lookup.
type MemorySessions struct {
	mu        sync.Mutex
	sessions  map[string]*memorySession
	idle      time.Duration
	now       func() time.Time
	lastSweep time.Time
}

type memorySession struct {
	storage *MemoryStorage
	seen    time.Time
}

// NewMemorySessions creates an empty session registry evicting sessions
// idle longer than idle. A non-positive idle uses a day.
func NewMemorySessions(idle time.Duration) *MemorySessions {
	if idle <= 0 {
		idle = defaultSessionIdle
	}
	return &MemorySessions{
		sessions: map[string]*memorySession{},
		idle:     idle,
		now:      time.Now,
	}
}

// WithClock replaces the time source.
func (m *MemorySessions) WithClock(now func() time.Time) *MemorySessions {
	if now != nil {
		m.now = now
	}
	return m
}

// Len reports how many sessions are held.
func (m *MemorySessions) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Factory returns a StorageFactory backed by the registry.
func (m *MemorySessions) Factory() StorageFactory {
	return func(sessionID string) Storage {
		m.mu.Lock()
		defer m.mu.Unlock()
		now := m.now()
		m.sweep(now)
		sess, ok := m.sessions[sessionID]
		if !ok {
			sess = &memorySession{storage: NewMemoryStorage()}
			m.sessions[sessionID] = sess
		}
		sess.seen = now
		return sess.storage
	}
}

func (m *MemorySessions) sweep(now time.Time) {
	if now.Sub(m.lastSweep) < m.idle/2 {
		return
	}
	m.lastSweep = now
	cutoff := now.Add(-m.idle)
	for id, sess := range m.sessions {
		if sess.seen.Before(cutoff) {
			delete(m.sessions, id)
		}
	}
}
