package infrastructure

import (
	"context"
	"sync"
	"time"

	"imagebot/internal/entities"
	"imagebot/internal/interfaces"
)

// MemorySessionStore keeps sessions in process memory. Expired entries are
// hidden on read and swept periodically.
type MemorySessionStore struct {
	sessions map[int64]*entities.Session
	mu       sync.RWMutex
	now      func() time.Time
	stop     chan struct{}
	once     sync.Once
}

var _ interfaces.SessionStore = (*MemorySessionStore)(nil)

func NewMemorySessionStore(sweepEvery time.Duration) *MemorySessionStore {
	m := &MemorySessionStore{
		sessions: make(map[int64]*entities.Session),
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	if sweepEvery > 0 {
		go m.sweep(sweepEvery)
	}
	return m
}

func (m *MemorySessionStore) Get(_ context.Context, userID int64) (*entities.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[userID]
	if !ok || session.Expired(m.now()) {
		return nil, nil
	}
	return cloneSession(session), nil
}

func (m *MemorySessionStore) Save(_ context.Context, session *entities.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.UserID] = cloneSession(session)
	return nil
}

func (m *MemorySessionStore) Delete(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}

// Sweep drops expired sessions.
func (m *MemorySessionStore) Sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for id, session := range m.sessions {
		if session.Expired(now) {
			delete(m.sessions, id)
		}
	}
}

func (m *MemorySessionStore) Close() {
	m.once.Do(func() { close(m.stop) })
}

func (m *MemorySessionStore) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Sweep()
		case <-m.stop:
			return
		}
	}
}

func cloneSession(s *entities.Session) *entities.Session {
	c := *s
	c.Images = append([]string(nil), s.Images...)
	return &c
}
