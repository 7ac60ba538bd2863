package session

import (
	"crypto/rand"
	"encoding/hex"
	"sync"

	"github.com/psds-microservice/ticket-feed-service/internal/errs"
	"github.com/psds-microservice/ticket-feed-service/internal/filter"
	"github.com/psds-microservice/ticket-feed-service/internal/query"
	"github.com/psds-microservice/ticket-feed-service/internal/updates"
)

// Manager держит открытые сессии для HTTP-поверхности.
type Manager struct {
	fetcher query.Fetcher
	sub     updates.Subscriber
	opts    Options

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(fetcher query.Fetcher, sub updates.Subscriber, opts Options) *Manager {
	return &Manager{
		fetcher:  fetcher,
		sub:      sub,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// Open создаёт сессию оператора с начальным фильтром.
func (m *Manager) Open(userID uint64, f filter.State) *Session {
	s := New(newSessionID(), userID, m.fetcher, m.sub, m.opts, f)
	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	return s
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, errs.ErrSessionNotFound
	}
	return s, nil
}

func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return errs.ErrSessionNotFound
	}
	s.Close()
	return nil
}

func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}

func newSessionID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
