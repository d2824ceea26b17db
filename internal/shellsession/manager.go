package shellsession

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager tracks all open sessions for the shell adapter and reaps ones
// past SessionMaxLifetime with no running command (spec.md §4.12).
type Manager struct {
	cfg Config

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg, sessions: make(map[string]*Session)}
}

// Open starts a new session and registers it for maintenance.
func (m *Manager) Open() (*Session, error) {
	s, err := Open(uuid.NewString(), m.cfg)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s, nil
}

// Get returns an open session by id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Close closes and unregisters a session.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return s.Close()
}

// RunMaintenance reaps expired sessions once; intended to be called from
// a ticking loop under ctx.
func (m *Manager) RunMaintenance() {
	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.Expired() {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		_ = s.Close()
	}
}

// StartMaintenance runs RunMaintenance every interval until ctx is
// cancelled.
func (m *Manager) StartMaintenance(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.RunMaintenance()
		}
	}
}
