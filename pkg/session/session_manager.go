package session

import (
	"fmt"
	"sync"
)

// SessionManager manages multiple sessions
type SessionManager interface {
	AddSession(session *Session) error
	GetSession(id string) (*Session, error)
	RemoveSession(id string)
	SessionIDs() []string
}

// InMemoryManager implements SessionManager with in-memory storage
type InMemoryManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionManager creates a new session manager
func NewSessionManager() SessionManager {
	return &InMemoryManager{
		sessions: make(map[string]*Session),
	}
}

// AddSession registers a session under its identifier
func (m *InMemoryManager) AddSession(session *Session) error {
	if session == nil {
		return fmt.Errorf("session must not be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[session.ID()]; exists {
		return fmt.Errorf("session %s already exists", session.ID())
	}
	m.sessions[session.ID()] = session
	return nil
}

// GetSession retrieves an existing session by ID
func (m *InMemoryManager) GetSession(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[id]
	if !exists {
		return nil, fmt.Errorf("no session with id %s, please create one first", id)
	}
	return session, nil
}

// RemoveSession drops a session. Removing an unknown ID is a no-op.
func (m *InMemoryManager) RemoveSession(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// SessionIDs lists the identifiers of all registered sessions
func (m *InMemoryManager) SessionIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}
