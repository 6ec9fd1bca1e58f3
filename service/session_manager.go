package service

import (
	"sync"

	"botgateway/interfaces"
)

// sessionManager implements interfaces.SessionManager: a flat map of connection_id to live
// Session, guarded by a single mutex. Grounded on the same map-plus-mutex shape as
// service/connection_pool.go, scaled down since session lookup has no eviction policy of its own
// — sessions remove themselves via teardown (service/session.go).
type sessionManager struct {
	mu       sync.RWMutex
	sessions map[string]interfaces.Session
}

// NewSessionManager creates an empty SessionManager.
func NewSessionManager() interfaces.SessionManager {
	return &sessionManager{sessions: make(map[string]interfaces.Session)}
}

// Get returns the live session for connectionID, or ok=false if none is registered.
func (m *sessionManager) Get(connectionID string) (interfaces.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[connectionID]
	return s, ok
}

// Register installs s under its ConnectionID, replacing any prior entry for that id.
func (m *sessionManager) Register(s interfaces.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ConnectionID()] = s
}

// Unregister removes the session for connectionID, if present.
func (m *sessionManager) Unregister(connectionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, connectionID)
}
