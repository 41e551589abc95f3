// Package support is a bank customer-support agent with a login-gated set
// of account tools.
package support

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"
)

// DefaultSessionTimeout is how long an idle session stays valid.
const DefaultSessionTimeout = time.Hour

type session struct {
	customerID   int
	createdAt    time.Time
	lastAccessed time.Time
}

// SessionManager issues and validates login tokens.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*session
	timeout  time.Duration
	now      func() time.Time
}

// NewSessionManager creates a manager. A non-positive timeout means
// DefaultSessionTimeout.
func NewSessionManager(timeout time.Duration) *SessionManager {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	return &SessionManager{sessions: make(map[string]*session), timeout: timeout, now: time.Now}
}

// Create starts a session for customerID and returns its token.
func (m *SessionManager) Create(customerID int) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(b)
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[token] = &session{customerID: customerID, createdAt: now, lastAccessed: now}
	return token, nil
}

// Validate returns the session's customer and refreshes its last access.
// Expired sessions are dropped.
func (m *SessionManager) Validate(token string) (int, bool) {
	if token == "" {
		return 0, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok {
		return 0, false
	}
	now := m.now()
	if now.Sub(s.lastAccessed) > m.timeout {
		delete(m.sessions, token)
		return 0, false
	}
	s.lastAccessed = now
	return s.customerID, true
}

// Invalidate ends a session and reports whether it existed.
func (m *SessionManager) Invalidate(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[token]; !ok {
		return false
	}
	delete(m.sessions, token)
	return true
}
