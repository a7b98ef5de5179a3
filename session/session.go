// session/session.go
package session

import (
	"sync"
	"time"

	"github.com/wfunc/rpsarena/auth"
	"github.com/wfunc/rpsarena/network"
)

// Session 一条已认证的连接。Identity 在连接建立时确定，之后不再改变。
type Session struct {
	ID         string
	Conn       network.Connection
	Identity   auth.Identity
	CreatedAt  time.Time
	lastActive time.Time
	mutex      sync.RWMutex
}

func NewSession(id string, conn network.Connection, identity auth.Identity) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		Identity:   identity,
		CreatedAt:  now,
		lastActive: now,
	}
}

func (s *Session) Send(event string, payload any) error {
	return s.Conn.Send(event, payload)
}

// Touch records inbound activity.
func (s *Session) Touch() {
	s.mutex.Lock()
	s.lastActive = time.Now()
	s.mutex.Unlock()
}

func (s *Session) LastActive() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lastActive
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Session管理器
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

// CountIdle returns how many sessions have sent nothing for at least d.
func (m *Manager) CountIdle(d time.Duration) int {
	cutoff := time.Now().Add(-d)
	idle := 0
	for _, s := range m.All() {
		if !s.LastActive().After(cutoff) {
			idle++
		}
	}
	return idle
}

// All returns a snapshot of every live session.
func (m *Manager) All() []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	result := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// CloseAll closes every connection; used on shutdown.
func (m *Manager) CloseAll() {
	for _, s := range m.All() {
		_ = s.Close()
	}
}
