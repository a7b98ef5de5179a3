package session

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/rpsarena/auth"
	"github.com/wfunc/rpsarena/network"
)

// MockConnection is a test double for the network.Connection interface.
type MockConnection struct {
	mu     sync.Mutex
	sent   []string
	closed bool
}

func (m *MockConnection) Send(event string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, event)
	return nil
}
func (m *MockConnection) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
func (m *MockConnection) RemoteAddr() net.Addr                 { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)  {}
func (m *MockConnection) ReadPacket() (*network.Packet, error) { return nil, nil }

func newTestSession(id, userID string) *Session {
	return NewSession(id, &MockConnection{}, auth.Identity{UserID: userID, DisplayName: userID})
}

func TestNewManager(t *testing.T) {
	manager := NewManager()
	require.NotNil(t, manager)
	require.NotNil(t, manager.sessions)
	assert.Equal(t, 0, manager.Count())
}

func TestManager_Add_Get_Remove(t *testing.T) {
	manager := NewManager()
	sess := newTestSession("test_session_1", "u1")

	manager.Add(sess)
	assert.Equal(t, 1, manager.Count())

	retrieved, exists := manager.Get("test_session_1")
	require.True(t, exists)
	assert.Same(t, sess, retrieved)

	manager.Remove("test_session_1")
	assert.Equal(t, 0, manager.Count())

	_, exists = manager.Get("test_session_1")
	assert.False(t, exists)
}

func TestManager_CountIdle(t *testing.T) {
	manager := NewManager()
	stale := newTestSession("session1", "alice")
	stale.lastActive = time.Now().Add(-time.Hour)
	manager.Add(stale)
	manager.Add(newTestSession("session2", "bob"))
	manager.Add(newTestSession("session3", "alice"))

	assert.Len(t, manager.All(), 3)
	assert.Equal(t, 1, manager.CountIdle(time.Minute))
	assert.Equal(t, 0, manager.CountIdle(2*time.Hour))

	stale.Touch()
	assert.Equal(t, 0, manager.CountIdle(time.Minute))
}

func TestManager_CloseAll(t *testing.T) {
	manager := NewManager()
	conn := &MockConnection{}
	manager.Add(NewSession("s1", conn, auth.Identity{UserID: "u1"}))

	manager.CloseAll()
	assert.True(t, conn.closed)
}

func TestSession_Touch(t *testing.T) {
	sess := newTestSession("s1", "u1")
	before := sess.LastActive()
	time.Sleep(time.Millisecond)
	sess.Touch()
	assert.True(t, sess.LastActive().After(before))
}
