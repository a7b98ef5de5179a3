// Package presence tracks which users are online.
package presence

import (
	"errors"
	"sync"

	"github.com/wfunc/rpsarena/auth"
)

var ErrDuplicateConnection = errors.New("connection already registered")

// Tracker holds a non-owning association connection id -> identity and a
// per-user connection count so the distinct online count is O(1).
type Tracker struct {
	conns   map[string]auth.Identity
	perUser map[string]int
	mutex   sync.RWMutex
}

func NewTracker() *Tracker {
	return &Tracker{
		conns:   make(map[string]auth.Identity),
		perUser: make(map[string]int),
	}
}

// Register records connID. changed is true when the distinct online count
// went up, i.e. this is the user's first live connection.
func (t *Tracker) Register(connID string, id auth.Identity) (changed bool, err error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if _, exists := t.conns[connID]; exists {
		return false, ErrDuplicateConnection
	}
	t.conns[connID] = id
	t.perUser[id.UserID]++
	return t.perUser[id.UserID] == 1, nil
}

// Unregister forgets connID. changed is true when the user's last
// connection went away.
func (t *Tracker) Unregister(connID string) (changed bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	id, exists := t.conns[connID]
	if !exists {
		return false
	}
	delete(t.conns, connID)

	t.perUser[id.UserID]--
	if t.perUser[id.UserID] <= 0 {
		delete(t.perUser, id.UserID)
		return true
	}
	return false
}

// OnlineCount returns the number of distinct users with a live connection.
func (t *Tracker) OnlineCount() int {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return len(t.perUser)
}
