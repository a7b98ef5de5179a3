// broadcast/broadcast.go
package broadcast

import (
	"errors"
	"fmt"

	"github.com/wfunc/rpsarena/session"
)

// 广播接口
type Broadcaster interface {
	BroadcastToAll(event string, payload any) error
	BroadcastToConnections(connIDs []string, event string, payload any) error
}

// SessionBroadcaster delivers events through the session manager. A failed
// send never stops delivery to the remaining recipients.
type SessionBroadcaster struct {
	sessionManager *session.Manager
}

func NewSessionBroadcaster(sessionManager *session.Manager) *SessionBroadcaster {
	return &SessionBroadcaster{sessionManager: sessionManager}
}

func (b *SessionBroadcaster) BroadcastToAll(event string, payload any) error {
	return sendAll(b.sessionManager.All(), event, payload)
}

// BroadcastToConnections skips ids that are no longer live.
func (b *SessionBroadcaster) BroadcastToConnections(connIDs []string, event string, payload any) error {
	targets := make([]*session.Session, 0, len(connIDs))
	for _, id := range connIDs {
		if s, ok := b.sessionManager.Get(id); ok {
			targets = append(targets, s)
		}
	}
	return sendAll(targets, event, payload)
}

func sendAll(targets []*session.Session, event string, payload any) error {
	var errs []error
	for _, s := range targets {
		if err := s.Send(event, payload); err != nil {
			errs = append(errs, fmt.Errorf("send %s to %s: %w", event, s.GetID(), err))
		}
	}
	return errors.Join(errs...)
}
