// Package matchmaking pairs waiting players in strict arrival order.
package matchmaking

import (
	"sync"
	"time"
)

// Entry 排队中的玩家
type Entry struct {
	UserID      string
	DisplayName string
	ConnID      string
	QueuedAt    time.Time
}

// Pair is two entries matched together, oldest first.
type Pair [2]Entry

// SeatLookup reports whether a user is already seated in a room.
type SeatLookup interface {
	RoomOf(userID string) (string, bool)
}

// Queue is a FIFO of waiting entries with at most one entry per user.
type Queue struct {
	entries []Entry
	queued  map[string]struct{}
	mutex   sync.Mutex
}

func NewQueue() *Queue {
	return &Queue{
		queued: make(map[string]struct{}),
	}
}

// Join appends e unless the user is seated or already queued.
func (q *Queue) Join(e Entry, seats SeatLookup) bool {
	if seats != nil {
		if _, seated := seats.RoomOf(e.UserID); seated {
			return false
		}
	}

	q.mutex.Lock()
	defer q.mutex.Unlock()

	if _, exists := q.queued[e.UserID]; exists {
		return false
	}
	if e.QueuedAt.IsZero() {
		e.QueuedAt = time.Now()
	}
	q.entries = append(q.entries, e)
	q.queued[e.UserID] = struct{}{}
	return true
}

// Leave removes the user's entry if present.
func (q *Queue) Leave(userID string) bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if _, exists := q.queued[userID]; !exists {
		return false
	}
	for i, e := range q.entries {
		if e.UserID == userID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			break
		}
	}
	delete(q.queued, userID)
	return true
}

// LeaveConn removes the user's entry only if it was queued from connID.
func (q *Queue) LeaveConn(userID, connID string) bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	for i, e := range q.entries {
		if e.UserID == userID && e.ConnID == connID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			delete(q.queued, userID)
			return true
		}
	}
	return false
}

// Drain pops the two oldest entries while at least two are waiting.
func (q *Queue) Drain() []Pair {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	var pairs []Pair
	for len(q.entries) >= 2 {
		p := Pair{q.entries[0], q.entries[1]}
		q.entries = q.entries[2:]
		delete(q.queued, p[0].UserID)
		delete(q.queued, p[1].UserID)
		pairs = append(pairs, p)
	}
	if len(q.entries) == 0 {
		q.entries = nil
	}
	return pairs
}

func (q *Queue) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return len(q.entries)
}

func (q *Queue) Contains(userID string) bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	_, ok := q.queued[userID]
	return ok
}

// Reset drops every waiting entry.
func (q *Queue) Reset() {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	q.entries = nil
	clear(q.queued)
}
