// room/room.go
package room

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/rpsarena/game"
	"github.com/wfunc/rpsarena/matchmaking"
)

// RoomStatus 房间状态
type RoomStatus int

const (
	StatusActive RoomStatus = iota
	StatusDestroyed
)

func (s RoomStatus) String() string {
	if s == StatusActive {
		return "active"
	}
	return "destroyed"
}

// Player 占据座位的玩家
type Player struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	ConnID      string `json:"-"`
}

// RoundOutcome is returned when a submission completes the move set.
type RoundOutcome struct {
	RoomID string
	Round  int
	Result game.RoundResult
}

// Room 是一个两人对战房间。座位固定为两个。
type Room struct {
	ID          string
	Players     [2]Player
	CreatedAt   time.Time
	status      RoomStatus
	round       int
	moves       map[string]game.Move
	broadcaster Broadcaster
	mutex       sync.Mutex
}

func newRoom(id string, a, b matchmaking.Entry, broadcaster Broadcaster) *Room {
	return &Room{
		ID: id,
		Players: [2]Player{
			{UserID: a.UserID, DisplayName: a.DisplayName, ConnID: a.ConnID},
			{UserID: b.UserID, DisplayName: b.DisplayName, ConnID: b.ConnID},
		},
		CreatedAt:   time.Now(),
		status:      StatusActive,
		moves:       make(map[string]game.Move, 2),
		broadcaster: broadcaster,
	}
}

// GetID 返回房间ID
func (r *Room) GetID() string {
	return r.ID
}

func (r *Room) Status() RoomStatus {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.status
}

// Round returns how many rounds have been resolved in this room.
func (r *Room) Round() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.round
}

// Seat returns the seat index of userID, or -1.
func (r *Room) Seat(userID string) int {
	for i, p := range r.Players {
		if p.UserID == userID {
			return i
		}
	}
	return -1
}

func (r *Room) HasPlayer(userID string) bool {
	return r.Seat(userID) >= 0
}

// ConnOf returns the connection userID is seated through.
func (r *Room) ConnOf(userID string) (string, bool) {
	if i := r.Seat(userID); i >= 0 {
		return r.Players[i].ConnID, true
	}
	return "", false
}

// ConnIDs is the room's broadcast scope.
func (r *Room) ConnIDs() []string {
	return []string{r.Players[0].ConnID, r.Players[1].ConnID}
}

// PendingMoves returns how many seats have moved in the current round.
func (r *Room) PendingMoves() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.moves)
}

// Broadcast sends an event to every seated connection.
func (r *Room) Broadcast(event string, payload any) error {
	if r.broadcaster == nil {
		return nil
	}
	return r.broadcaster.BroadcastToConnections(r.ConnIDs(), event, payload)
}

// submit records the move and resolves the round once both seats moved.
// Resolution and clearing happen under the same lock.
func (r *Room) submit(userID string, move game.Move) (*RoundOutcome, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.status != StatusActive {
		return nil, false
	}
	seat := r.Seat(userID)
	if seat < 0 {
		return nil, false
	}

	r.moves[userID] = move
	if len(r.moves) < len(r.Players) {
		return nil, true
	}

	var set [2]game.PlayerMove
	for i, p := range r.Players {
		set[i] = game.PlayerMove{UserID: p.UserID, DisplayName: p.DisplayName, Move: r.moves[p.UserID]}
	}
	result := game.Resolve(set)
	r.round++
	clear(r.moves)

	return &RoundOutcome{RoomID: r.ID, Round: r.round, Result: result}, true
}

func (r *Room) destroy() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.status = StatusDestroyed
	clear(r.moves)
}

// --- 房间管理器 ---

// Manager owns every live room and the user -> room seat index.
type Manager struct {
	rooms       map[string]*Room
	seats       map[string]string // userID -> roomID
	broadcaster Broadcaster
	newID       func() string
	mutex       sync.RWMutex
}

// NewRoomManager 创建一个新的房间管理器
func NewRoomManager(broadcaster Broadcaster) *Manager {
	return &Manager{
		rooms:       make(map[string]*Room),
		seats:       make(map[string]string),
		broadcaster: broadcaster,
		newID:       generateID,
	}
}

// generateID uses UUIDv7: a millisecond timestamp plus random bits.
func generateID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// CreateRoom seats both entries in a new active room.
func (m *Manager) CreateRoom(a, b matchmaking.Entry) *Room {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	id := m.newID()
	for {
		if _, taken := m.rooms[id]; !taken {
			break
		}
		id = m.newID()
	}

	room := newRoom(id, a, b, m.broadcaster)
	m.rooms[id] = room
	m.seats[a.UserID] = id
	m.seats[b.UserID] = id
	return room
}

// GetRoom 从管理器中获取一个房间
func (m *Manager) GetRoom(id string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	room, exists := m.rooms[id]
	return room, exists
}

// RoomOf returns the room the user is seated in.
func (m *Manager) RoomOf(userID string) (string, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	id, ok := m.seats[userID]
	return id, ok
}

// SubmitMove records a move. accepted is false, with no state change, when
// the room is gone, the move is invalid or the user is not seated there.
// outcome is non-nil only when this submission completed the round.
func (m *Manager) SubmitMove(roomID, userID, raw string) (outcome *RoundOutcome, accepted bool) {
	move, ok := game.NormalizeMove(raw)
	if !ok {
		return nil, false
	}
	room, exists := m.GetRoom(roomID)
	if !exists {
		return nil, false
	}
	return room.submit(userID, move)
}

// RemovePlayer unseats userID and destroys the room. remaining lists the
// players still seated at the moment of departure.
func (m *Manager) RemovePlayer(roomID, userID string) (room *Room, remaining []Player, removed bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	room, exists := m.rooms[roomID]
	if !exists || !room.HasPlayer(userID) {
		return nil, nil, false
	}

	for _, p := range room.Players {
		if p.UserID != userID {
			remaining = append(remaining, p)
		}
		delete(m.seats, p.UserID)
	}
	delete(m.rooms, roomID)
	room.destroy()
	return room, remaining, true
}

// Count returns the number of live rooms.
func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}

// CloseAll destroys every room; used on shutdown.
func (m *Manager) CloseAll() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for id, room := range m.rooms {
		room.destroy()
		delete(m.rooms, id)
	}
	clear(m.seats)
}
