package network

import (
	"time"

	"github.com/wfunc/rpsarena/game"
)

// Inbound events.
const (
	EventQueueJoin   = "queue:join"
	EventQueueLeave  = "queue:leave"
	EventGameMove    = "game:move"
	EventChatMessage = "chat:message"
	EventRoomChat    = "room:chat"
)

// Outbound events.
const (
	EventOnlineCount       = "onlineCount"
	EventRoomJoined        = "room:joined"
	EventGameResult        = "game:result"
	EventRoomUpdatePlayers = "room:updatePlayers"
	EventRoomEnded         = "room:ended"
	EventChatNewMessage    = "chat:newMessage"
	EventRoomChatNew       = "room:chat:new"
)

// Envelope is the JSON frame exchanged in both directions:
// {"event": "...", "data": ...}.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// PlayerView 对外展示的玩家信息
type PlayerView struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// RoomJoined is sent to each newly seated player.
type RoomJoined struct {
	RoomID  string       `json:"roomId"`
	Players []PlayerView `json:"players"`
}

// GameResult is broadcast to a room after each resolved round.
type GameResult struct {
	RoomID           string              `json:"roomId"`
	ResultsPerPlayer []game.PlayerResult `json:"resultsPerPlayer"`
}

// ChatMessage 大厅聊天
type ChatMessage struct {
	DisplayName string    `json:"displayName"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
}

// RoomChatMessage 房间内聊天
type RoomChatMessage struct {
	RoomID      string    `json:"roomId"`
	DisplayName string    `json:"displayName"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
}
