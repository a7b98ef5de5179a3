// models/models.go
package models

import (
	"time"
)

// LeaderboardEntry 排行榜条目
type LeaderboardEntry struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Wins        int64  `json:"wins"`
	Losses      int64  `json:"losses"`
}

// GameRecord 一局对战的记录
type GameRecord struct {
	RoomID    string       `json:"roomId"`
	Round     int          `json:"round"`
	Players   []PlayerInfo `json:"players"`
	CreatedAt time.Time    `json:"createdAt"`
}

// PlayerInfo 玩家信息（用于游戏记录）
type PlayerInfo struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Move        string `json:"move"`
	Outcome     string `json:"outcome"` // win/lose/draw
}

// Winner returns the user id recorded with a win, if any.
func (r GameRecord) Winner() (string, bool) {
	for _, p := range r.Players {
		if p.Outcome == "win" {
			return p.UserID, true
		}
	}
	return "", false
}

// Loser returns the user id recorded with a loss, if any.
func (r GameRecord) Loser() (string, bool) {
	for _, p := range r.Players {
		if p.Outcome == "lose" {
			return p.UserID, true
		}
	}
	return "", false
}
