// models/gorm_models.go
package models

import (
	"gorm.io/gorm"
)

// GormPlayer 玩家战绩
type GormPlayer struct {
	gorm.Model
	UserID      string `gorm:"uniqueIndex;not null"`
	DisplayName string `gorm:"not null;default:''"`
	Wins        int64  `gorm:"not null;default:0;index"`
	Losses      int64  `gorm:"not null;default:0"`
}

func (GormPlayer) TableName() string { return "players" }

// GormGameRecord 游戏记录模型
type GormGameRecord struct {
	gorm.Model
	RoomID  string `gorm:"index;not null"`
	Round   int    `gorm:"not null"`
	Players []byte `gorm:"type:jsonb;not null"`
}

func (GormGameRecord) TableName() string { return "game_records" }

// Entry converts the row into its API shape.
func (p GormPlayer) Entry() LeaderboardEntry {
	return LeaderboardEntry{
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		Wins:        p.Wins,
		Losses:      p.Losses,
	}
}
