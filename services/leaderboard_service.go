// services/leaderboard_service.go
package services

import (
	"context"

	"github.com/wfunc/rpsarena/models"
	"github.com/wfunc/rpsarena/persistence"
)

const (
	DefaultLeaderboardLimit = 20
	MaxLeaderboardLimit     = 100
)

// LeaderboardService 排行榜查询，供 HTTP 与 RPC 共用
type LeaderboardService struct {
	db persistence.Database
}

func NewLeaderboardService(db persistence.Database) *LeaderboardService {
	return &LeaderboardService{db: db}
}

// ClampLimit maps a requested size onto [1, MaxLeaderboardLimit]; zero or
// negative means the default.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLeaderboardLimit
	}
	if limit > MaxLeaderboardLimit {
		return MaxLeaderboardLimit
	}
	return limit
}

// Top 获取前 N 名
func (s *LeaderboardService) Top(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	return s.db.ListTopByWins(ctx, ClampLimit(limit))
}

// Recent 最近的对局记录，limit 同 Top
func (s *LeaderboardService) Recent(ctx context.Context, limit int) ([]models.GameRecord, error) {
	return s.db.RecentGameRecords(ctx, ClampLimit(limit))
}

// Player 获取单个玩家战绩
func (s *LeaderboardService) Player(ctx context.Context, userID string) (models.LeaderboardEntry, error) {
	return s.db.GetPlayer(ctx, userID)
}
