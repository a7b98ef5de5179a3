// persistence/interface.go
package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/wfunc/rpsarena/config"
	"github.com/wfunc/rpsarena/models"
)

// Database 排行榜存储接口。Increments for an unknown user create the
// player with zero counters first.
type Database interface {
	RegisterPlayer(ctx context.Context, userID, displayName string) error
	IncrementWins(ctx context.Context, userID string) error
	IncrementLosses(ctx context.Context, userID string) error
	// ListTopByWins orders by wins desc, then losses asc, then user id.
	// A non-positive limit yields an empty list.
	ListTopByWins(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	GetPlayer(ctx context.Context, userID string) (models.LeaderboardEntry, error)
	SaveGameRecord(ctx context.Context, record models.GameRecord) error
	// RecentGameRecords returns up to limit rounds, newest first.
	RecentGameRecords(ctx context.Context, limit int) ([]models.GameRecord, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrUnknownDriver  = errors.New("unknown database driver")
)

// Open connects the store selected by cfg.Driver.
func Open(cfg config.DatabaseConfig) (Database, error) {
	var (
		db  Database
		err error
	)
	pg := cfg.Postgres
	switch cfg.Driver {
	case config.DriverGorm:
		db, err = NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	case config.DriverPostgres:
		db, err = NewPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	case config.DriverSQLite:
		db, err = NewSQLite(cfg.SQLite.Path)
	case config.DriverRedis:
		db, err = NewRedis(cfg.Redis.URL, cfg.Redis.PoolSize, cfg.Redis.KeyPrefix)
	case config.DriverMemory:
		db = NewMemory()
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}
	return db, nil
}

// lessEntry applies the ListTopByWins ordering.
func lessEntry(a, b models.LeaderboardEntry) bool {
	if a.Wins != b.Wins {
		return a.Wins > b.Wins
	}
	if a.Losses != b.Losses {
		return a.Losses < b.Losses
	}
	return a.UserID < b.UserID
}
