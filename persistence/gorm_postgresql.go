// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/wfunc/rpsarena/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,   // 慢SQL阈值
			LogLevel:      logger.Silent, // 日志级别
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return NewGormStore(db)
}

// NewGormStore wraps an already opened gorm handle and migrates the schema.
func NewGormStore(db *gorm.DB) (*GormPostgreSQL, error) {
	if err := db.AutoMigrate(&models.GormPlayer{}, &models.GormGameRecord{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormPostgreSQL{db: db}, nil
}

// ensurePlayer 不存在则插入空战绩
func ensurePlayer(tx *gorm.DB, userID string) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&models.GormPlayer{UserID: userID}).Error
}

// RegisterPlayer 更新玩家昵称
func (p *GormPostgreSQL) RegisterPlayer(ctx context.Context, userID, displayName string) error {
	player := models.GormPlayer{UserID: userID, DisplayName: displayName}
	return p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "updated_at"}),
	}).Create(&player).Error
}

func (p *GormPostgreSQL) increment(ctx context.Context, userID, column string) error {
	return p.Transaction(ctx, func(tx *gorm.DB) error {
		if err := ensurePlayer(tx, userID); err != nil {
			return err
		}
		return tx.Model(&models.GormPlayer{}).
			Where("user_id = ?", userID).
			Update(column, gorm.Expr(column+" + ?", 1)).Error
	})
}

// IncrementWins 胜场+1
func (p *GormPostgreSQL) IncrementWins(ctx context.Context, userID string) error {
	return p.increment(ctx, userID, "wins")
}

// IncrementLosses 负场+1
func (p *GormPostgreSQL) IncrementLosses(ctx context.Context, userID string) error {
	return p.increment(ctx, userID, "losses")
}

// ListTopByWins 排行榜
func (p *GormPostgreSQL) ListTopByWins(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		return []models.LeaderboardEntry{}, nil
	}
	var players []models.GormPlayer
	err := p.db.WithContext(ctx).
		Order("wins DESC").Order("losses ASC").Order("user_id ASC").
		Limit(limit).
		Find(&players).Error
	if err != nil {
		return nil, err
	}

	entries := make([]models.LeaderboardEntry, 0, len(players))
	for _, player := range players {
		entries = append(entries, player.Entry())
	}
	return entries, nil
}

// GetPlayer 查询单个玩家战绩
func (p *GormPostgreSQL) GetPlayer(ctx context.Context, userID string) (models.LeaderboardEntry, error) {
	var player models.GormPlayer
	if err := p.db.WithContext(ctx).Where("user_id = ?", userID).First(&player).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.LeaderboardEntry{}, ErrRecordNotFound
		}
		return models.LeaderboardEntry{}, err
	}
	return player.Entry(), nil
}

// SaveGameRecord 保存游戏记录
func (p *GormPostgreSQL) SaveGameRecord(ctx context.Context, record models.GameRecord) error {
	players, err := json.Marshal(record.Players)
	if err != nil {
		return err
	}

	row := models.GormGameRecord{
		RoomID:  record.RoomID,
		Round:   record.Round,
		Players: players,
	}
	if !record.CreatedAt.IsZero() {
		row.CreatedAt = record.CreatedAt
	}
	return p.db.WithContext(ctx).Create(&row).Error
}

// RecentGameRecords 最近的对局，新的在前
func (p *GormPostgreSQL) RecentGameRecords(ctx context.Context, limit int) ([]models.GameRecord, error) {
	if limit <= 0 {
		return []models.GameRecord{}, nil
	}
	var rows []models.GormGameRecord
	err := p.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, err
	}

	records := make([]models.GameRecord, 0, len(rows))
	for _, row := range rows {
		rec := models.GameRecord{RoomID: row.RoomID, Round: row.Round, CreatedAt: row.CreatedAt}
		if err := json.Unmarshal(row.Players, &rec.Players); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Transaction 事务支持
func (p *GormPostgreSQL) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return p.db.WithContext(ctx).Transaction(fn)
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
