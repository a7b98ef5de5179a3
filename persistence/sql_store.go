package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/wfunc/rpsarena/models"
)

const queryTimeout = 5 * time.Second

// sqlStore holds the queries shared by the lib/pq and sqlite stores. Queries
// are written with '?' placeholders and rebound per driver.
type sqlStore struct {
	db     *sql.DB
	rebind func(string) string
}

const (
	registerPlayerSQL = `
        INSERT INTO players (user_id, display_name) VALUES (?, ?)
        ON CONFLICT (user_id)
        DO UPDATE SET display_name = excluded.display_name, updated_at = CURRENT_TIMESTAMP`
	incrementWinsSQL = `
        INSERT INTO players (user_id, wins) VALUES (?, 1)
        ON CONFLICT (user_id)
        DO UPDATE SET wins = players.wins + 1, updated_at = CURRENT_TIMESTAMP`
	incrementLossesSQL = `
        INSERT INTO players (user_id, losses) VALUES (?, 1)
        ON CONFLICT (user_id)
        DO UPDATE SET losses = players.losses + 1, updated_at = CURRENT_TIMESTAMP`
	listTopSQL = `
        SELECT user_id, display_name, wins, losses FROM players
        ORDER BY wins DESC, losses ASC, user_id ASC
        LIMIT ?`
	getPlayerSQL = `
        SELECT user_id, display_name, wins, losses FROM players WHERE user_id = ?`
	saveGameRecordSQL = `
        INSERT INTO game_records (room_id, round, players, created_at) VALUES (?, ?, ?, ?)`
	recentGameRecordsSQL = `
        SELECT room_id, round, players, created_at FROM game_records
        ORDER BY id DESC
        LIMIT ?`
)

// timeLayouts covers what sqlite hands back for DATETIME columns.
var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// scanTime converts a scanned created_at value; lib/pq yields time.Time,
// sqlite may yield text.
func scanTime(v any) time.Time {
	var text string
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		text = t
	case []byte:
		text = string(t)
	default:
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, text); err == nil {
			return ts
		}
	}
	return time.Time{}
}

// rebindDollar turns '?' placeholders into $1, $2, ... for PostgreSQL.
func rebindDollar(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func rebindNone(query string) string { return query }

func execAll(db *sql.DB, statements []string) error {
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqlStore) exec(ctx context.Context, query string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	_, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	return err
}

// RegisterPlayer 插入或更新玩家昵称
func (s *sqlStore) RegisterPlayer(ctx context.Context, userID, displayName string) error {
	return s.exec(ctx, registerPlayerSQL, userID, displayName)
}

// IncrementWins 胜场+1
func (s *sqlStore) IncrementWins(ctx context.Context, userID string) error {
	return s.exec(ctx, incrementWinsSQL, userID)
}

// IncrementLosses 负场+1
func (s *sqlStore) IncrementLosses(ctx context.Context, userID string) error {
	return s.exec(ctx, incrementLossesSQL, userID)
}

// ListTopByWins 排行榜
func (s *sqlStore) ListTopByWins(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		return []models.LeaderboardEntry{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, s.rebind(listTopSQL), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]models.LeaderboardEntry, 0, limit)
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.DisplayName, &e.Wins, &e.Losses); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetPlayer 查询单个玩家
func (s *sqlStore) GetPlayer(ctx context.Context, userID string) (models.LeaderboardEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var e models.LeaderboardEntry
	err := s.db.QueryRowContext(ctx, s.rebind(getPlayerSQL), userID).
		Scan(&e.UserID, &e.DisplayName, &e.Wins, &e.Losses)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.LeaderboardEntry{}, ErrRecordNotFound
		}
		return models.LeaderboardEntry{}, err
	}
	return e, nil
}

// SaveGameRecord 保存游戏记录
func (s *sqlStore) SaveGameRecord(ctx context.Context, record models.GameRecord) error {
	players, err := json.Marshal(record.Players)
	if err != nil {
		return err
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return s.exec(ctx, saveGameRecordSQL, record.RoomID, record.Round, string(players), createdAt.UTC())
}

// RecentGameRecords 最近的对局，新的在前
func (s *sqlStore) RecentGameRecords(ctx context.Context, limit int) ([]models.GameRecord, error) {
	if limit <= 0 {
		return []models.GameRecord{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, s.rebind(recentGameRecordsSQL), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]models.GameRecord, 0, limit)
	for rows.Next() {
		var (
			rec       models.GameRecord
			players   []byte
			createdAt any
		)
		if err := rows.Scan(&rec.RoomID, &rec.Round, &players, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(players, &rec.Players); err != nil {
			return nil, err
		}
		rec.CreatedAt = scanTime(createdAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close 关闭数据库连接
func (s *sqlStore) Close() error {
	return s.db.Close()
}
