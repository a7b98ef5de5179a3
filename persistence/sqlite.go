package persistence

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLite 嵌入式存储，单机部署默认使用
type SQLite struct {
	sqlStore
}

var sqliteSchema = []string{
	`PRAGMA journal_mode = WAL`,
	`PRAGMA busy_timeout = 5000`,
	`CREATE TABLE IF NOT EXISTS players (
            user_id TEXT PRIMARY KEY,
            display_name TEXT NOT NULL DEFAULT '',
            wins INTEGER NOT NULL DEFAULT 0,
            losses INTEGER NOT NULL DEFAULT 0,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
	`CREATE TABLE IF NOT EXISTS game_records (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            room_id TEXT NOT NULL,
            round INTEGER NOT NULL,
            players TEXT NOT NULL,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
	`CREATE INDEX IF NOT EXISTS idx_players_wins ON players(wins DESC, losses ASC)`,
	`CREATE INDEX IF NOT EXISTS idx_game_records_room_id ON game_records(room_id)`,
}

// NewSQLite opens (or creates) the database at path. ":memory:" gives a
// private in-memory database.
func NewSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite 只允许单写
	db.SetMaxOpenConns(1)

	if err := execAll(db, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init tables: %w", err)
	}

	return &SQLite{sqlStore{db: db, rebind: rebindNone}}, nil
}
