package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS progress (
		user_id    TEXT NOT NULL,
		topic_id   TEXT NOT NULL,
		snapshot   TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, topic_id)
	)`,
	`CREATE TABLE IF NOT EXISTS score_entries (
		id          TEXT PRIMARY KEY,
		user_id     TEXT NOT NULL,
		recorded_at INTEGER NOT NULL,
		score       INTEGER NOT NULL,
		out_of      INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS score_entries_user_time ON score_entries (user_id, recorded_at)`,
	`CREATE TABLE IF NOT EXISTS streaks (
		user_id          TEXT PRIMARY KEY,
		current_streak   INTEGER NOT NULL DEFAULT 0,
		best_streak      INTEGER NOT NULL DEFAULT 0,
		last_success_day INTEGER NULL
	)`,
}

// Open connects to the SQLite file at path, creating its directory and schema.
func Open(ctx context.Context, path string) (*sqlx.DB, error) {
	if strings.TrimSpace(path) == "" {
		path = "data/vocab.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sqlx.ConnectContext(ctx, "sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	// SQLite doesn't support multiple writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, err
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init schema: %w", err)
		}
	}
	return db, nil
}
