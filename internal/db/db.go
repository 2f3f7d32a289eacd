package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps sql.DB for the task backend.
type DB struct {
	*sql.DB
}

// NewDB opens the database at path and runs migrations.
func NewDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := createTables(sqlDB); err != nil {
		return nil, err
	}
	return &DB{sqlDB}, nil
}

func createTables(sqlDB *sql.DB) error {
	queries := []string{
		// Tasks. The reminder engine only reads the columns below; the
		// full schema is owned by the task CRUD surface.
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			user_id TEXT,
			name TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT,
			category TEXT,
			priority TEXT,
			completed BOOLEAN NOT NULL DEFAULT 0,
			is_late BOOLEAN NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)`,

		// Device push tokens, one row per (user, device).
		`CREATE TABLE IF NOT EXISTS device_tokens (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			token TEXT NOT NULL,
			device_id TEXT NOT NULL,
			device_name TEXT,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			last_used DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, device_id)
		)`,

		// User profiles, read-only here for display names.
		`CREATE TABLE IF NOT EXISTS profiles (
			id TEXT PRIMARY KEY,
			display_name TEXT,
			full_name TEXT
		)`,

		// Auth users mirror, fallback source for display names.
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT,
			raw_user_meta_data TEXT
		)`,

		`CREATE INDEX IF NOT EXISTS idx_tasks_due
			ON tasks (completed, created_at, start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_device_tokens_user
			ON device_tokens (user_id, is_active)`,
	}

	for _, q := range queries {
		if _, err := sqlDB.Exec(q); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	return nil
}
