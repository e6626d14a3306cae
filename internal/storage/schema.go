package storage

import (
	"database/sql"
	"fmt"
)

// Schema statements. Sessions are never deleted; ending a session archives
// it with is_active=0 and a set end_time.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		session_id         TEXT PRIMARY KEY,
		teacher_language   TEXT NOT NULL DEFAULT '',
		students_count     INTEGER NOT NULL DEFAULT 0,
		total_translations INTEGER NOT NULL DEFAULT 0,
		average_latency    REAL NOT NULL DEFAULT 0,
		start_time         DATETIME NOT NULL,
		end_time           DATETIME,
		is_active          INTEGER NOT NULL DEFAULT 1,
		quality            TEXT NOT NULL DEFAULT 'unknown',
		quality_reason     TEXT NOT NULL DEFAULT '',
		last_activity_at   DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS transcripts (
		id         TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		language   TEXT NOT NULL DEFAULT '',
		text       TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_active ON sessions(is_active)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_activity ON sessions(last_activity_at)`,
	`CREATE INDEX IF NOT EXISTS idx_transcripts_session ON transcripts(session_id)`,
}

// sqlitePragmas tune the database for many concurrent readers and the
// single writer goroutine.
var sqlitePragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA temp_store = MEMORY",
	"PRAGMA foreign_keys = ON",
	"PRAGMA busy_timeout = 5000",
}

func initSchema(db *sql.DB) error {
	for _, pragma := range sqlitePragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// ValidateSchema verifies the required tables exist, catching a database
// file from an incompatible deployment before serving traffic.
func ValidateSchema(db *sql.DB) error {
	for _, table := range []string{"sessions", "transcripts"} {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err == sql.ErrNoRows {
			return fmt.Errorf("required table %s does not exist", table)
		}
		if err != nil {
			return fmt.Errorf("error checking table %s: %w", table, err)
		}
	}
	return nil
}
