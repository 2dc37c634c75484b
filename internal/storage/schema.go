package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const currentSchemaVersion = 1

func OpenDB(dbPath string) (*sql.DB, error) {
	parentDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(parentDir, 0755); err != nil {
		return nil, fmt.Errorf("creating parent directories: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if err := migrateSchema(db, dbPath); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func migrateSchema(db *sql.DB, dbPath string) error {
	var tableName string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableName)

	var currentVersion int
	if err == sql.ErrNoRows {
		currentVersion = 0
	} else if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	} else {
		err = db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&currentVersion)
		if err == sql.ErrNoRows {
			currentVersion = 0
		} else if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	if currentVersion > currentSchemaVersion {
		return fmt.Errorf(
			"database schema version %d is newer than this mailwatch version supports (max: %d); upgrade mailwatch or delete %s to start fresh",
			currentVersion, currentSchemaVersion, dbPath,
		)
	}

	if currentVersion < currentSchemaVersion {
		if err := applyMigrations(db, currentVersion); err != nil {
			return fmt.Errorf("applying migrations: %w", err)
		}
	}

	return nil
}

func applyMigrations(db *sql.DB, fromVersion int) error {
	if fromVersion == 0 {
		if err := migrateV0ToV1(db); err != nil {
			return fmt.Errorf("migration v0→v1: %w", err)
		}
	}

	return nil
}

func migrateV0ToV1(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	statements := []struct {
		name string
		sql  string
	}{
		{"schema_version table", `
			CREATE TABLE IF NOT EXISTS schema_version (
				version INTEGER NOT NULL
			)`},
		{"schema version row", "INSERT INTO schema_version (version) VALUES (1)"},
		{"send_events table", `
			CREATE TABLE IF NOT EXISTS send_events (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				kind TEXT NOT NULL,
				timestamp TEXT NOT NULL,
				response_ms INTEGER NOT NULL,
				error_code TEXT,
				error_message TEXT
			)`},
		{"epoch_summaries table", `
			CREATE TABLE IF NOT EXISTS epoch_summaries (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				reason TEXT NOT NULL,
				started_at TEXT NOT NULL,
				ended_at TEXT NOT NULL,
				total_sent INTEGER NOT NULL,
				total_failed INTEGER NOT NULL,
				quota_used INTEGER NOT NULL,
				quota_limit INTEGER NOT NULL,
				success_rate REAL NOT NULL,
				avg_response_ms INTEGER NOT NULL,
				errors_by_type TEXT
			)`},
		{"daily_rollups table", `
			CREATE TABLE IF NOT EXISTS daily_rollups (
				date TEXT PRIMARY KEY,
				sent INTEGER NOT NULL,
				failed INTEGER NOT NULL,
				total_response_ms INTEGER NOT NULL
			)`},
		{"alert_history table", `
			CREATE TABLE IF NOT EXISTS alert_history (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				alert_id TEXT,
				rule TEXT NOT NULL,
				severity TEXT NOT NULL,
				code TEXT,
				message TEXT,
				fired_at TEXT NOT NULL
			)`},
		{"idx_send_events_ts", "CREATE INDEX IF NOT EXISTS idx_send_events_ts ON send_events(timestamp)"},
		{"idx_send_events_code", "CREATE INDEX IF NOT EXISTS idx_send_events_code ON send_events(error_code)"},
		{"idx_epoch_ended", "CREATE INDEX IF NOT EXISTS idx_epoch_ended ON epoch_summaries(ended_at)"},
		{"idx_alert_fired", "CREATE INDEX IF NOT EXISTS idx_alert_fired ON alert_history(fired_at)"},
	}

	for _, st := range statements {
		if _, err := tx.Exec(st.sql); err != nil {
			return fmt.Errorf("creating %s: %w", st.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}
