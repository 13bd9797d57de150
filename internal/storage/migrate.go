package storage

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is the latest schema version supported by the migrator.
const SchemaVersion = 1

// Migrate ensures the SQLite schema exists and is upgraded to SchemaVersion.
func Migrate(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("migrate: db is nil")
	}

	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY);`)
	if err != nil {
		return fmt.Errorf("migrate: create schema_migrations: %w", err)
	}

	var current int
	err = db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations;`).Scan(&current)
	if err != nil {
		return fmt.Errorf("migrate: read current version: %w", err)
	}

	if current >= SchemaVersion {
		return nil
	}

	// transaction groups schema changes so the migration is applied atomically.
	transaction, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migrate: begin transaction: %w", err)
	}
	defer func() {
		_ = transaction.Rollback()
	}()

	steps := []struct {
		name string
		ddl  string
	}{
		{"create sessions table", `
			CREATE TABLE IF NOT EXISTS sessions (
				id TEXT PRIMARY KEY,
				start_time TEXT NOT NULL,
				end_time TEXT NULL,
				move_count INTEGER NOT NULL DEFAULT 0,
				won INTEGER NOT NULL DEFAULT 0,
				status TEXT NOT NULL,
				duration_seconds REAL NULL,
				final_state TEXT NULL
			);`},
		{"create moves table", `
			CREATE TABLE IF NOT EXISTS moves (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id TEXT NOT NULL,
				seq INTEGER NOT NULL,
				op TEXT NOT NULL,
				kind TEXT NULL,
				at TEXT NOT NULL,
				state TEXT NOT NULL,
				move_count INTEGER NOT NULL,
				mistakes TEXT NOT NULL DEFAULT '[]',
				UNIQUE(session_id, seq),
				FOREIGN KEY(session_id) REFERENCES sessions(id)
			);`},
		{"create app_state table", `
			CREATE TABLE IF NOT EXISTS app_state (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL,
				updated_at TEXT NOT NULL
			);`},
		{"create idx_sessions_status_won", `CREATE INDEX IF NOT EXISTS idx_sessions_status_won ON sessions(status, won, move_count);`},
		{"create idx_sessions_start_time", `CREATE INDEX IF NOT EXISTS idx_sessions_start_time ON sessions(start_time);`},
		{"create idx_moves_session_seq", `CREATE INDEX IF NOT EXISTS idx_moves_session_seq ON moves(session_id, seq);`},
	}
	for _, step := range steps {
		if _, err := transaction.Exec(step.ddl); err != nil {
			return fmt.Errorf("migrate: %s: %w", step.name, err)
		}
	}

	_, err = transaction.Exec(`INSERT INTO schema_migrations(version) VALUES (?);`, SchemaVersion)
	if err != nil {
		return fmt.Errorf("migrate: record schema version: %w", err)
	}

	err = transaction.Commit()
	if err != nil {
		return fmt.Errorf("migrate: commit transaction: %w", err)
	}

	return nil
}
