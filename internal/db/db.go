package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Ojasdixit/boltdiy/internal/config"
	_ "modernc.org/sqlite"
)

// FileName is the database file created inside the base directory.
const FileName = "boltdiy.db"

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// Init initializes the SQLite database at baseDir/boltdiy.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.boltdiy.
func Init(baseDir string) (*sql.DB, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	// best-effort, may not work on all platforms
	_ = os.Chmod(baseDir, 0700)

	// Pragmas in the DSN apply to every pooled connection
	dbPath := filepath.Join(baseDir, FileName)
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: code states, sessions, sandboxes
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS user_code_states (
		  id            TEXT PRIMARY KEY,
		  user_id       TEXT NOT NULL,
		  file_path     TEXT NOT NULL,
		  code_content  TEXT NOT NULL,
		  language      TEXT NOT NULL,
		  last_modified INTEGER NOT NULL,
		  created_at    INTEGER NOT NULL,
		  updated_at    INTEGER NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_code_states_user_path
		ON user_code_states(user_id, file_path);

		CREATE INDEX IF NOT EXISTS idx_code_states_user_modified
		ON user_code_states(user_id, last_modified DESC);

		CREATE TABLE IF NOT EXISTS user_sessions (
		  id           TEXT PRIMARY KEY,
		  user_id      TEXT NOT NULL,
		  session_name TEXT NOT NULL,
		  created_at   INTEGER NOT NULL,
		  updated_at   INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_user_created
		ON user_sessions(user_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS sandboxes (
		  id          TEXT PRIMARY KEY,
		  user_id     TEXT NOT NULL,
		  sandbox_url TEXT NOT NULL,
		  status      TEXT NOT NULL DEFAULT 'active'
		              CHECK (status IN ('active', 'inactive', 'expired')),
		  created_at  INTEGER NOT NULL,
		  expires_at  INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_sandboxes_user_created
		ON sandboxes(user_id, created_at DESC);

		CREATE INDEX IF NOT EXISTS idx_sandboxes_expires
		ON sandboxes(expires_at)
		WHERE status != 'expired';
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
