package db

import (
	"database/sql"
	"fmt"
)

const schemaVersion = 1

// RunMigrations creates the schema on a new database and checks the
// version of an existing one
func RunMigrations(db *DB) error {
	var tableExists bool
	err := db.QueryRow(`
		SELECT COUNT(*) > 0
		FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("failed to check schema_version table: %w", err)
	}

	if !tableExists {
		if err := initializeSchema(db); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
		return nil
	}

	var currentVersion int
	err = db.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	if currentVersion != schemaVersion {
		return fmt.Errorf("unsupported schema version: %d", currentVersion)
	}

	return nil
}

func initializeSchema(db *DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{schemaVersionTable, auditLogsTable, auditLogsIndexes} {
		if err := execSQL(tx, stmt); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, schemaVersion); err != nil {
		return err
	}

	return tx.Commit()
}

func execSQL(tx *sql.Tx, query string) error {
	_, err := tx.Exec(query)
	return err
}

const (
	schemaVersionTable = `
CREATE TABLE schema_version (
    version    INTEGER NOT NULL,
    applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

	auditLogsTable = `
CREATE TABLE audit_logs (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp     DATETIME NOT NULL,
    action        TEXT NOT NULL,
    module_id     TEXT,
    generation_id TEXT,
    alias         TEXT,
    request_id    TEXT,
    user_agent    TEXT,
    pid           TEXT,
    status_code   INTEGER NOT NULL,
    success       INTEGER NOT NULL,
    error_msg     TEXT,
    details       TEXT
)`

	auditLogsIndexes = `
CREATE INDEX idx_audit_timestamp ON audit_logs(timestamp);
CREATE INDEX idx_audit_action ON audit_logs(action);
CREATE INDEX idx_audit_module_id ON audit_logs(module_id);
CREATE INDEX idx_audit_success ON audit_logs(success)`
)
