package db

import (
	"database/sql"
	"fmt"
)

// runMigrations applies database migrations for existing databases
func (db *DB) runMigrations() error {
	// Migration 1: conversations.source_id (vendor identifier)
	if err := db.migration001AddSourceID(); err != nil {
		return fmt.Errorf("migration 001: %w", err)
	}

	// Migration 2: import_log duplicate counter
	if err := db.migration002AddDuplicatesSkipped(); err != nil {
		return fmt.Errorf("migration 002: %w", err)
	}

	return nil
}

func (db *DB) hasColumn(table, column string) (bool, error) {
	var count int
	err := db.conn.QueryRow(`
		SELECT COUNT(*) FROM pragma_table_info(?)
		WHERE name = ?
	`, table, column).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (db *DB) hasTable(table string) (bool, error) {
	var name string
	err := db.conn.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name = ?
	`, table).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// migration001AddSourceID adds the vendor identifier column to archives
// created before it existed
func (db *DB) migration001AddSourceID() error {
	exists, err := db.hasTable("conversations")
	if err != nil || !exists {
		return err
	}

	has, err := db.hasColumn("conversations", "source_id")
	if err != nil {
		return err
	}
	if has {
		return nil
	}

	if _, err := db.conn.Exec(`ALTER TABLE conversations ADD COLUMN source_id TEXT`); err != nil {
		return fmt.Errorf("add source_id column: %w", err)
	}
	return nil
}

// migration002AddDuplicatesSkipped adds the duplicate counter to the
// import log and backfills it from the found/imported counts
func (db *DB) migration002AddDuplicatesSkipped() error {
	exists, err := db.hasTable("import_log")
	if err != nil || !exists {
		return err
	}

	has, err := db.hasColumn("import_log", "duplicates_skipped")
	if err != nil {
		return err
	}
	if has {
		return nil
	}

	if _, err := db.conn.Exec(`ALTER TABLE import_log ADD COLUMN duplicates_skipped INTEGER DEFAULT 0`); err != nil {
		return fmt.Errorf("add duplicates_skipped column: %w", err)
	}

	_, err = db.conn.Exec(`
		UPDATE import_log
		SET duplicates_skipped = conversations_found - conversations_imported
		WHERE status = 'success'
	`)
	if err != nil {
		return fmt.Errorf("backfill duplicates_skipped: %w", err)
	}
	return nil
}
