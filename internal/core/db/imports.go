package db

import (
	"database/sql"
	"fmt"
	"time"
)

// Import statuses recorded in the import log
const (
	ImportSuccess = "success"
	ImportPartial = "partial"
	ImportFailed  = "failed"
)

// ImportRecord is one row of the import log
type ImportRecord struct {
	FilePath              string
	FileSize              int64
	Format                string
	ConversationsFound    int
	ConversationsImported int
	DuplicatesSkipped     int
	Status                string
	Error                 string
	ImportedAt            time.Time
}

// RecordImport appends an entry to the import log
func (db *DB) RecordImport(rec ImportRecord) error {
	_, err := db.Exec(`
		INSERT INTO import_log
		(file_path, file_size, format, conversations_found, conversations_imported, duplicates_skipped, status, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.FilePath, rec.FileSize, rec.Format, rec.ConversationsFound, rec.ConversationsImported,
		rec.DuplicatesSkipped, rec.Status, nullString(rec.Error))
	if err != nil {
		return fmt.Errorf("failed to record import: %w", err)
	}
	return nil
}

// ListImports returns the most recent import log entries, newest first
func (db *DB) ListImports(limit int) ([]ImportRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`
		SELECT file_path, COALESCE(file_size, 0), COALESCE(format, ''), conversations_found,
		       conversations_imported, duplicates_skipped, status, error_message, imported_at
		FROM import_log
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list imports: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []ImportRecord
	for rows.Next() {
		var rec ImportRecord
		var errMsg sql.NullString
		err := rows.Scan(&rec.FilePath, &rec.FileSize, &rec.Format, &rec.ConversationsFound,
			&rec.ConversationsImported, &rec.DuplicatesSkipped, &rec.Status, &errMsg, &rec.ImportedAt)
		if err != nil {
			return nil, err
		}
		rec.Error = errMsg.String
		records = append(records, rec)
	}
	return records, rows.Err()
}
