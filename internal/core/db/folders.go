package db

import (
	"fmt"

	"github.com/neilberkman/chatarchive/pkg/chatexport"
)

// Folder is a named group of conversations
type Folder struct {
	ID                string
	Name              string
	ConversationCount int
}

// seedFolders creates the all-chats folder and the configured default
func (db *DB) seedFolders() error {
	for _, id := range []string{chatexport.DefaultFolderID, db.defaultFolder} {
		_, err := db.conn.Exec(`
			INSERT INTO folders (id, name) VALUES (?, ?)
			ON CONFLICT(id) DO NOTHING
		`, id, folderName(id))
		if err != nil {
			return fmt.Errorf("failed to seed folder %s: %w", id, err)
		}
	}
	return nil
}

func folderName(id string) string {
	if id == "all" {
		return "All Chats"
	}
	return id
}

// DefaultFolderID returns the folder imported conversations are filed under
func (db *DB) DefaultFolderID() string {
	return db.defaultFolder
}

// ListFolders returns every folder with its conversation count
func (db *DB) ListFolders() ([]Folder, error) {
	rows, err := db.Query(`
		SELECT f.id, f.name, COUNT(c.id)
		FROM folders f
		LEFT JOIN conversations c ON c.folder_id = f.id
		GROUP BY f.id, f.name
		ORDER BY f.created_at, f.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var folders []Folder
	for rows.Next() {
		var f Folder
		if err := rows.Scan(&f.ID, &f.Name, &f.ConversationCount); err != nil {
			return nil, err
		}
		folders = append(folders, f)
	}
	return folders, rows.Err()
}
