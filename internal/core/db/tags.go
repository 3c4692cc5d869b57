package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// TagCount is a tag with the number of conversations carrying it
type TagCount struct {
	Tag   string
	Count int
}

func insertTag(tx *sql.Tx, convID, tag string) error {
	_, err := tx.Exec(`
		INSERT INTO conversation_tags (conversation_id, tag) VALUES (?, ?)
		ON CONFLICT(conversation_id, tag) DO NOTHING
	`, convID, tag)
	if err != nil {
		return fmt.Errorf("insert tag %s: %w", tag, err)
	}
	return nil
}

// AddTags appends tags to each of the given conversations, leaving their
// existing tags in place. It returns how many conversations were updated.
func (db *DB) AddTags(ids []string, tags []string) (int, error) {
	var clean []string
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			clean = append(clean, tag)
		}
	}
	if len(ids) == 0 || len(clean) == 0 {
		return 0, nil
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	updated := 0
	for _, id := range ids {
		var exists int
		err := tx.QueryRow(`SELECT COUNT(*) FROM conversations WHERE id = ?`, id).Scan(&exists)
		if err != nil {
			return 0, fmt.Errorf("check conversation %s: %w", id, err)
		}
		if exists == 0 {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		for _, tag := range clean {
			if err := insertTag(tx, id, tag); err != nil {
				return 0, err
			}
		}
		updated++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tags: %w", err)
	}
	return updated, nil
}

// ListTags returns every tag with its conversation count, most used first
func (db *DB) ListTags() ([]TagCount, error) {
	rows, err := db.Query(`
		SELECT tag, COUNT(*) AS n
		FROM conversation_tags
		GROUP BY tag
		ORDER BY n DESC, tag
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var counts []TagCount
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.Tag, &tc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, tc)
	}
	return counts, rows.Err()
}

func (db *DB) conversationTags(id string) ([]string, error) {
	rows, err := db.Query(`SELECT tag FROM conversation_tags WHERE conversation_id = ? ORDER BY tag`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load tags: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tags := []string{}
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// allTags loads tags for every conversation, sorted per conversation
func (db *DB) allTags() (map[string][]string, error) {
	rows, err := db.Query(`SELECT conversation_id, tag FROM conversation_tags ORDER BY conversation_id, tag`)
	if err != nil {
		return nil, fmt.Errorf("failed to load tags: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tags := make(map[string][]string)
	for rows.Next() {
		var id, tag string
		if err := rows.Scan(&id, &tag); err != nil {
			return nil, err
		}
		tags[id] = append(tags[id], tag)
	}
	return tags, rows.Err()
}
