package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/neilberkman/chatarchive/pkg/chatexport"
)

// ErrNotFound is returned when a conversation ID is not in the archive
var ErrNotFound = errors.New("conversation not found")

// AppendConversation stores a conversation with its messages and tags.
// Conversations without a folder are filed under the default folder.
func (db *DB) AppendConversation(conv *chatexport.Conversation) error {
	if err := conv.Validate(); err != nil {
		return fmt.Errorf("invalid conversation: %w", err)
	}

	folderID := conv.FolderID
	if folderID == "" {
		folderID = db.defaultFolder
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO conversations (id, source_id, title, source, created_at, folder_id, message_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, conv.ID, nullString(conv.SourceID), conv.Title, string(conv.Source), conv.CreatedAt, folderID, len(conv.Messages))
	if err != nil {
		return fmt.Errorf("insert conversation %s: %w", conv.ID, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO messages (conversation_id, sequence, role, content, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare message insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, m := range conv.Messages {
		if _, err := stmt.Exec(conv.ID, i, string(m.Role), m.Content, nullFloat(m.Timestamp)); err != nil {
			return fmt.Errorf("insert message %d: %w", i, err)
		}
	}

	for _, tag := range conv.Tags {
		if err := insertTag(tx, conv.ID, tag); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit conversation %s: %w", conv.ID, err)
	}
	conv.FolderID = folderID
	return nil
}

// ListConversations returns a snapshot of the whole archive, messages and
// tags included, in import order
func (db *DB) ListConversations() ([]chatexport.Conversation, error) {
	rows, err := db.Query(`
		SELECT id, COALESCE(source_id, ''), title, source, created_at, folder_id
		FROM conversations
		ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	var conversations []chatexport.Conversation
	index := make(map[string]int)
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		index[conv.ID] = len(conversations)
		conversations = append(conversations, *conv)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = db.eachMessage(`
		SELECT conversation_id, role, content, timestamp
		FROM messages
		ORDER BY conversation_id, sequence
	`, nil, func(convID string, m chatexport.Message) {
		if i, ok := index[convID]; ok {
			conversations[i].Messages = append(conversations[i].Messages, m)
		}
	})
	if err != nil {
		return nil, err
	}

	tags, err := db.allTags()
	if err != nil {
		return nil, err
	}
	for i := range conversations {
		if t, ok := tags[conversations[i].ID]; ok {
			conversations[i].Tags = t
		}
	}

	return conversations, nil
}

// GetConversation returns one conversation with its messages and tags
func (db *DB) GetConversation(id string) (*chatexport.Conversation, error) {
	row := db.QueryRow(`
		SELECT id, COALESCE(source_id, ''), title, source, created_at, folder_id
		FROM conversations
		WHERE id = ?
	`, id)
	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	err = db.eachMessage(`
		SELECT conversation_id, role, content, timestamp
		FROM messages
		WHERE conversation_id = ?
		ORDER BY sequence
	`, []interface{}{id}, func(_ string, m chatexport.Message) {
		conv.Messages = append(conv.Messages, m)
	})
	if err != nil {
		return nil, err
	}

	if conv.Tags, err = db.conversationTags(id); err != nil {
		return nil, err
	}
	return conv, nil
}

// ResolveID expands a unique ID prefix to a full conversation ID
func (db *DB) ResolveID(prefix string) (string, error) {
	rows, err := db.Query(`SELECT id FROM conversations WHERE id LIKE ? ESCAPE '\' LIMIT 2`, escapeLike(prefix)+"%")
	if err != nil {
		return "", fmt.Errorf("failed to resolve id: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrNotFound, prefix)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("ambiguous id prefix %q", prefix)
	}
}

// ConversationSummary is a conversation listing entry without messages
type ConversationSummary struct {
	ID           string
	Title        string
	Source       chatexport.Source
	CreatedAt    float64
	FolderID     string
	MessageCount int
	Tags         []string
	ImportedAt   time.Time
}

// ListFilter narrows ListSummaries. Zero values match everything.
type ListFilter struct {
	Source   string
	Tag      string
	FolderID string
	Since    time.Time
	Limit    int
}

// ListSummaries returns conversations newest first, optionally filtered
func (db *DB) ListSummaries(f ListFilter) ([]ConversationSummary, error) {
	query := `
		SELECT c.id, c.title, c.source, c.created_at, c.folder_id, c.message_count, c.imported_at
		FROM conversations c
		WHERE 1=1`
	var args []interface{}

	if f.Source != "" {
		query += " AND c.source = ? COLLATE NOCASE"
		args = append(args, f.Source)
	}
	if f.FolderID != "" {
		query += " AND c.folder_id = ?"
		args = append(args, f.FolderID)
	}
	if f.Tag != "" {
		query += " AND EXISTS (SELECT 1 FROM conversation_tags t WHERE t.conversation_id = c.id AND t.tag = ?)"
		args = append(args, f.Tag)
	}
	if !f.Since.IsZero() {
		// created_at holds seconds or milliseconds depending on the source
		query += " AND (CASE WHEN c.created_at < 1e11 THEN c.created_at * 1000 ELSE c.created_at END) >= ?"
		args = append(args, float64(f.Since.UnixMilli()))
	}

	query += " ORDER BY (CASE WHEN c.created_at < 1e11 THEN c.created_at * 1000 ELSE c.created_at END) DESC"

	limit := f.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	var summaries []ConversationSummary
	for rows.Next() {
		var s ConversationSummary
		var source string
		if err := rows.Scan(&s.ID, &s.Title, &source, &s.CreatedAt, &s.FolderID, &s.MessageCount, &s.ImportedAt); err != nil {
			_ = rows.Close()
			return nil, err
		}
		s.Source = chatexport.Source(source)
		summaries = append(summaries, s)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tags, err := db.allTags()
	if err != nil {
		return nil, err
	}
	for i := range summaries {
		summaries[i].Tags = tags[summaries[i].ID]
	}
	return summaries, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanConversation(row scanner) (*chatexport.Conversation, error) {
	var conv chatexport.Conversation
	var source string
	if err := row.Scan(&conv.ID, &conv.SourceID, &conv.Title, &source, &conv.CreatedAt, &conv.FolderID); err != nil {
		return nil, err
	}
	conv.Source = chatexport.Source(source)
	conv.Messages = []chatexport.Message{}
	conv.Tags = []string{}
	return &conv, nil
}

func (db *DB) eachMessage(query string, args []interface{}, fn func(convID string, m chatexport.Message)) error {
	rows, err := db.Query(query, args...)
	if err != nil {
		return fmt.Errorf("failed to load messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			convID string
			role   string
			m      chatexport.Message
			ts     sql.NullFloat64
		)
		if err := rows.Scan(&convID, &role, &m.Content, &ts); err != nil {
			return err
		}
		m.Role = chatexport.Role(role)
		if ts.Valid {
			v := ts.Float64
			m.Timestamp = &v
		}
		fn(convID, m)
	}
	return rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
