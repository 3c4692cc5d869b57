package search

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/neilberkman/chatarchive/internal/core/db"
	"github.com/neilberkman/chatarchive/pkg/chatexport"
)

// Result represents a single matching message
type Result struct {
	MessageID         int64
	ConversationID    string
	ConversationTitle string
	Source            chatexport.Source
	Role              chatexport.Role
	Snippet           string
	Timestamp         *float64
}

// ConversationMatch groups the matching messages of one conversation
type ConversationMatch struct {
	ConversationID string
	Title          string
	Source         chatexport.Source
	Matches        []Result
}

// Filters narrows a search
type Filters struct {
	Query  string
	Source string
	Tag    string
	Code   bool // use the unstemmed table that preserves identifiers
	Limit  int
}

// Most recent conversations first, then conversational order
const defaultOrderBy = `(CASE WHEN c.created_at < 1e11 THEN c.created_at * 1000 ELSE c.created_at END) DESC, m.sequence ASC`

// Search performs a full-text search using the natural language FTS table
func Search(database *db.DB, query string) ([]Result, error) {
	return search(database, Filters{Query: query})
}

// SearchCode performs a full-text search using the code-optimized FTS table
// This table uses unicode61 tokenizer without stemming to preserve code identifiers
func SearchCode(database *db.DB, query string) ([]Result, error) {
	return search(database, Filters{Query: query, Code: true})
}

// SearchConversations runs a filtered search and groups the hits by
// conversation, keeping the order in which conversations first matched
func SearchConversations(database *db.DB, filters Filters) ([]ConversationMatch, error) {
	results, err := search(database, filters)
	if err != nil {
		return nil, err
	}

	var grouped []ConversationMatch
	index := make(map[string]int)
	for _, r := range results {
		i, ok := index[r.ConversationID]
		if !ok {
			i = len(grouped)
			index[r.ConversationID] = i
			grouped = append(grouped, ConversationMatch{
				ConversationID: r.ConversationID,
				Title:          r.ConversationTitle,
				Source:         r.Source,
			})
		}
		grouped[i].Matches = append(grouped[i].Matches, r)
	}
	return grouped, nil
}

func search(database *db.DB, filters Filters) ([]Result, error) {
	query := strings.TrimSpace(filters.Query)
	if query == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 1000
	}

	ftsTable := "messages_fts"
	if filters.Code {
		ftsTable = "messages_fts_code"
	}

	// FTS5 query syntax chokes on these; fall back to substring matching
	hasSpecialChars := strings.ContainsAny(query, "-_@#$%&.:/")

	var (
		from  string
		match string
		args  []interface{}
	)
	if hasSpecialChars {
		from = `
			SELECT m.id, c.id, c.title, c.source, m.role, m.content, m.timestamp
			FROM messages m
			JOIN conversations c ON c.id = m.conversation_id`
		match = ` WHERE m.content LIKE '%' || ? || '%'`
	} else {
		from = fmt.Sprintf(`
			SELECT m.id, c.id, c.title, c.source, m.role,
			       snippet(%s, -1, '', '', '...', 64), m.timestamp
			FROM %s
			JOIN messages m ON %s.rowid = m.id
			JOIN conversations c ON c.id = m.conversation_id`, ftsTable, ftsTable, ftsTable)
		match = fmt.Sprintf(` WHERE %s MATCH ?`, ftsTable)
	}
	args = append(args, query)

	if filters.Source != "" {
		match += " AND c.source = ? COLLATE NOCASE"
		args = append(args, filters.Source)
	}
	if filters.Tag != "" {
		match += " AND EXISTS (SELECT 1 FROM conversation_tags t WHERE t.conversation_id = c.id AND t.tag = ?)"
		args = append(args, filters.Tag)
	}

	rows, err := database.Query(from+match+" ORDER BY "+defaultOrderBy+" LIMIT ?", append(args, limit)...)
	if err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []Result
	for rows.Next() {
		var (
			r      Result
			source string
			role   string
			ts     sql.NullFloat64
		)
		if err := rows.Scan(&r.MessageID, &r.ConversationID, &r.ConversationTitle, &source, &role, &r.Snippet, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.Source = chatexport.Source(source)
		r.Role = chatexport.Role(role)
		if ts.Valid {
			v := ts.Float64
			r.Timestamp = &v
		}
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}

	return results, nil
}
