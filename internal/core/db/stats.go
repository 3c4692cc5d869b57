package db

import (
	"database/sql"
	"sort"
	"strings"
	"time"

	"github.com/neilberkman/chatarchive/internal/core/tagging"
	"github.com/neilberkman/chatarchive/pkg/chatexport"
)

const topTagLimit = 15

// Count is a labelled tally in a stats breakdown
type Count struct {
	Key   string
	Count int
}

// Stats represents archive analytics
type Stats struct {
	TotalConversations int
	TotalMessages      int
	TotalWords         int
	AvgMessages        int // per conversation, rounded
	Oldest             time.Time
	Newest             time.Time
	ActivityByMonth    []Count // "YYYY-MM", chronological
	TopTags            []Count // most used first
	Sources            []Count // most used first
	CodeLanguages      []Count // language tags only, most used first
}

// GetStats returns analytics over the whole archive
func (db *DB) GetStats() (*Stats, error) {
	stats := &Stats{}

	err := db.QueryRow("SELECT COUNT(*) FROM conversations").Scan(&stats.TotalConversations)
	if err != nil {
		return nil, err
	}

	err = db.QueryRow("SELECT COUNT(*) FROM messages").Scan(&stats.TotalMessages)
	if err != nil {
		return nil, err
	}

	if stats.TotalConversations == 0 {
		return stats, nil
	}
	stats.AvgMessages = int(float64(stats.TotalMessages)/float64(stats.TotalConversations) + 0.5)

	if stats.TotalWords, err = db.countWords(); err != nil {
		return nil, err
	}

	months := make(map[string]int)
	if err := db.eachCreatedAt(func(t time.Time) {
		months[t.UTC().Format("2006-01")]++
		if stats.Oldest.IsZero() || t.Before(stats.Oldest) {
			stats.Oldest = t
		}
		if t.After(stats.Newest) {
			stats.Newest = t
		}
	}); err != nil {
		return nil, err
	}
	for month, n := range months {
		stats.ActivityByMonth = append(stats.ActivityByMonth, Count{Key: month, Count: n})
	}
	sort.Slice(stats.ActivityByMonth, func(i, j int) bool {
		return stats.ActivityByMonth[i].Key < stats.ActivityByMonth[j].Key
	})

	tags, err := db.ListTags()
	if err != nil {
		return nil, err
	}
	for _, tc := range tags {
		if len(stats.TopTags) < topTagLimit {
			stats.TopTags = append(stats.TopTags, Count{Key: tc.Tag, Count: tc.Count})
		}
		if tagging.IsLanguageTag(tc.Tag) {
			stats.CodeLanguages = append(stats.CodeLanguages, Count{Key: tc.Tag, Count: tc.Count})
		}
	}

	if stats.Sources, err = db.countBy(`
		SELECT source, COUNT(*) AS n FROM conversations
		GROUP BY source ORDER BY n DESC, source
	`); err != nil {
		return nil, err
	}

	return stats, nil
}

func (db *DB) countWords() (int, error) {
	rows, err := db.Query("SELECT content FROM messages")
	if err != nil {
		return 0, err
	}
	defer func() { _ = rows.Close() }()

	total := 0
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return 0, err
		}
		total += len(strings.Fields(content))
	}
	return total, rows.Err()
}

func (db *DB) eachCreatedAt(fn func(time.Time)) error {
	rows, err := db.Query("SELECT created_at FROM conversations")
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var createdAt sql.NullFloat64
		if err := rows.Scan(&createdAt); err != nil {
			return err
		}
		if createdAt.Valid && createdAt.Float64 != 0 {
			fn(chatexport.InstantTime(createdAt.Float64))
		}
	}
	return rows.Err()
}

func (db *DB) countBy(query string) ([]Count, error) {
	rows, err := db.Query(query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var counts []Count
	for rows.Next() {
		var c Count
		if err := rows.Scan(&c.Key, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
