package chatexport

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role identifies the speaker of a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Source identifies where a conversation was imported from
type Source string

const (
	SourceChatGPT  Source = "ChatGPT"
	SourceClaude   Source = "Claude"
	SourceGeneric  Source = "Generic"
	SourceHTML     Source = "HTML"
	SourceMarkdown Source = "Markdown"
	SourceManual   Source = "manual"
)

// DefaultFolderID is the all-chats bucket. Extractors leave FolderID empty and
// the archive files new conversations under its configured default.
const DefaultFolderID = "all"

// Message represents a single conversational turn.
//
// Timestamp is stored in whatever unit the source used (seconds for ChatGPT
// exports, milliseconds for import-time fallbacks). Callers reconcile the
// unit when displaying it.
type Message struct {
	Role      Role     `json:"role"`
	Content   string   `json:"content"`
	Timestamp *float64 `json:"timestamp,omitempty"`
}

// Conversation represents one archived chat
type Conversation struct {
	ID        string    `json:"id"`
	SourceID  string    `json:"sourceId,omitempty"` // Vendor's own identifier, informational
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	Source    Source    `json:"source"`
	CreatedAt float64   `json:"createdAt"`
	Tags      []string  `json:"tags"`
	FolderID  string    `json:"folderId"`
}

// Validate checks if the conversation has required fields
func (c *Conversation) Validate() error {
	if c.ID == "" {
		return errors.New("id is required")
	}
	if c.Title == "" {
		return errors.New("title is required")
	}
	if c.Source == "" {
		return errors.New("source is required")
	}
	for i, m := range c.Messages {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return fmt.Errorf("message %d: invalid role %q", i, m.Role)
		}
	}
	return nil
}

// Text concatenates all message contents with spaces
func (c *Conversation) Text() string {
	parts := make([]string, len(c.Messages))
	for i, m := range c.Messages {
		parts[i] = m.Content
	}
	return strings.Join(parts, " ")
}

// millisecondThreshold separates second-based instants from millisecond-based
// ones; 1e11 seconds is in the year 5138
const millisecondThreshold = 1e11

// InstantTime converts a stored instant to a time.Time, treating values
// below 1e11 as Unix seconds and anything larger as Unix milliseconds.
// Zero yields the zero Time.
func InstantTime(instant float64) time.Time {
	if instant == 0 {
		return time.Time{}
	}
	if instant < millisecondThreshold {
		sec := int64(instant)
		return time.Unix(sec, int64((instant-float64(sec))*1e9))
	}
	return time.UnixMilli(int64(instant))
}

// InstantMillis converts a stored instant to Unix milliseconds
func InstantMillis(instant float64) float64 {
	if instant != 0 && instant < millisecondThreshold {
		return instant * 1000
	}
	return instant
}
