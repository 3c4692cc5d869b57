package search

import (
	"os"
	"strings"
	"testing"

	"github.com/neilberkman/chatarchive/internal/core/db"
	"github.com/neilberkman/chatarchive/pkg/chatexport"
)

func setupTestDB(t *testing.T) *db.DB {
	t.Helper()
	tmpfile, err := os.CreateTemp("", "test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Remove(tmpfile.Name()) })
	_ = tmpfile.Close()

	database, err := db.New(tmpfile.Name())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	conversations := []chatexport.Conversation{
		{
			ID:        "auth",
			Title:     "Building authentication system",
			Source:    chatexport.SourceChatGPT,
			CreatedAt: 1704103200, // 2024-01-01, seconds
			Tags:      []string{"api"},
			Messages: []chatexport.Message{
				{Role: chatexport.RoleUser, Content: "Let's implement user authentication with JWT tokens"},
				{Role: chatexport.RoleAssistant, Content: "I'll help you implement authentication. First, let's create the auth middleware"},
				{Role: chatexport.RoleUser, Content: "Can you write the getUserById function?"},
				{Role: chatexport.RoleAssistant, Content: "Sure, here's the getUserById function implementation"},
			},
		},
		{
			ID:        "db",
			Title:     "Database work",
			Source:    chatexport.SourceClaude,
			CreatedAt: 1717200000000, // 2024-06-01, milliseconds
			Messages: []chatexport.Message{
				{Role: chatexport.RoleUser, Content: "Let's add database migrations for the users table"},
				{Role: chatexport.RoleAssistant, Content: "Run migrate-up after adding the users_view"},
			},
		},
	}
	for i := range conversations {
		if err := database.AppendConversation(&conversations[i]); err != nil {
			t.Fatalf("AppendConversation() error = %v", err)
		}
	}
	return database
}

func TestSearch(t *testing.T) {
	database := setupTestDB(t)

	t.Run("BasicSearch", func(t *testing.T) {
		results, err := Search(database, "authentication")
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}

		if len(results) != 2 {
			t.Errorf("Expected 2 results for 'authentication', got %d", len(results))
		}

		for _, r := range results {
			if r.ConversationID != "auth" {
				t.Errorf("unexpected conversation %s", r.ConversationID)
			}
			if r.ConversationTitle == "" {
				t.Error("ConversationTitle is empty")
			}
			if r.Snippet == "" {
				t.Error("Snippet is empty")
			}
		}
	})

	t.Run("Stemming", func(t *testing.T) {
		results, err := Search(database, "implementing")
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(results) < 2 {
			t.Errorf("Expected stemmed matches for 'implementing', got %d", len(results))
		}
	})

	t.Run("CodeSearch", func(t *testing.T) {
		results, err := SearchCode(database, "getUserById")
		if err != nil {
			t.Fatalf("SearchCode failed: %v", err)
		}
		if len(results) != 2 {
			t.Errorf("Expected 2 results for 'getUserById', got %d", len(results))
		}
	})

	t.Run("SpecialCharacters", func(t *testing.T) {
		results, err := Search(database, "migrate-up")
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(results) != 1 || results[0].ConversationID != "db" {
			t.Errorf("Expected one substring match in db, got %+v", results)
		}
		if !strings.Contains(results[0].Snippet, "migrate-up") {
			t.Errorf("Expected full content for substring matches, got %q", results[0].Snippet)
		}
	})

	t.Run("RecentFirst", func(t *testing.T) {
		results, err := Search(database, "users OR user")
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(results) < 2 {
			t.Fatalf("Expected matches in both conversations, got %d", len(results))
		}
		// db is newer even though its created_at is in a different unit
		if results[0].ConversationID != "db" {
			t.Errorf("Expected newest conversation first, got %s", results[0].ConversationID)
		}
	})

	t.Run("EmptyQuery", func(t *testing.T) {
		if _, err := Search(database, "   "); err == nil {
			t.Error("Expected error for empty query")
		}
	})
}

func TestSearchConversations(t *testing.T) {
	database := setupTestDB(t)

	grouped, err := SearchConversations(database, Filters{Query: "users OR authentication"})
	if err != nil {
		t.Fatalf("SearchConversations failed: %v", err)
	}
	if len(grouped) != 2 {
		t.Fatalf("Expected 2 conversations, got %d", len(grouped))
	}
	if grouped[1].ConversationID != "auth" || len(grouped[1].Matches) < 2 {
		t.Errorf("unexpected grouping: %+v", grouped[1])
	}

	bySource, err := SearchConversations(database, Filters{Query: "users OR authentication", Source: "claude"})
	if err != nil {
		t.Fatal(err)
	}
	if len(bySource) != 1 || bySource[0].ConversationID != "db" {
		t.Errorf("source filter failed: %+v", bySource)
	}

	byTag, err := SearchConversations(database, Filters{Query: "users OR authentication", Tag: "api"})
	if err != nil {
		t.Fatal(err)
	}
	if len(byTag) != 1 || byTag[0].ConversationID != "auth" {
		t.Errorf("tag filter failed: %+v", byTag)
	}
}
