package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/neilberkman/chatarchive/internal/core/db"
	"github.com/neilberkman/chatarchive/internal/core/importer"
	"github.com/neilberkman/chatarchive/internal/core/search"
	"github.com/neilberkman/chatarchive/pkg/chatexport"
)

// ImportFileArgs defines arguments for the import_file tool
type ImportFileArgs struct {
	Path     string `json:"path,omitempty"`
	Content  string `json:"content,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// SearchConversationsArgs defines arguments for the search_conversations tool
type SearchConversationsArgs struct {
	Query  string `json:"query"`
	Limit  int    `json:"limit,omitempty"`
	Source string `json:"source,omitempty"`
	Tag    string `json:"tag,omitempty"`
	Code   bool   `json:"code,omitempty"`
}

// ListConversationsArgs defines arguments for the list_conversations tool
type ListConversationsArgs struct {
	Limit  int    `json:"limit,omitempty"`
	Source string `json:"source,omitempty"`
	Tag    string `json:"tag,omitempty"`
}

// GetConversationArgs defines arguments for the get_conversation tool
type GetConversationArgs struct {
	ID          string `json:"id"`
	SearchQuery string `json:"search_query,omitempty"`
}

// ImportOutcome reports one import_file call
type ImportOutcome struct {
	Format     string              `json:"format"`
	Found      int                 `json:"found"`
	Imported   []ConversationEntry `json:"imported"`
	Duplicates int                 `json:"duplicates"`
}

// ConversationMatch represents a conversation search result
type ConversationMatch struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Source     string         `json:"source"`
	MatchCount int            `json:"match_count"`
	Matches    []MatchSnippet `json:"matches"`
}

// MatchSnippet represents a message match within a conversation
type MatchSnippet struct {
	Role    string `json:"role"`
	Snippet string `json:"snippet"`
}

// ConversationEntry represents a conversation in the list view
type ConversationEntry struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Source       string   `json:"source"`
	CreatedAt    string   `json:"created_at,omitempty"`
	MessageCount int      `json:"message_count"`
	Tags         []string `json:"tags,omitempty"`
}

// ConversationDetail is a full conversation, or only its matching messages
// when a search query is given
type ConversationDetail struct {
	ConversationEntry
	Messages []chatexport.Message `json:"messages"`
}

const timeLayout = "2006-01-02 15:04:05"

// NewServer registers the archive tools on a new MCP server
func NewServer(database *db.DB, imp *importer.Importer) *server.MCPServer {
	s := server.NewMCPServer(
		"chatarchive",
		"1.0.0",
	)

	importTool := mcp.NewTool("import_file",
		mcp.WithDescription("Import a chat export (ChatGPT or Claude JSON, saved HTML page, Markdown transcript) into the archive. Pass either a file path or the raw content with a filename. Conversations already archived are skipped."),
		mcp.WithString("path",
			mcp.Description("Path of the export file to import")),
		mcp.WithString("content",
			mcp.Description("Raw file content, used when path is not given")),
		mcp.WithString("filename",
			mcp.Description("File name for raw content; its extension selects the format")),
	)
	s.AddTool(importTool, makeImportFileHandler(imp))

	searchTool := mcp.NewTool("search_conversations",
		mcp.WithDescription("Full-text search across all archived messages, grouped by conversation"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search term to match against message content")),
		mcp.WithNumber("limit",
			mcp.Description("Max number of conversations to return (default: 10)")),
		mcp.WithString("source",
			mcp.Description("Filter by source: ChatGPT, Claude, Generic, HTML, Markdown")),
		mcp.WithString("tag",
			mcp.Description("Filter by tag")),
		mcp.WithBoolean("code",
			mcp.Description("Search the unstemmed code index, for identifiers")),
	)
	s.AddTool(searchTool, makeSearchConversationsHandler(database))

	listTool := mcp.NewTool("list_conversations",
		mcp.WithDescription("List archived conversations, newest first"),
		mcp.WithNumber("limit",
			mcp.Description("Max conversations to return (default: 20)")),
		mcp.WithString("source",
			mcp.Description("Filter by source")),
		mcp.WithString("tag",
			mcp.Description("Filter by tag")),
	)
	s.AddTool(listTool, makeListConversationsHandler(database))

	getTool := mcp.NewTool("get_conversation",
		mcp.WithDescription("Retrieve an archived conversation with its messages"),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Conversation ID or unique prefix")),
		mcp.WithString("search_query",
			mcp.Description("Only return messages containing this text")),
	)
	s.AddTool(getTool, makeGetConversationHandler(database))

	return s
}

// StartServer serves the archive tools over stdio until the client disconnects
func StartServer(database *db.DB, imp *importer.Importer) error {
	return server.ServeStdio(NewServer(database, imp))
}

type toolHandler = func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

func decodeArgs(request mcp.CallToolRequest, v interface{}) error {
	argsBytes, err := json.Marshal(request.Params.Arguments)
	if err != nil {
		return err
	}
	return json.Unmarshal(argsBytes, v)
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	resultJSON, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(resultJSON)), nil
}

func entry(id, title string, source chatexport.Source, createdAt float64, messages int, tags []string) ConversationEntry {
	e := ConversationEntry{
		ID:           id,
		Title:        title,
		Source:       string(source),
		MessageCount: messages,
		Tags:         tags,
	}
	if t := chatexport.InstantTime(createdAt); !t.IsZero() {
		e.CreatedAt = t.UTC().Format(timeLayout)
	}
	return e
}

func makeImportFileHandler(imp *importer.Importer) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args ImportFileArgs
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		var fr importer.FileResult
		switch {
		case args.Path != "":
			fr = imp.ImportFile(ctx, args.Path)
		case args.Content != "":
			name := args.Filename
			if name == "" {
				name = "upload"
			}
			fr = imp.ImportContent(ctx, []byte(args.Content), name)
		default:
			return mcp.NewToolResultError("either path or content is required"), nil
		}

		if fr.Err != nil && len(fr.Imported) == 0 {
			return mcp.NewToolResultError(fmt.Sprintf("import failed: %v", fr.Err)), nil
		}

		outcome := ImportOutcome{
			Format:     string(fr.Format),
			Found:      fr.Found,
			Imported:   []ConversationEntry{},
			Duplicates: fr.Duplicates,
		}
		for _, c := range fr.Imported {
			outcome.Imported = append(outcome.Imported, entry(c.ID, c.Title, c.Source, c.CreatedAt, len(c.Messages), c.Tags))
		}
		return jsonResult(outcome)
	}
}

func makeSearchConversationsHandler(database *db.DB) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args SearchConversationsArgs
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		if strings.TrimSpace(args.Query) == "" {
			return mcp.NewToolResultError("query is required"), nil
		}

		limit := args.Limit
		if limit == 0 {
			limit = 10
		}

		matches, err := search.SearchConversations(database, search.Filters{
			Query:  args.Query,
			Source: args.Source,
			Tag:    args.Tag,
			Code:   args.Code,
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}

		results := []ConversationMatch{}
		for _, m := range matches {
			result := ConversationMatch{
				ID:         m.ConversationID,
				Title:      m.Title,
				Source:     string(m.Source),
				MatchCount: len(m.Matches),
				Matches:    []MatchSnippet{},
			}
			// Limit to 3 snippets per conversation
			for i, hit := range m.Matches {
				if i >= 3 {
					break
				}
				result.Matches = append(result.Matches, MatchSnippet{Role: string(hit.Role), Snippet: hit.Snippet})
			}
			results = append(results, result)
			if len(results) >= limit {
				break
			}
		}

		return jsonResult(map[string]interface{}{
			"conversations": results,
		})
	}
}

func makeListConversationsHandler(database *db.DB) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args ListConversationsArgs
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		limit := args.Limit
		if limit == 0 {
			limit = 20
		}

		summaries, err := database.ListSummaries(db.ListFilter{
			Source: args.Source,
			Tag:    args.Tag,
			Limit:  limit,
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
		}

		conversations := []ConversationEntry{}
		for _, s := range summaries {
			conversations = append(conversations, entry(s.ID, s.Title, s.Source, s.CreatedAt, s.MessageCount, s.Tags))
		}
		return jsonResult(map[string]interface{}{
			"conversations": conversations,
		})
	}
}

func makeGetConversationHandler(database *db.DB) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args GetConversationArgs
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		id, err := database.ResolveID(args.ID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		conv, err := database.GetConversation(id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("conversation not found: %v", err)), nil
		}

		detail := ConversationDetail{
			ConversationEntry: entry(conv.ID, conv.Title, conv.Source, conv.CreatedAt, len(conv.Messages), conv.Tags),
			Messages:          conv.Messages,
		}

		if args.SearchQuery != "" {
			detail.Messages = []chatexport.Message{}
			queryLower := strings.ToLower(args.SearchQuery)
			for _, msg := range conv.Messages {
				if strings.Contains(strings.ToLower(msg.Content), queryLower) {
					detail.Messages = append(detail.Messages, msg)
				}
			}
		}

		return jsonResult(detail)
	}
}
