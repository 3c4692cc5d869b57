package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/neilberkman/chatarchive/internal/core/search"
)

var (
	searchLimit  int
	searchSource string
	searchTag    string
	searchCode   bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search archived conversations using full-text search",
	Long: `Search through every archived message.

Uses FTS5 full-text search with porter stemming for natural language.
--code searches an unstemmed index that keeps identifiers intact. Queries
containing punctuation such as "-", "_" or "." fall back to substring
matching. Results are grouped by conversation.

Examples:
  chatarchive search "authentication middleware"
  chatarchive search --code useEffect
  chatarchive search "ENA-7030" --limit 10`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "Maximum number of conversations to show")
	searchCmd.Flags().StringVar(&searchSource, "source", "", "Filter by source")
	searchCmd.Flags().StringVar(&searchTag, "tag", "", "Filter by tag")
	searchCmd.Flags().BoolVar(&searchCode, "code", false, "Search the code index (no stemming)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	database, err := openArchive()
	if err != nil {
		return err
	}
	defer func() {
		_ = database.Close()
	}()

	results, err := search.SearchConversations(database, search.Filters{
		Query:  query,
		Source: searchSource,
		Tag:    searchTag,
		Code:   searchCode,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(results) == 0 {
		fmt.Printf("No results found for: %s\n", query)
		return nil
	}

	totalMatches := 0
	for _, c := range results {
		totalMatches += len(c.Matches)
	}
	fmt.Printf("Found %d conversation(s) with %d match(es) for: %s\n\n", len(results), totalMatches, query)

	for i, conv := range results {
		if i >= searchLimit {
			fmt.Printf("... and %d more conversations (use --limit to see more)\n", len(results)-searchLimit)
			break
		}

		fmt.Println(titleStyle.Render(fmt.Sprintf("%s  %s", shortID(conv.ConversationID), conv.Title)))
		fmt.Println(metaStyle.Render(fmt.Sprintf("%s | %d match(es)", conv.Source, len(conv.Matches))))

		// Show up to 3 matches per conversation
		for j, match := range conv.Matches {
			if j >= 3 {
				fmt.Printf("  ... %d more\n", len(conv.Matches)-3)
				break
			}
			fmt.Printf("  [%s] %s\n", match.Role, truncateMessage(match.Snippet, 200))
		}
		fmt.Println()
	}

	return nil
}

// truncateMessage flattens a snippet to one line and shortens it at a word break
func truncateMessage(msg string, maxLen int) string {
	msg = strings.Join(strings.Fields(msg), " ")
	if len(msg) <= maxLen {
		return msg
	}

	truncated := msg[:maxLen]
	lastSpace := strings.LastIndex(truncated, " ")
	if lastSpace > maxLen-50 {
		truncated = truncated[:lastSpace]
	}
	return truncated + "..."
}
