package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/neilberkman/chatarchive/internal/core/db"
	"github.com/neilberkman/chatarchive/pkg/chatexport"
)

var (
	listLimit  int
	listSource string
	listTag    string
	listFolder string
	listSince  string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived conversations",
	Long: `List archived conversations, newest first.

Shows titles, sources, message counts, tags, and when each conversation
started.

Examples:
  chatarchive list
  chatarchive list --limit 10
  chatarchive list --source ChatGPT --tag python
  chatarchive list --since "last week"`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().IntVar(&listLimit, "limit", 20, "Maximum number of conversations to display")
	listCmd.Flags().StringVar(&listSource, "source", "", "Filter by source (ChatGPT, Claude, Generic, HTML, Markdown)")
	listCmd.Flags().StringVar(&listTag, "tag", "", "Filter by tag")
	listCmd.Flags().StringVar(&listFolder, "folder", "", "Filter by folder")
	listCmd.Flags().StringVar(&listSince, "since", "", `Only conversations started after this date ("yesterday", "2024-11-01")`)
}

func runList(cmd *cobra.Command, args []string) error {
	filter := db.ListFilter{
		Source:   listSource,
		Tag:      listTag,
		FolderID: listFolder,
		Limit:    listLimit,
	}
	if listSince != "" {
		since := parseDate(listSince, time.Now())
		if since == nil {
			return fmt.Errorf("could not understand date %q", listSince)
		}
		filter.Since = *since
	}

	database, err := openArchive()
	if err != nil {
		return err
	}
	defer func() {
		_ = database.Close()
	}()

	summaries, err := database.ListSummaries(filter)
	if err != nil {
		return fmt.Errorf("failed to list conversations: %w", err)
	}

	if len(summaries) == 0 {
		fmt.Println("No conversations found. Run 'chatarchive import' to add some.")
		return nil
	}

	fmt.Printf("Showing %d conversation(s)\n\n", len(summaries))

	for i, s := range summaries {
		fmt.Printf("[%d] %s  %s\n", i+1, shortID(s.ID), truncateTitle(s.Title, 70))
		fmt.Printf("    Source:   %s\n", s.Source)
		fmt.Printf("    Messages: %d\n", s.MessageCount)
		if len(s.Tags) > 0 {
			fmt.Printf("    Tags:     %s\n", strings.Join(s.Tags, ", "))
		}
		if started := chatexport.InstantTime(s.CreatedAt); !started.IsZero() {
			fmt.Printf("    Started:  %s\n", formatTimestamp(started))
		}
		fmt.Println()
	}

	return nil
}

// parseDate accepts a few fixed layouts and natural language ("yesterday",
// "last week")
func parseDate(s string, now time.Time) *time.Time {
	formats := []string{
		"2006-01-02",
		"2006-01-02T15:04:05",
		time.RFC3339,
		"2006/01/02",
	}
	for _, format := range formats {
		if t, err := time.ParseInLocation(format, s, time.Local); err == nil {
			return &t
		}
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	result, err := w.Parse(s, now)
	if err == nil && result != nil {
		return &result.Time
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// truncateTitle collapses whitespace and shortens long titles at a word break
func truncateTitle(title string, maxLen int) string {
	title = strings.Join(strings.Fields(title), " ")
	if len(title) <= maxLen {
		return title
	}

	truncated := title[:maxLen]
	lastSpace := strings.LastIndex(truncated, " ")
	if lastSpace > maxLen-20 {
		truncated = truncated[:lastSpace]
	}
	return truncated + "..."
}

// formatTimestamp shows recent times relative to now and older ones as dates
func formatTimestamp(t time.Time) string {
	if time.Since(t) < 30*24*time.Hour {
		return humanize.Time(t)
	}
	if t.Year() == time.Now().Year() {
		return t.Format("Jan 2")
	}
	return t.Format("Jan 2, 2006")
}
