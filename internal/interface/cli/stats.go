package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/neilberkman/chatarchive/internal/core/db"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show archive statistics",
	Long: `Display statistics about the conversation archive.

Shows conversation, message and word counts, date range, monthly activity,
sources, top tags, programming languages, and storage info.`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	database, err := openArchive()
	if err != nil {
		return err
	}
	defer func() {
		_ = database.Close()
	}()

	stats, err := database.GetStats()
	if err != nil {
		return fmt.Errorf("failed to compute stats: %w", err)
	}

	fmt.Println("Archive Statistics")
	fmt.Println("==================")
	fmt.Println()

	fmt.Printf("Total Conversations: %s\n", humanize.Comma(int64(stats.TotalConversations)))
	fmt.Printf("Total Messages:      %s\n", humanize.Comma(int64(stats.TotalMessages)))
	fmt.Printf("Total Words:         %s\n", humanize.Comma(int64(stats.TotalWords)))
	fmt.Printf("Avg Messages/Conv:   %d\n", stats.AvgMessages)
	fmt.Println()

	if !stats.Oldest.IsZero() {
		fmt.Printf("Oldest Conversation: %s\n", stats.Oldest.Format("Jan 2, 2006 3:04 PM"))
		fmt.Printf("Newest Conversation: %s\n", stats.Newest.Format("Jan 2, 2006 3:04 PM"))
		fmt.Println()
	}

	printCounts("Activity by Month", stats.ActivityByMonth, true)
	printCounts("Sources", stats.Sources, false)
	printCounts("Top Tags", stats.TopTags, false)
	printCounts("Languages", stats.CodeLanguages, false)

	fileInfo, err := os.Stat(dbPath)
	if err != nil {
		return fmt.Errorf("failed to stat database file: %w", err)
	}
	fmt.Printf("Database Location: %s\n", dbPath)
	fmt.Printf("Database Size:     %s\n", humanize.Bytes(uint64(fileInfo.Size())))

	return nil
}

// printCounts prints a breakdown, optionally with a bar scaled to the largest entry
func printCounts(heading string, counts []db.Count, bars bool) {
	if len(counts) == 0 {
		return
	}

	peak := 0
	for _, c := range counts {
		peak = max(peak, c.Count)
	}

	fmt.Printf("%s:\n", heading)
	for _, c := range counts {
		line := fmt.Sprintf("  %-12s %6d", c.Key, c.Count)
		if bars && peak > 0 {
			line += "  " + strings.Repeat("█", max(1, c.Count*30/peak))
		}
		fmt.Println(line)
	}
	fmt.Println()
}
