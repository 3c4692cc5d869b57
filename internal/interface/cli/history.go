package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent imports",
	Long: `Show the import log: one entry per processed file with how many
conversations were found, imported, and skipped as duplicates.`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of entries to display")
}

func runHistory(cmd *cobra.Command, args []string) error {
	database, err := openArchive()
	if err != nil {
		return err
	}
	defer func() {
		_ = database.Close()
	}()

	records, err := database.ListImports(historyLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No imports yet.")
		return nil
	}

	for _, rec := range records {
		fmt.Printf("%s  %-7s %s\n", humanize.Time(rec.ImportedAt), rec.Status, rec.FilePath)
		fmt.Printf("    %s, %s: %d found, %d imported, %d duplicates\n",
			rec.Format, humanize.Bytes(uint64(rec.FileSize)),
			rec.ConversationsFound, rec.ConversationsImported, rec.DuplicatesSkipped)
		if rec.Error != "" {
			fmt.Println(failedStyle.Render("    " + rec.Error))
		}
	}
	return nil
}
