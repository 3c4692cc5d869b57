package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/neilberkman/chatarchive/internal/core/importer"
	"github.com/neilberkman/chatarchive/internal/core/tagging"
	"github.com/neilberkman/chatarchive/pkg/chatexport"
)

var (
	importQuiet   bool
	importOffload bool
)

var (
	summaryStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("120"))

	failedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))
)

var importCmd = &cobra.Command{
	Use:   "import <file|dir>...",
	Short: "Import chat export files",
	Long: `Import chat exports into the archive.

Accepts ChatGPT and Claude JSON exports, generic JSON message lists, saved
HTML chat pages, and Markdown transcripts. Directories are searched for
.json, .html, .htm, .md and .markdown files. Files are processed one at a
time in the order given; a file that fails to parse is reported and the
rest of the queue continues.

Conversations already in the archive (matched by the content of their
first messages) are skipped.

Examples:
  chatarchive import conversations.json
  chatarchive import ~/Downloads/claude-export/ shared-chat.html
  chatarchive import --offload big-export.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().BoolVarP(&importQuiet, "quiet", "q", false, "Don't show a progress bar")
	importCmd.Flags().BoolVar(&importOffload, "offload", false, "Extract HTML and large files in a separate process")
}

func runImport(cmd *cobra.Command, args []string) error {
	paths, err := expandImportPaths(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Println("No importable files found.")
		return nil
	}

	database, err := openArchive()
	if err != nil {
		return err
	}
	defer func() {
		_ = database.Close()
	}()

	imp, err := newImporter(database)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var progress importer.ProgressCallback
	if !importQuiet && len(paths) > 1 {
		progress = importer.NewProgressReporter(os.Stderr)
	}

	result := imp.ImportFiles(ctx, paths, progress)

	summary, err := result.Summary(cfg.ImportSummaryTemplate)
	if err != nil {
		return fmt.Errorf("failed to render import summary: %w", err)
	}
	fmt.Println(summaryStyle.Render(strings.TrimSpace(summary)))

	for _, fr := range result.Files {
		if fr.Err != nil {
			fmt.Println(failedStyle.Render(fmt.Sprintf("  %s: %v", fr.Path, fr.Err)))
		}
	}

	if ctx.Err() != nil {
		return fmt.Errorf("import interrupted after %d of %d files", len(result.Files), len(paths))
	}
	return nil
}

// newImporter builds an importer from the loaded configuration
func newImporter(archive importer.Archive) (*importer.Importer, error) {
	rules, err := cfg.TagRules()
	if err != nil {
		return nil, fmt.Errorf("invalid tag rules in config: %w", err)
	}

	opts := []importer.Option{
		importer.WithLogger(logger),
		importer.WithExtractor(chatexport.NewDispatcher(chatexport.WithLogger(logger))),
		importer.WithTagger(tagging.New(rules)),
	}
	if importOffload || cfg.Offload {
		offload, err := importer.NewSelfExtractor(importer.DefaultExtractTimeout)
		if err != nil {
			return nil, err
		}
		opts = append(opts, importer.WithOffload(offload, cfg.OffloadThresholdBytes))
	}
	return importer.New(archive, opts...), nil
}

// expandImportPaths replaces directory arguments with the export files they
// contain, keeping the argument order
func expandImportPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			// Missing files are reported per file by the importer
			paths = append(paths, arg)
			continue
		}
		found, err := importer.FindExports(arg)
		if err != nil {
			return nil, err
		}
		paths = append(paths, found...)
	}
	return paths, nil
}
