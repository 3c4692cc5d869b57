package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/neilberkman/chatarchive/pkg/chatexport"
)

var (
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export <conversation-id>",
	Short: "Export a conversation to markdown",
	Long: `Export a conversation to a markdown transcript.

The transcript uses **User:** and **Assistant:** speaker labels, so it can
be imported again. By default it is written to the current directory as
conversation-<id>.md. Use --output to specify a custom path, or "-" for
stdout.

Examples:
  chatarchive export 3f2a9c1e
  chatarchive export 3f2a9c1e --output ~/notes/sorting.md
  chatarchive export 3f2a9c1e -o -`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file path (default: conversation-<id>.md in current directory)")
}

func runExport(cmd *cobra.Command, args []string) error {
	database, err := openArchive()
	if err != nil {
		return err
	}
	defer func() {
		_ = database.Close()
	}()

	id, err := database.ResolveID(args[0])
	if err != nil {
		return err
	}
	conv, err := database.GetConversation(id)
	if err != nil {
		return err
	}

	content := renderMarkdown(conv)
	if exportOutput == "-" {
		fmt.Print(content)
		return nil
	}

	outputPath := exportOutput
	if outputPath == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		outputPath = filepath.Join(cwd, fmt.Sprintf("conversation-%s.md", shortID(conv.ID)))
	}

	if err := os.WriteFile(outputPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	fmt.Printf("Exported conversation to: %s\n", outputPath)
	return nil
}

// renderMarkdown writes a transcript the markdown importer reads back as
// the same sequence of turns
func renderMarkdown(conv *chatexport.Conversation) string {
	var b strings.Builder

	b.WriteString("# ")
	b.WriteString(conv.Title)
	b.WriteString("\n\n")

	b.WriteString("_Source: ")
	b.WriteString(string(conv.Source))
	if started := chatexport.InstantTime(conv.CreatedAt); !started.IsZero() {
		b.WriteString(", ")
		b.WriteString(started.Format("Jan 02, 2006 15:04:05"))
	}
	b.WriteString("_\n\n")

	for _, m := range conv.Messages {
		if m.Role == chatexport.RoleAssistant {
			b.WriteString("**Assistant:** ")
		} else {
			b.WriteString("**User:** ")
		}
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}

	return b.String()
}
