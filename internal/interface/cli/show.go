package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/neilberkman/chatarchive/pkg/chatexport"
)

var showCopy bool

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("cyan")).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("green")).
			Bold(true)

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("246"))
)

var showCmd = &cobra.Command{
	Use:   "show <conversation-id>",
	Short: "Show a conversation",
	Long: `Print every message of a conversation.

The ID may be abbreviated to any unique prefix, as shown by list.

Examples:
  chatarchive show 3f2a9c1e
  chatarchive show 3f2a --copy`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().BoolVar(&showCopy, "copy", false, "Copy the transcript to the clipboard")
}

func runShow(cmd *cobra.Command, args []string) error {
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

	fmt.Println(titleStyle.Render(conv.Title))
	meta := []string{string(conv.Source), fmt.Sprintf("%d messages", len(conv.Messages))}
	if started := chatexport.InstantTime(conv.CreatedAt); !started.IsZero() {
		meta = append(meta, started.Format("Jan 2, 2006 3:04 PM"))
	}
	if len(conv.Tags) > 0 {
		meta = append(meta, strings.Join(conv.Tags, ", "))
	}
	fmt.Println(metaStyle.Render(strings.Join(meta, " | ")))
	fmt.Println()

	for _, m := range conv.Messages {
		label := userStyle.Render("User")
		if m.Role == chatexport.RoleAssistant {
			label = assistantStyle.Render("Assistant")
		}
		if ts := messageTime(m); !ts.IsZero() {
			label += " " + metaStyle.Render(ts.Format("15:04"))
		}
		fmt.Println(label)
		fmt.Println(m.Content)
		fmt.Println()
	}

	if showCopy {
		if err := clipboard.WriteAll(renderMarkdown(conv)); err != nil {
			return fmt.Errorf("failed to copy to clipboard: %w", err)
		}
		fmt.Println(metaStyle.Render("Transcript copied to clipboard"))
	}
	return nil
}

func messageTime(m chatexport.Message) time.Time {
	if m.Timestamp == nil {
		return time.Time{}
	}
	return chatexport.InstantTime(*m.Timestamp)
}
