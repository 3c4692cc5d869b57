package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/neilberkman/chatarchive/pkg/chatexport"
)

var extractName string

var extractCmd = &cobra.Command{
	Use:   "extract <file|->",
	Short: "Extract conversations from an export file as JSON",
	Long: `Run extraction on a single file and print the result as JSON without
touching the archive.

The output is either an array of conversations or an object with a single
"error" field. The exit status is 1 when extraction fails. Use "-" to read
from stdin, with --name supplying the file name used for format detection.

Examples:
  chatarchive extract conversations.json
  cat page.html | chatarchive extract --name page.html -`,
	Args:          cobra.ExactArgs(1),
	SilenceErrors: true,
	RunE:          runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringVar(&extractName, "name", "", "File name used for format detection (default: the path)")
}

func runExtract(cmd *cobra.Command, args []string) error {
	var (
		content []byte
		err     error
	)
	name := extractName
	if args[0] == "-" {
		content, err = io.ReadAll(os.Stdin)
		if name == "" {
			name = "stdin"
		}
	} else {
		content, err = os.ReadFile(args[0])
		if name == "" {
			name = args[0]
		}
	}
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	d := chatexport.NewDispatcher(chatexport.WithLogger(logger))
	conversations, extractErr := d.Extract(content, name, int64(len(content)))

	if err := chatexport.EncodeResult(os.Stdout, conversations, extractErr); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	if extractErr != nil {
		os.Exit(1)
	}
	return nil
}
