package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neilberkman/chatarchive/cmd/chatarchive/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "serve-mcp",
	Short: "Start MCP server for assistant integration",
	Long: `Start an MCP (Model Context Protocol) server over stdio that lets an
assistant import exports into, search, and read your chat archive.

Configure in your client's MCP settings:
  {
    "mcpServers": {
      "chatarchive": {
        "command": "chatarchive",
        "args": ["serve-mcp"]
      }
    }
  }
`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
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
	if err := mcp.StartServer(database, imp); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}
