package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/neilberkman/chatarchive/internal/core/config"
	"github.com/neilberkman/chatarchive/internal/core/db"
)

var (
	dbPath      string
	verbose     bool
	versionInfo string

	cfg    *config.Config
	logger = zerolog.Nop()
)

// SetVersion sets the version information from build-time ldflags
func SetVersion(version, commit, date string) {
	versionInfo = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
	rootCmd.Version = versionInfo
}

// Execute runs the CLI
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "chatarchive",
	Short: "Archive and search exported AI chat conversations",
	Long: `chatarchive - import, search, and browse your AI chat history

Imports ChatGPT and Claude exports, saved chat pages, and Markdown
transcripts into a local archive with full-text search, duplicate
detection, and automatic tagging.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
				Level(zerolog.DebugLevel).
				With().Timestamp().Logger()
		}

		loaded, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		cfg = loaded
		return nil
	},
}

func init() {
	// Global flags
	home, err := os.UserHomeDir()
	if err != nil {
		home = "~"
	}
	defaultDB := filepath.Join(home, ".config", "chatarchive", "archive.db")

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", defaultDB, "Database path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log extraction details to stderr")
}

// openArchive opens the database at --db using the configured default folder
func openArchive() (*db.DB, error) {
	var opts []db.Option
	if cfg != nil {
		opts = append(opts, db.WithDefaultFolder(cfg.DefaultFolder))
	}
	database, err := db.New(dbPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}
