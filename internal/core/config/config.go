package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/neilberkman/chatarchive/internal/core/tagging"
	"github.com/neilberkman/chatarchive/pkg/chatexport"
)

// DefaultImportSummary is the mustache template printed after an import
const DefaultImportSummary = `Imported {{imported}} conversations from {{files}} {{file_label}}{{#has_duplicates}} ({{duplicates}} duplicates skipped){{/has_duplicates}}{{#has_failed}}, {{failed}} failed{{/has_failed}}`

// DefaultOffloadThreshold is the size above which files are extracted out of process
const DefaultOffloadThreshold int64 = 2 << 20

type Config struct {
	DefaultFolder         string
	Offload               bool  // extract HTML and oversized files in a child process
	OffloadThresholdBytes int64 // size above which a file is offloaded
	LanguageRules         map[string]string
	TopicRules            map[string]string
	ImportSummaryTemplate string
}

type tomlConfig struct {
	DefaultFolder         string `toml:"default_folder"`
	Offload               bool   `toml:"offload"`
	OffloadThresholdBytes int64  `toml:"offload_threshold_bytes"`
	Tags                  struct {
		Language map[string]string `toml:"language"`
		Topic    map[string]string `toml:"topic"`
	} `toml:"tags"`
}

func defaults() *Config {
	return &Config{
		DefaultFolder:         chatexport.DefaultFolderID,
		OffloadThresholdBytes: DefaultOffloadThreshold,
		ImportSummaryTemplate: DefaultImportSummary,
	}
}

// Dir returns ~/.config/chatarchive
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "chatarchive"), nil
}

// Load reads config from ~/.config/chatarchive/
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return defaults(), nil // Use defaults
	}
	return LoadFrom(dir)
}

// LoadFrom reads config.toml and import_summary.txt from dir. Missing files
// leave the defaults in place; a config.toml that does not parse is an error.
func LoadFrom(dir string) (*Config, error) {
	cfg := defaults()

	tomlPath := filepath.Join(dir, "config.toml")
	summaryPath := filepath.Join(dir, "import_summary.txt")

	// Load TOML config if it exists
	if _, err := os.Stat(tomlPath); err == nil {
		var tc tomlConfig
		if _, err := toml.DecodeFile(tomlPath, &tc); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", tomlPath, err)
		}
		if tc.DefaultFolder != "" {
			cfg.DefaultFolder = tc.DefaultFolder
		}
		cfg.Offload = tc.Offload
		if tc.OffloadThresholdBytes > 0 {
			cfg.OffloadThresholdBytes = tc.OffloadThresholdBytes
		}
		cfg.LanguageRules = tc.Tags.Language
		cfg.TopicRules = tc.Tags.Topic
	}

	// If custom template exists, use it
	if data, err := os.ReadFile(summaryPath); err == nil {
		cfg.ImportSummaryTemplate = string(data)
	}

	return cfg, nil
}

// TagRules returns the built-in tagging rules extended with the configured ones
func (c *Config) TagRules() (tagging.Rules, error) {
	return tagging.DefaultRules().Extend(c.LanguageRules, c.TopicRules)
}
