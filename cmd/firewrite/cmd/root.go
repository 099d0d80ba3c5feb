package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/solatis/firewrite/internal/core/config"
	"github.com/solatis/firewrite/internal/document"
	"github.com/solatis/firewrite/internal/logging"
	"github.com/solatis/firewrite/internal/types"
	"github.com/spf13/cobra"
)

// Version is the release reported by serve on startup.
const Version = "0.1.0"

var (
	configFile string
	dbURL      string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "firewrite",
	Short: "Firestore create-write builder and document server",
	Long: `firewrite converts documents with field sentinels into google.firestore.v1
writes and serves them through a Firestore-compatible Commit API.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "database connection URL (sqlite://path or postgres://...)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format (json, text)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the config file and applies global flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dbURL != "" {
		cfg.DBURL = dbURL
	}
	return cfg, nil
}

func newLogger() (*logging.Logger, error) {
	return logging.NewWithOptions(os.Stderr, logging.Options{
		Format: logFormat,
		Level:  logLevel,
	})
}

// readDocument decodes a YAML document from path, or stdin when path is "-".
func readDocument(cmd *cobra.Command, path string) (types.Mapping, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return document.Decode(data)
}
