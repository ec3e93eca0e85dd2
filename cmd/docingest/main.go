// Command docingest converts uploaded documents into markdown, structured
// JSON and retrieval chunks.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dgallion1/docingest/internal/config"
	"github.com/spf13/cobra"
)

var v = config.New()

var rootCmd = &cobra.Command{
	Use:           "docingest",
	Short:         "Document ingestion job pipeline",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("config")
		return config.ReadFile(v, path)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (yaml, json or toml)")
	flags.String("data-root", "", "Directory holding uploads and outputs")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	_ = v.BindPFlag(config.KeyDataRoot, flags.Lookup("data-root"))
	_ = v.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig resolves and validates the configuration.
func loadConfig() (config.Config, error) {
	cfg := config.Load(v)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}
