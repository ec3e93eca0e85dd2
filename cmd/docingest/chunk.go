package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgallion1/docingest/internal/chunker"
	"github.com/dgallion1/docingest/internal/config"
	"github.com/dgallion1/docingest/internal/storage"
	"github.com/spf13/cobra"
)

var chunkCmd = &cobra.Command{
	Use:   "chunk <file.md>",
	Short: "Split a markdown file into JSONL chunks",
	Long: `Split a markdown file into heading-scoped, token-bounded chunks.

Chunks are written as JSON lines to --out, or to stdout when --out is empty.

Examples:
  docingest chunk notes.md --doc-id notes --target-tokens 800 --overlap-tokens 80
  docingest chunk notes.md --out notes.chunks.jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: runChunk,
}

func init() {
	rootCmd.AddCommand(chunkCmd)
	chunkCmd.Flags().String("doc-id", "", "Document id stamped on every chunk (default: sanitized file name)")
	chunkCmd.Flags().Int("target-tokens", 0, "Target tokens per chunk (default from config)")
	chunkCmd.Flags().Int("overlap-tokens", -1, "Tokens carried between windows (default from config)")
	chunkCmd.Flags().String("out", "", "Output JSONL path")
}

func runChunk(cmd *cobra.Command, args []string) error {
	mdPath := args[0]
	docID, _ := cmd.Flags().GetString("doc-id")
	target, _ := cmd.Flags().GetInt("target-tokens")
	overlap, _ := cmd.Flags().GetInt("overlap-tokens")
	out, _ := cmd.Flags().GetString("out")

	cfg := chunker.Config{TargetTokens: v.GetInt(config.KeyTargetTokens), OverlapTokens: v.GetInt(config.KeyOverlapTokens)}
	if target > 0 {
		cfg.TargetTokens = target
	}
	if overlap >= 0 {
		cfg.OverlapTokens = overlap
	}
	if cfg.OverlapTokens >= cfg.TargetTokens {
		return fmt.Errorf("--overlap-tokens (%d) must be smaller than --target-tokens (%d)", cfg.OverlapTokens, cfg.TargetTokens)
	}
	if docID == "" {
		docID = storage.SanitizePrefix(filepath.Base(mdPath))
	}

	if out != "" {
		n, err := chunker.GenerateFile(mdPath, out, docID, cfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d chunks to %s\n", n, out)
		return nil
	}

	data, err := os.ReadFile(mdPath)
	if err != nil {
		return err
	}
	_, err = chunker.WriteChunks(cmd.OutOrStdout(), string(data), docID, cfg)
	return err
}
