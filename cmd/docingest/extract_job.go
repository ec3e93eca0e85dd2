package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/dgallion1/docingest/internal/convert"
	"github.com/dgallion1/docingest/internal/parser"
	"github.com/dgallion1/docingest/internal/pipeline"
	"github.com/dgallion1/docingest/internal/storage"
	"github.com/spf13/cobra"
)

// extractJobCmd is the isolated worker started by the serve process.
var extractJobCmd = &cobra.Command{
	Use:    "extract-job <job_id>",
	Short:  "Convert one uploaded job (worker process)",
	Hidden: true,
	Args:   cobra.ExactArgs(1),
	RunE:   runExtractJob,
}

func init() {
	rootCmd.AddCommand(extractJobCmd)
}

func runExtractJob(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	jobID := args[0]
	log := newLogger(os.Stderr, cfg.LogLevel).With("job_id", jobID, "worker_pid", os.Getpid())

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine := convert.New(parser.Options{PDFFallbackPdftotext: cfg.PDFFallbackPdftotext}, log)
	if err := pipeline.RunConversion(ctx, storage.NewStore(cfg.DataRoot), engine, jobID, log); err != nil {
		log.Error("conversion failed", "error", err)
		return err
	}
	log.Info("conversion finished")
	return nil
}
