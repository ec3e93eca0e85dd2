package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/docingest/internal/api"
	"github.com/dgallion1/docingest/internal/config"
	"github.com/dgallion1/docingest/internal/fallback"
	"github.com/dgallion1/docingest/internal/parser"
	"github.com/dgallion1/docingest/internal/pipeline"
	"github.com/dgallion1/docingest/internal/storage"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("port", "", "Listen port")
	_ = v.BindPFlag(config.KeyPort, serveCmd.Flags().Lookup("port"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(os.Stdout, cfg.LogLevel)

	store := storage.NewStore(cfg.DataRoot)
	if err := store.EnsureDirs(); err != nil {
		return fmt.Errorf("prepare data root: %w", err)
	}

	runner := &pipeline.ExecRunner{Store: store}
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		runner.Args = []string{"--config", path}
	}
	if cfg.LogLevel != "" {
		runner.Args = append(runner.Args, "--log-level", cfg.LogLevel)
	}

	popts := parser.Options{PDFFallbackPdftotext: cfg.PDFFallbackPdftotext}
	orch := pipeline.NewOrchestrator(store, runner, fallback.New(popts, log), pipeline.Options{
		Chunking: storage.ChunkingParams{TargetTokens: cfg.TargetTokens, OverlapTokens: cfg.OverlapTokens},
		Timeout:  cfg.ExtractTimeout,
		Evidence: cfg.OutputEvidence,
		JobTTL:   cfg.JobTTL,
	}, log)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	orch.Start(ctx)

	httpServer := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     api.NewServer(store, orch, log, cfg),
		ReadTimeout: 10 * time.Minute,
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting docingest", "port", cfg.Port, "data_root", cfg.DataRoot)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", "error", err)
	}
	if err := orch.Shutdown(shutdownCtx); err != nil {
		log.Warn("extractions still running at shutdown", "error", err, "jobs", orch.Active())
	}
	return nil
}
