package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/docingest/internal/storage"
)

func helperRunner(t *testing.T, mode string) (*ExecRunner, *storage.Store) {
	t.Helper()
	t.Setenv("DOCINGEST_TEST_WORKER", mode)
	s := storage.NewStore(t.TempDir())
	return &ExecRunner{Store: s, Executable: os.Args[0], Args: []string{"--log-level", "debug"}, WaitDelay: time.Second}, s
}

func TestExecRunner_CleanExit(t *testing.T) {
	r, s := helperRunner(t, "exit0")
	if err := r.Run(context.Background(), "job-ok"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	out, err := os.ReadFile(filepath.Join(s.OutputDir("job-ok"), storage.WorkerLogFile))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "extract-job --data-root ") || !strings.Contains(string(out), "--log-level debug job-ok") {
		t.Errorf("unexpected worker invocation %q", out)
	}
}

func TestExecRunner_NonZeroExit(t *testing.T) {
	r, s := helperRunner(t, "exit3")
	err := r.Run(context.Background(), "job-bad")

	var runErr *RunError
	if !errors.As(err, &runErr) || runErr.ExitCode != 3 {
		t.Fatalf("expected RunError with code 3, got %v", err)
	}
	if !errors.Is(err, ErrConversionCrash) {
		t.Error("expected crash classification")
	}
	out, _ := os.ReadFile(filepath.Join(s.OutputDir("job-bad"), storage.WorkerLogFile))
	if !strings.Contains(string(out), "worker crashed") {
		t.Errorf("stderr not captured: %q", out)
	}
}

func TestExecRunner_Timeout(t *testing.T) {
	r, _ := helperRunner(t, "sleep")
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := r.Run(ctx, "job-slow")
	if !errors.Is(err, ErrConversionTimeout) {
		t.Fatalf("expected ErrConversionTimeout, got %v", err)
	}
	if errors.Is(err, ErrConversionCrash) {
		t.Error("a timeout is not a crash")
	}
	if time.Since(start) > 10*time.Second {
		t.Error("worker was not killed promptly")
	}
}

func TestExecRunner_MissingExecutable(t *testing.T) {
	s := storage.NewStore(t.TempDir())
	r := &ExecRunner{Store: s, Executable: filepath.Join(t.TempDir(), "nope")}
	err := r.Run(context.Background(), "job")
	var runErr *RunError
	if !errors.As(err, &runErr) || runErr.ExitCode != -1 || !errors.Is(err, ErrConversionCrash) {
		t.Errorf("expected start failure as crash, got %v", err)
	}
}
