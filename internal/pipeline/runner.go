package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/dgallion1/docingest/internal/storage"
)

// Runner executes the conversion step for a job in isolation. It returns
// nil only when the step exited cleanly.
type Runner interface {
	Run(ctx context.Context, jobID string) error
}

// ExecRunner re-executes the current binary as
//
//	<exe> extract-job --data-root <root> [args...] <job_id>
//
// writing the child's stdout and stderr to worker.log in the job output dir.
// The child is killed when ctx ends.
type ExecRunner struct {
	Store *storage.Store
	// Executable defaults to os.Executable().
	Executable string
	// Args are passed to the child before the job id.
	Args []string
	// WaitDelay bounds output draining after the child is killed.
	WaitDelay time.Duration
}

func (r *ExecRunner) Run(ctx context.Context, jobID string) error {
	exe := r.Executable
	if exe == "" {
		var err error
		if exe, err = os.Executable(); err != nil {
			return &RunError{ExitCode: -1, Err: fmt.Errorf("resolve executable: %w", err)}
		}
	}

	dir := r.Store.OutputDir(jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &RunError{ExitCode: -1, Err: fmt.Errorf("create output dir: %w", err)}
	}
	logFile, err := os.Create(filepath.Join(dir, storage.WorkerLogFile))
	if err != nil {
		return &RunError{ExitCode: -1, Err: fmt.Errorf("create worker log: %w", err)}
	}
	defer logFile.Close()

	root, err := filepath.Abs(r.Store.Root())
	if err != nil {
		root = r.Store.Root()
	}
	args := append([]string{"extract-job", "--data-root", root}, r.Args...)
	args = append(args, jobID)

	cmd := exec.CommandContext(ctx, exe, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Env = os.Environ()
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = 10 * time.Second
	}

	err = cmd.Run()
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrConversionTimeout, err)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &RunError{ExitCode: exitErr.ExitCode(), Err: err}
	}
	return &RunError{ExitCode: -1, Err: err}
}
