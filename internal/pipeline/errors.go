package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrUploadMissing means the job has no source file to convert.
	ErrUploadMissing = errors.New("upload not found for job")
	// ErrConversionTimeout means the worker exceeded its wall-clock budget.
	ErrConversionTimeout = errors.New("extraction timed out")
	// ErrConversionCrash means the worker exited non-zero or could not start.
	ErrConversionCrash = errors.New("conversion worker crashed")
	// ErrNoOutputProduced means the worker exited cleanly without output.
	ErrNoOutputProduced = errors.New("worker exited without producing output")
	// ErrChunkingFailure is logged and never fails the job on its own.
	ErrChunkingFailure = errors.New("chunking failed")
	// ErrFallbackFailure means both the worker and the fallback failed.
	ErrFallbackFailure = errors.New("fallback extraction failed")
	// ErrJobsActive means a storage-wide operation was refused because
	// extractions are running.
	ErrJobsActive = errors.New("extractions in progress")
)

// RunError describes a worker process that did not exit cleanly.
// ExitCode is -1 when the process never started or was killed by a signal.
type RunError struct {
	ExitCode int
	Err      error
}

func (e *RunError) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("conversion worker exited with code %d", e.ExitCode)
	}
	return fmt.Sprintf("conversion worker failed: %v", e.Err)
}

func (e *RunError) Unwrap() []error {
	return []error{ErrConversionCrash, e.Err}
}
