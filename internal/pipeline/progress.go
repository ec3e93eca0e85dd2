package pipeline

import (
	"log/slog"
	"sync"

	"github.com/dgallion1/docingest/internal/storage"
)

// Progress stages written outside the conversion engine.
const (
	StageStarting = "Starting extraction"
	StageSaving   = "Saving outputs"
	StageChunking = "Chunking"
	StageComplete = "Complete"
	StageFailed   = "Failed"
)

// Reporter writes progress snapshots for one attempt. Percent never moves
// backwards within an attempt.
type Reporter struct {
	store *storage.Store
	jobID string
	log   *slog.Logger

	mu   sync.Mutex
	last int
}

func NewReporter(store *storage.Store, jobID string, log *slog.Logger) *Reporter {
	return &Reporter{store: store, jobID: jobID, log: log}
}

// Reset starts a fresh attempt at the given snapshot.
func (r *Reporter) Reset(stage string, percent int) {
	r.mu.Lock()
	r.last = 0
	r.mu.Unlock()
	r.Report(stage, percent)
}

// Report records a stage. Write failures are logged and otherwise ignored.
func (r *Reporter) Report(stage string, percent int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	percent = min(max(percent, r.last, 0), 100)
	r.last = percent
	if err := r.store.WriteProgress(r.jobID, storage.Progress{Stage: stage, Percent: percent}); err != nil {
		r.log.Warn("write progress", "stage", stage, "error", err)
	}
}
