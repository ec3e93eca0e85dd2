package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/dgallion1/docingest/internal/chunker"
	"github.com/dgallion1/docingest/internal/storage"
)

// Fallback is the degraded extractor used after the worker fails.
type Fallback interface {
	Extract(inputPath, outputDir, prefix string) bool
}

// Failure messages recorded in job metadata.
const (
	msgTimedOut = "Extraction timed out"
	msgNoOutput = "Extraction failed: the conversion worker exited without producing output"
)

// Options configures an Orchestrator.
type Options struct {
	// Chunking holds the default budgets, overridable per request.
	Chunking storage.ChunkingParams
	// Timeout is the wall-clock budget of one worker run.
	Timeout time.Duration
	// Evidence lists artifact suffixes that prove the worker produced output.
	Evidence []string
	// JobTTL enables pruning of jobs older than this. Zero disables it.
	JobTTL time.Duration
	// SweepInterval is how often pruning runs.
	SweepInterval time.Duration
}

// Orchestrator runs extraction attempts: one supervising goroutine per job,
// the conversion itself in a separate process.
type Orchestrator struct {
	store    *storage.Store
	runner   Runner
	fallback Fallback
	inflight *Registry
	log      *slog.Logger
	opts     Options

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewOrchestrator(store *storage.Store, runner Runner, fallback Fallback, opts Options, log *slog.Logger) *Orchestrator {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Minute
	}
	if len(opts.Evidence) == 0 {
		opts.Evidence = []string{"." + storage.KindDocument, "." + storage.KindStructured}
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 5 * time.Minute
	}
	return &Orchestrator{
		store:    store,
		runner:   runner,
		fallback: fallback,
		inflight: NewRegistry(),
		log:      log,
		opts:     opts,
	}
}

// Start launches the retention sweeper when a job TTL is configured.
func (o *Orchestrator) Start(ctx context.Context) {
	if o.opts.JobTTL <= 0 {
		return
	}
	sweepCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(o.opts.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				o.Sweep()
			}
		}
	}()
}

// Sweep prunes expired jobs that are not in flight. No job can start while
// the sweep runs.
func (o *Orchestrator) Sweep() {
	var (
		n   int
		err error
	)
	o.inflight.Hold(func(busy func(jobID string) bool, _ int) {
		n, err = o.store.Prune(o.opts.JobTTL, busy)
	})
	if err != nil {
		o.log.Warn("prune jobs", "error", err)
	}
	if n > 0 {
		o.log.Info("pruned expired jobs", "count", n, "ttl", o.opts.JobTTL)
	}
}

// Shutdown stops the sweeper and waits for running supervisors. Workers are
// not cancelled; ctx bounds the wait.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	if o.cancel != nil {
		o.cancel()
	}
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for %d extraction(s): %w", len(o.inflight.List()), ctx.Err())
	}
}

// Clean removes every upload and output. It fails with ErrJobsActive while
// any extraction is in flight, and no job can start while it runs.
func (o *Orchestrator) Clean() (storage.CleanResult, error) {
	var (
		res storage.CleanResult
		err error
	)
	o.inflight.Hold(func(_ func(string) bool, active int) {
		if active > 0 {
			err = fmt.Errorf("%w: %d running", ErrJobsActive, active)
			return
		}
		res, err = o.store.Clean()
	})
	return res, err
}

// View returns the caller-facing state of a job. A job in flight reads as
// extracting until its supervisor has written the terminal record.
func (o *Orchestrator) View(jobID string) (*storage.JobView, error) {
	return o.store.View(jobID, o.opts.Evidence, o.inflight.Has(jobID))
}

// Active returns the ids of jobs being extracted.
func (o *Orchestrator) Active() []string {
	return o.inflight.List()
}

// InFlight reports whether an attempt for jobID is running.
func (o *Orchestrator) InFlight(jobID string) bool {
	return o.inflight.Has(jobID)
}

// attempt is the per-job state of one supervised extraction.
type attempt struct {
	jobID    string
	upload   string
	filename string
	prefix   string
	params   storage.ChunkingParams
	log      *slog.Logger
	rep      *Reporter
}

// Extract starts an extraction attempt for jobID and returns without waiting
// for it. A job that is already being extracted is left alone and reported
// with AlreadyRunning set.
func (o *Orchestrator) Extract(ctx context.Context, jobID string, pc *storage.ProcessingConfig) (Summary, error) {
	if err := ctx.Err(); err != nil {
		return Summary{}, err
	}
	if err := storage.ValidateJobID(jobID); err != nil {
		return Summary{}, err
	}
	upload := o.store.UploadedFile(jobID)
	if upload == "" {
		return Summary{}, fmt.Errorf("%w: %s", ErrUploadMissing, jobID)
	}

	if !o.inflight.TryAcquire(jobID) {
		return Summary{
			JobID:          jobID,
			Success:        true,
			Message:        "Extraction already in progress. Poll /job/{id}/progress for status.",
			Artifacts:      []string{},
			AlreadyRunning: true,
		}, nil
	}

	a := &attempt{
		jobID:    jobID,
		upload:   upload,
		filename: filepath.Base(upload),
		prefix:   storage.SanitizePrefix(filepath.Base(upload)),
		params:   pc.Resolve(o.opts.Chunking),
	}
	a.log = o.log.With("job_id", jobID, "prefix", a.prefix)
	a.rep = NewReporter(o.store, jobID, a.log)

	if err := o.begin(a, pc); err != nil {
		o.inflight.Release(jobID)
		return Summary{}, err
	}

	o.wg.Add(1)
	go o.supervise(a)

	return Summary{
		JobID:     jobID,
		Success:   true,
		Message:   "Extraction started. Poll GET /job/{id} and GET /job/{id}/progress for status.",
		Artifacts: []string{},
	}, nil
}

// begin clears the previous attempt and records the extracting state.
func (o *Orchestrator) begin(a *attempt, pc *storage.ProcessingConfig) error {
	if err := o.store.ResetOutputs(a.jobID); err != nil {
		a.log.Warn("clear previous outputs", "error", err)
	}

	resolved := storage.ProcessingConfig{}
	if pc != nil {
		resolved = *pc
	}
	resolved.TargetTokens = &a.params.TargetTokens
	resolved.OverlapTokens = &a.params.OverlapTokens
	if err := o.store.WriteProcessingConfig(a.jobID, &resolved); err != nil {
		return fmt.Errorf("persist processing config: %w", err)
	}

	o.persist(a.log, &storage.JobMetadata{
		JobID:          a.jobID,
		Filename:       a.filename,
		Status:         storage.StatusExtracting,
		ArtifactPrefix: a.prefix,
	})
	a.rep.Reset(StageStarting, 5)
	a.log.Info("extraction started", "target_tokens", a.params.TargetTokens, "overlap_tokens", a.params.OverlapTokens)
	return nil
}

func (o *Orchestrator) supervise(a *attempt) {
	defer o.wg.Done()
	defer o.inflight.Release(a.jobID)
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("supervisor panic", "panic", r, "stack", string(debug.Stack()))
			o.finish(a, storage.StatusFailed, map[string]any{}, fmt.Sprintf("Extraction failed: internal error: %v", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), o.opts.Timeout)
	defer cancel()

	start := time.Now()
	err := o.runner.Run(ctx, a.jobID)
	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		a.log.Warn("conversion worker failed", "error", err, "duration", elapsed)
		o.recoverWithFallback(a, err)
		return
	}
	a.log.Info("conversion worker exited", "duration", elapsed)
	o.complete(a)
}

// recoverWithFallback runs the fallback extractor after a failed worker and
// finalizes the job either way.
func (o *Orchestrator) recoverWithFallback(a *attempt, runErr error) {
	primary := o.primaryError(a, runErr)
	if o.fallback != nil && o.fallback.Extract(a.upload, o.store.OutputDir(a.jobID), a.prefix) {
		a.log.Warn("completed with fallback extraction", "primary_error", primary)
		o.finish(a, storage.StatusCompleted, map[string]any{"fallback": true, "num_chunks": 0}, "")
		return
	}
	a.log.Error("extraction failed", "error", fmt.Errorf("%w: %w", ErrFallbackFailure, runErr))
	o.finish(a, storage.StatusFailed, map[string]any{}, primary)
}

// primaryError picks the message recorded when the worker failed: a fixed
// text for timeouts, else the error the worker left in its conversion
// record, else the process error.
func (o *Orchestrator) primaryError(a *attempt, runErr error) string {
	if errors.Is(runErr, ErrConversionTimeout) {
		return msgTimedOut
	}
	if rec, ok := o.store.ReadConversion(a.jobID); ok && rec.Error != "" {
		return rec.Error
	}
	return runErr.Error()
}

// complete handles a clean worker exit: verify output, chunk, write the
// manifest and the terminal record.
func (o *Orchestrator) complete(a *attempt) {
	if !o.store.HasOutput(a.jobID, o.opts.Evidence) {
		if meta, err := o.store.ReadMetadata(a.jobID); err == nil && meta != nil && meta.Status.Terminal() {
			a.log.Warn("worker exited cleanly without output, keeping its record", "status", meta.Status)
			o.reportTerminal(a, meta.Status)
			return
		}
		a.log.Error("extraction failed", "error", ErrNoOutputProduced)
		o.finish(a, storage.StatusFailed, map[string]any{}, msgNoOutput)
		return
	}

	a.rep.Report(StageChunking, 90)
	numChunks, err := o.chunk(a)
	if err != nil {
		a.log.Warn("chunking failed, continuing without chunks", "error", err)
		numChunks = 0
	}

	stats := map[string]any{"num_chunks": numChunks, "placeholder": false}
	if rec, ok := o.store.ReadConversion(a.jobID); ok {
		stats["placeholder"] = rec.Placeholder
		if rec.PageCount > 0 {
			stats["page_count"] = rec.PageCount
		}
		if len(rec.Warnings) > 0 {
			stats["warnings"] = rec.Warnings
		}
	}

	manifest := &storage.Manifest{
		JobID:          a.jobID,
		SourceFile:     a.filename,
		ArtifactPrefix: a.prefix,
		Artifacts: o.artifactsWith(a,
			storage.ArtifactName(a.prefix, storage.KindManifest),
			storage.ArtifactName(a.prefix, storage.KindMetadata)),
		NumChunks: numChunks,
		Chunking:  a.params,
	}
	if err := o.store.WriteManifest(manifest); err != nil {
		a.log.Warn("write manifest", "error", err)
	}

	o.finish(a, storage.StatusCompleted, stats, "")
}

// chunk windows the converted markdown into "<prefix>.chunks.jsonl".
func (o *Orchestrator) chunk(a *attempt) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("%w: panic: %v", ErrChunkingFailure, r)
		}
	}()
	dir := o.store.OutputDir(a.jobID)
	mdPath := filepath.Join(dir, storage.ArtifactName(a.prefix, storage.KindDocument))
	if _, statErr := os.Stat(mdPath); statErr != nil {
		a.log.Info("no markdown to chunk", "path", mdPath)
		return 0, nil
	}
	n, err = chunker.GenerateFile(mdPath, filepath.Join(dir, storage.ArtifactName(a.prefix, storage.KindChunks)), a.jobID,
		chunker.Config{TargetTokens: a.params.TargetTokens, OverlapTokens: a.params.OverlapTokens})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrChunkingFailure, err)
	}
	a.log.Info("chunked document", "chunks", n)
	return n, nil
}

// artifactsWith lists the job's artifacts plus names about to be written.
func (o *Orchestrator) artifactsWith(a *attempt, extra ...string) []string {
	names := o.store.ListArtifacts(a.jobID)
	for _, e := range extra {
		found := false
		for _, n := range names {
			if n == e {
				found = true
				break
			}
		}
		if !found {
			names = append(names, e)
		}
	}
	sort.Strings(names)
	return names
}

// finish writes the terminal record and progress of an attempt.
func (o *Orchestrator) finish(a *attempt, status storage.Status, stats map[string]any, errMsg string) {
	o.persist(a.log, &storage.JobMetadata{
		JobID:          a.jobID,
		Filename:       a.filename,
		Status:         status,
		ArtifactPrefix: a.prefix,
		Artifacts:      o.artifactsWith(a, storage.ArtifactName(a.prefix, storage.KindMetadata)),
		Stats:          stats,
		Error:          errMsg,
	})
	o.reportTerminal(a, status)
	a.log.Info("extraction finished", "status", status, "error", errMsg)
}

func (o *Orchestrator) reportTerminal(a *attempt, status storage.Status) {
	if status == storage.StatusCompleted {
		a.rep.Report(StageComplete, 100)
	} else {
		a.rep.Report(StageFailed, 100)
	}
}

// persist writes a metadata record, falling back to a direct write of a
// minimal record. Failures are logged, never raised.
func (o *Orchestrator) persist(log *slog.Logger, meta *storage.JobMetadata) {
	var err error
	for i := 0; i < persistAttempts; i++ {
		if err = o.store.WriteMetadata(meta); err == nil {
			return
		}
		if !retryable(err) || i == persistAttempts-1 {
			break
		}
		log.Warn("persist metadata, retrying", "status", meta.Status, "attempt", i+1, "error", err)
		time.Sleep(backoff(i))
	}
	log.Error("persist metadata", "status", meta.Status, "error", err)
	minimal := &storage.JobMetadata{
		JobID:          meta.JobID,
		Filename:       meta.Filename,
		Status:         meta.Status,
		ArtifactPrefix: meta.ArtifactPrefix,
		Artifacts:      []string{},
		Stats:          meta.Stats,
		Error:          meta.Error,
	}
	if err := o.store.WriteMetadataDirect(minimal); err != nil {
		log.Error("persist minimal metadata", "status", meta.Status, "error", err)
	}
}
