package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/dgallion1/docingest/internal/convert"
	"github.com/dgallion1/docingest/internal/storage"
)

// Converter is the primary conversion engine.
type Converter interface {
	Convert(ctx context.Context, inputPath string, progress convert.ProgressFunc) (*convert.Result, error)
}

// RunConversion is the body of the isolated worker process. It converts the
// job's upload and saves "<prefix>.document.md" and
// "<prefix>.document_structured.json". On conversion failure it leaves the
// error in the conversion record for the supervisor and returns it; the
// terminal metadata is always written by the supervisor.
func RunConversion(ctx context.Context, store *storage.Store, conv Converter, jobID string, log *slog.Logger) error {
	upload := store.UploadedFile(jobID)
	if upload == "" {
		return fmt.Errorf("%w: %s", ErrUploadMissing, jobID)
	}
	filename := filepath.Base(upload)
	prefix := storage.SanitizePrefix(filename)
	log = log.With("job_id", jobID, "prefix", prefix)

	pc, err := store.ReadProcessingConfig(jobID)
	if err != nil {
		log.Warn("unreadable processing config, using defaults", "error", err)
		pc = &storage.ProcessingConfig{}
	}
	if pc.DoOCR != nil && *pc.DoOCR {
		log.Info("do_ocr requested; OCR is not available, extracting embedded text only")
	}

	rep := NewReporter(store, jobID, log)
	log.Info("converting", "file", filename)
	res, err := conv.Convert(ctx, upload, rep.Report)
	if err != nil {
		log.Error("conversion failed", "error", err)
		if werr := store.WriteConversion(jobID, storage.ConversionRecord{Error: err.Error()}); werr != nil {
			log.Error("write conversion record", "error", werr)
		}
		return fmt.Errorf("convert %s: %w", filename, err)
	}

	rep.Report(StageSaving, 85)
	structured, err := json.MarshalIndent(res.Structured, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal structured document: %w", err)
	}
	if err := store.WriteArtifact(jobID, prefix, storage.KindStructured, structured); err != nil {
		return fmt.Errorf("save structured document: %w", err)
	}
	if err := store.WriteArtifact(jobID, prefix, storage.KindDocument, []byte(res.Markdown)); err != nil {
		return fmt.Errorf("save markdown: %w", err)
	}

	rec := storage.ConversionRecord{Placeholder: res.Placeholder, PageCount: res.PageCount, Warnings: res.Warnings}
	if err := store.WriteConversion(jobID, rec); err != nil {
		log.Warn("write conversion record", "error", err)
	}
	log.Info("conversion saved", "placeholder", res.Placeholder, "page_count", res.PageCount)
	return nil
}
