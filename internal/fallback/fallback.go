// Package fallback writes degraded plain-text output when full conversion
// crashed or timed out.
package fallback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgallion1/docingest/internal/parser"
	"github.com/dgallion1/docingest/internal/storage"
)

// readTimeout bounds plain-text reads, including any pdftotext run.
const readTimeout = 2 * time.Minute

// Document is the structured output written next to the fallback markdown.
type Document struct {
	Source      string `json:"source"`
	Text        string `json:"text"`
	Placeholder bool   `json:"placeholder"`
}

// Extractor performs dependency-light text extraction.
type Extractor struct {
	opts   parser.Options
	logger *slog.Logger
}

func New(opts parser.Options, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{opts: opts, logger: logger}
}

// Extract writes "<prefix>.document.md" and "<prefix>.document_structured.json"
// into outputDir. It reports whether the markdown file exists afterwards and
// never panics.
func (e *Extractor) Extract(inputPath, outputDir, prefix string) (ok bool) {
	if prefix == "" {
		prefix = storage.DefaultPrefix
	}
	log := e.logger.With("input", inputPath, "prefix", prefix)
	defer func() {
		if r := recover(); r != nil {
			log.Warn("fallback extraction panicked", "panic", r)
			ok = false
		}
	}()

	if _, err := os.Stat(inputPath); err != nil {
		log.Warn("fallback input unavailable", "error", err)
		return false
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		log.Warn("fallback output dir", "error", err)
		return false
	}

	text := e.readText(inputPath, log)

	mdPath := filepath.Join(outputDir, storage.ArtifactName(prefix, storage.KindDocument))
	if err := storage.WriteFileAtomic(mdPath, []byte(text)); err != nil {
		log.Warn("write fallback markdown", "error", err)
		return false
	}

	doc, err := json.MarshalIndent(Document{Source: inputPath, Text: text, Placeholder: true}, "", "  ")
	if err == nil {
		err = storage.WriteFileAtomic(filepath.Join(outputDir, storage.ArtifactName(prefix, storage.KindStructured)), doc)
	}
	if err != nil {
		log.Warn("write fallback structured document", "error", err)
	}

	_, err = os.Stat(mdPath)
	return err == nil
}

// readText returns the plain text of the input, or a bracketed note naming
// the file when it cannot be read.
func (e *Extractor) readText(path string, log *slog.Logger) string {
	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	defer cancel()

	name := filepath.Base(path)
	text, err := parser.PlainText(ctx, path, e.opts)
	switch {
	case errors.Is(err, parser.ErrUnsupported):
		return fmt.Sprintf("[%s placeholder: %s - no text extractor for this format]",
			strings.ToUpper(strings.TrimPrefix(parser.Ext(name), ".")), name)
	case err != nil:
		log.Warn("fallback read failed", "error", err)
		return fmt.Sprintf("[Error reading file: %v]", err)
	}
	return text
}
