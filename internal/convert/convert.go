// Package convert turns an uploaded document into normalized markdown plus
// a structured tree.
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/dgallion1/docingest/internal/parser"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// ErrUnsupportedFormat is returned for accepted uploads this engine cannot
// convert, such as presentations and images.
var ErrUnsupportedFormat = errors.New("unsupported format for conversion")

// ProgressFunc receives stage milestones during a conversion.
type ProgressFunc func(stage string, percent int)

// Progress milestones reported by Convert.
const (
	StageLoading    = "Loading document"
	StageConverting = "Converting document"
	StageConverted  = "Document converted"
	StageGenerating = "Generating markdown"
)

// Result is the output of a successful conversion.
type Result struct {
	Markdown    string
	Structured  any
	PageCount   int
	Placeholder bool
	Warnings    []string
}

// Engine converts documents using the per-format parsers.
type Engine struct {
	opts   parser.Options
	html   *converter.Converter
	logger *slog.Logger
}

func New(opts parser.Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		opts: opts,
		html: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		logger: logger,
	}
}

// Convert reads inputPath and produces markdown and a structured tree.
// progress may be nil.
func (e *Engine) Convert(ctx context.Context, inputPath string, progress ProgressFunc) (*Result, error) {
	report := func(stage string, percent int) {
		if progress != nil {
			progress(stage, percent)
		}
	}

	report(StageLoading, 10)
	src, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filename := filepath.Base(inputPath)
	ext := parser.Ext(filename)
	if !parser.IsAllowedUpload(filename) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	p, err := parser.ForFile(filename, e.opts)
	if errors.Is(err, parser.ErrUnsupported) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}

	report(StageConverting, 25)
	tree, err := p.Parse(bytes.NewReader(src), filename)
	if err != nil {
		return nil, fmt.Errorf("convert %s: %w", filename, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report(StageConverted, 60)

	res := &Result{Structured: tree, PageCount: tree.Pages}
	report(StageGenerating, 75)
	switch ext {
	case ".md", ".markdown":
		res.Markdown = normalizeNewlines(string(src))
	case ".html", ".htm":
		md, err := e.html.ConvertString(string(src))
		if err != nil {
			e.logger.Warn("html to markdown failed, rendering tree", "file", filename, "error", err)
			res.Warnings = append(res.Warnings, "html conversion: "+err.Error())
			md = tree.Markdown()
		}
		res.Markdown = md
	default:
		res.Markdown = tree.Markdown()
	}

	if ext == ".pdf" {
		if n, err := api.PageCountFile(inputPath); err == nil {
			res.PageCount = n
		} else {
			e.logger.Debug("pdf page count unavailable", "file", filename, "error", err)
		}
	}

	if strings.TrimSpace(res.Markdown) == "" {
		res.Placeholder = true
		res.Markdown = placeholderText(filename)
		res.Warnings = append(res.Warnings, "no extractable text")
	}
	res.Markdown = strings.TrimRight(res.Markdown, "\n") + "\n"
	return res, nil
}

func placeholderText(filename string) string {
	return fmt.Sprintf("[No extractable text in %s]", filename)
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

