package parser

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docingest/internal/doctree"
)

// ErrUnsupported is returned for file types no parser handles.
var ErrUnsupported = errors.New("unsupported file extension")

// Parser converts raw document bytes into a DocTree.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.DocTree, error)
}

// Options tunes parser construction.
type Options struct {
	// PDFFallbackPdftotext retries PDF text extraction with the pdftotext
	// binary when the Go reader fails.
	PDFFallbackPdftotext bool
}

// UploadExtensions lists the file types accepted for upload. Some of them
// (presentations, images) have no parser and only go through fallback
// extraction.
var UploadExtensions = map[string]bool{
	".pdf":      true,
	".docx":     true,
	".pptx":     true,
	".xlsx":     true,
	".html":     true,
	".htm":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".txt":      true,
	".png":      true,
	".tiff":     true,
	".tif":      true,
	".jpg":      true,
	".jpeg":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := Ext(filename)
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.PDFFallbackPdftotext}, nil
	case ".docx":
		return &DOCXParser{}, nil
	case ".xlsx":
		return &XLSXParser{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, ext)
	}
}

// IsAllowedUpload checks if a file extension is accepted for upload.
func IsAllowedUpload(filename string) bool {
	return UploadExtensions[Ext(filename)]
}

// Ext returns the lower-cased file extension.
func Ext(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// Title derives a document title from a filename by dropping its extension.
func Title(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
