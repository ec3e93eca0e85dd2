package parser

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// PlainText extracts the raw text of the file at path without building a
// heading tree. It is the last-resort reader used when full conversion fails.
func PlainText(ctx context.Context, path string, opts Options) (string, error) {
	switch Ext(path) {
	case ".pdf":
		return PDFText(ctx, path, opts.PDFFallbackPdftotext)
	case ".docx":
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		return DOCXText(f)
	case ".html", ".htm":
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		tree, err := (&HTMLParser{}).Parse(f, path)
		if err != nil {
			return "", err
		}
		return tree.PlainText(), nil
	case ".md", ".markdown", ".txt", ".csv":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	case ".xlsx":
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		tree, err := (&XLSXParser{}).Parse(f, path)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(tree.Markdown()), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, Ext(path))
	}
}
