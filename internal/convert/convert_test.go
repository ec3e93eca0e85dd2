package convert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/dgallion1/docingest/internal/doctree"
	"github.com/dgallion1/docingest/internal/parser"
)

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConvert_MarkdownKeepsSource(t *testing.T) {
	path := writeInput(t, "notes.md", "# Intro\r\n\r\nFirst.\r\n\r\n## Part 2\r\n\r\nSecond.")
	var stages []string
	res, err := New(parser.Options{}, nil).Convert(context.Background(), path, func(stage string, percent int) {
		stages = append(stages, stage)
	})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	want := "# Intro\n\nFirst.\n\n## Part 2\n\nSecond.\n"
	if res.Markdown != want {
		t.Errorf("expected %q, got %q", want, res.Markdown)
	}
	tree, ok := res.Structured.(*doctree.DocTree)
	if !ok || len(tree.Children) != 1 || tree.Children[0].Title != "Intro" {
		t.Errorf("unexpected structured tree %+v", res.Structured)
	}
	wantStages := []string{StageLoading, StageConverting, StageConverted, StageGenerating}
	if !reflect.DeepEqual(stages, wantStages) {
		t.Errorf("stages = %v, want %v", stages, wantStages)
	}
	if res.Placeholder {
		t.Error("unexpected placeholder")
	}
}

func TestConvert_TextRendersParagraphs(t *testing.T) {
	path := writeInput(t, "a.txt", "one\n\ntwo")
	res, err := New(parser.Options{}, nil).Convert(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if res.Markdown != "one\n\ntwo\n" {
		t.Errorf("unexpected markdown %q", res.Markdown)
	}
}

func TestConvert_CSVBecomesTables(t *testing.T) {
	path := writeInput(t, "t.csv", "a,b\n1,2\n")
	res, err := New(parser.Options{}, nil).Convert(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !strings.Contains(res.Markdown, "# Rows 2-2") || !strings.Contains(res.Markdown, "| 1 | 2 |") {
		t.Errorf("unexpected markdown %q", res.Markdown)
	}
}

func TestConvert_HTML(t *testing.T) {
	path := writeInput(t, "page.html", "<html><body><h1>Title</h1><p>Hello <b>world</b>.</p></body></html>")
	res, err := New(parser.Options{}, nil).Convert(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !strings.Contains(res.Markdown, "# Title") || !strings.Contains(res.Markdown, "**world**") {
		t.Errorf("unexpected markdown %q", res.Markdown)
	}
	tree, ok := res.Structured.(*doctree.DocTree)
	if !ok || len(tree.Children) != 1 || tree.Children[0].Text != "Hello world ." {
		t.Errorf("unexpected tree %+v", tree)
	}
}

func TestConvert_EmptyTextIsPlaceholder(t *testing.T) {
	path := writeInput(t, "blank.txt", "\n\n")
	res, err := New(parser.Options{}, nil).Convert(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !res.Placeholder || !strings.Contains(res.Markdown, "blank.txt") {
		t.Errorf("expected placeholder result, got %+v", res)
	}
}

func TestConvert_UnsupportedFormats(t *testing.T) {
	for _, name := range []string{"deck.pptx", "scan.png", "bin.exe"} {
		path := writeInput(t, name, "x")
		_, err := New(parser.Options{}, nil).Convert(context.Background(), path, nil)
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("%s: expected ErrUnsupportedFormat, got %v", name, err)
		}
	}
}

func TestConvert_MissingInput(t *testing.T) {
	_, err := New(parser.Options{}, nil).Convert(context.Background(), filepath.Join(t.TempDir(), "gone.md"), nil)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestConvert_CanceledContext(t *testing.T) {
	path := writeInput(t, "a.md", "# x")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(parser.Options{}, nil).Convert(ctx, path, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
