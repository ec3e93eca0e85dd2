package parser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestForFile(t *testing.T) {
	tests := []struct {
		filename string
		wantErr  bool
	}{
		{"a.txt", false},
		{"a.MD", false},
		{"a.markdown", false},
		{"a.csv", false},
		{"a.htm", false},
		{"a.pdf", false},
		{"a.docx", false},
		{"a.xlsx", false},
		{"a.pptx", true},
		{"a.png", true},
		{"noext", true},
	}
	for _, tt := range tests {
		_, err := ForFile(tt.filename, Options{})
		if (err != nil) != tt.wantErr {
			t.Errorf("ForFile(%q) err=%v, wantErr=%v", tt.filename, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrUnsupported) {
			t.Errorf("ForFile(%q) error should wrap ErrUnsupported, got %v", tt.filename, err)
		}
	}
}

func TestForFile_PDFOption(t *testing.T) {
	p, err := ForFile("x.pdf", Options{PDFFallbackPdftotext: true})
	if err != nil {
		t.Fatal(err)
	}
	if !p.(*PDFParser).FallbackPdftotext {
		t.Error("expected pdftotext fallback to be carried into the parser")
	}
}

func TestIsAllowedUpload(t *testing.T) {
	for _, name := range []string{"a.pdf", "b.PPTX", "c.jpeg", "d.tif", "e.Markdown"} {
		if !IsAllowedUpload(name) {
			t.Errorf("expected %q to be allowed", name)
		}
	}
	for _, name := range []string{"a.exe", "b", "c.zip", "d.doc"} {
		if IsAllowedUpload(name) {
			t.Errorf("expected %q to be rejected", name)
		}
	}
}

func TestCSVParser_Batches(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("name,qty\n")
	for i := 0; i < 25; i++ {
		sb.WriteString("item,1\n")
	}
	tree, err := (&CSVParser{}).Parse(strings.NewReader(sb.String()), "inv.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tree.Children) != 2 {
		t.Fatalf("expected 2 row batches, got %d", len(tree.Children))
	}
	if tree.Children[0].Title != "Rows 2-21" || tree.Children[1].Title != "Rows 22-26" {
		t.Errorf("unexpected batch titles %q, %q", tree.Children[0].Title, tree.Children[1].Title)
	}
	if !strings.HasPrefix(tree.Children[0].Text, "| name | qty |\n| --- | --- |\n") {
		t.Errorf("expected table header, got %q", tree.Children[0].Text)
	}
}

func TestCSVParser_HeaderOnly(t *testing.T) {
	tree, err := (&CSVParser{}).Parse(strings.NewReader("a,b\n"), "h.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tree.Children) != 1 || tree.Children[0].Text != "| a | b |\n| --- | --- |" {
		t.Errorf("unexpected tree %+v", tree.Children)
	}
}

func TestMarkdownTable_PadsAndEscapes(t *testing.T) {
	got := markdownTable([]string{"k"}, [][]string{{"a|b", "extra"}})
	want := "| k |  |\n| --- | --- |\n| a\\|b | extra |"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestHTMLParser_Headings(t *testing.T) {
	input := `<html><head><title>Guide</title><style>p{}</style></head><body>
<nav>skip me</nav>
<p>Lead.</p>
<h1>Install</h1><p>Run   the
installer.</p>
<h2>Linux</h2><ul><li>apt</li><li>rpm</li></ul>
<script>var x = 1;</script>
</body></html>`
	tree, err := (&HTMLParser{}).Parse(strings.NewReader(input), "guide.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tree.Title != "Guide" {
		t.Errorf("expected <title> to win, got %q", tree.Title)
	}
	if len(tree.Children) != 2 {
		t.Fatalf("expected lead node plus h1, got %d", len(tree.Children))
	}
	if tree.Children[0].Text != "Lead." {
		t.Errorf("unexpected lead %q", tree.Children[0].Text)
	}
	h1 := tree.Children[1]
	if h1.Title != "Install" || h1.Text != "Run the installer." {
		t.Errorf("unexpected h1 %+v", h1)
	}
	if len(h1.Children) != 1 || h1.Children[0].Text != "apt\n\nrpm" {
		t.Errorf("unexpected h2 children %+v", h1.Children)
	}
	md := tree.Markdown()
	if strings.Contains(md, "skip me") || strings.Contains(md, "var x") {
		t.Errorf("navigation or script leaked into markdown: %q", md)
	}
}

func TestPlainText_ReadsTextFormats(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.md")
	if err := os.WriteFile(path, []byte("# H\n\nbody"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := PlainText(context.Background(), path, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "# H\n\nbody" {
		t.Errorf("unexpected text %q", got)
	}
}

func TestPlainText_HTMLDropsMarkup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.html")
	if err := os.WriteFile(path, []byte("<body><h1>T</h1><p>x</p></body>"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := PlainText(context.Background(), path, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "T\n\nx" {
		t.Errorf("unexpected text %q", got)
	}
}

func TestPlainText_Unsupported(t *testing.T) {
	_, err := PlainText(context.Background(), "/nope/slides.pptx", Options{})
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}
