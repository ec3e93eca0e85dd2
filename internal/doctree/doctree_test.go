package doctree

import (
	"strings"
	"testing"
)

func TestMarkdown_NestedHeadings(t *testing.T) {
	tree := &DocTree{
		Title: "ignored",
		Children: []*DocNode{
			{
				Title: "Chapter 1",
				Text:  "Intro.",
				Children: []*DocNode{
					{Title: "Section 1.1", Text: "Body."},
				},
			},
			{Text: "Loose paragraph."},
		},
	}

	want := "# Chapter 1\n\nIntro.\n\n## Section 1.1\n\nBody.\n\nLoose paragraph.\n"
	if got := tree.Markdown(); got != want {
		t.Errorf("unexpected markdown:\n got %q\nwant %q", got, want)
	}
}

func TestMarkdown_DepthCappedAtSix(t *testing.T) {
	node := &DocNode{Title: "L7", Text: "deep"}
	for i := 6; i >= 1; i-- {
		node = &DocNode{Title: "L" + string(rune('0'+i)), Children: []*DocNode{node}}
	}
	md := (&DocTree{Children: []*DocNode{node}}).Markdown()
	if !strings.Contains(md, "###### L7") {
		t.Errorf("expected level-7 node rendered at level 6, got %q", md)
	}
}

func TestMarkdown_MultilineTitleFlattened(t *testing.T) {
	md := (&DocTree{Children: []*DocNode{{Title: "Two\nLines", Text: "x"}}}).Markdown()
	if !strings.HasPrefix(md, "# Two Lines\n") {
		t.Errorf("expected single-line heading, got %q", md)
	}
}

func TestPlainText(t *testing.T) {
	tree := &DocTree{Children: []*DocNode{
		{Title: "A", Text: "alpha", Children: []*DocNode{{Text: "beta"}}},
	}}
	if got := tree.PlainText(); got != "A\n\nalpha\n\nbeta" {
		t.Errorf("unexpected plain text %q", got)
	}
}
