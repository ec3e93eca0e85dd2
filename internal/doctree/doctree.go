package doctree

import "strings"

// DocTree is the root of a parsed document. It doubles as the structured
// representation written next to the converted markdown.
type DocTree struct {
	Title    string     `json:"title"`              // Document title (from metadata or filename)
	Format   string     `json:"format,omitempty"`   // Source format, e.g. "pdf"
	Pages    int        `json:"pages,omitempty"`    // Page count when the format has pages
	Children []*DocNode `json:"children,omitempty"` // Top-level sections
}

// DocNode is a recursive section in the document tree.
type DocNode struct {
	Title    string     `json:"title,omitempty"`    // Section heading (empty for leaf text)
	Text     string     `json:"text,omitempty"`     // Text content of this node
	Page     int        `json:"page,omitempty"`     // Source page (0 if N/A)
	Children []*DocNode `json:"children,omitempty"` // Subsections
}

// Markdown renders the tree as ATX-headed markdown. Node depth maps to header
// level, capped at 6. The tree title is not rendered.
func (t *DocTree) Markdown() string {
	var sb strings.Builder
	for _, n := range t.Children {
		writeNode(&sb, n, 1)
	}
	return strings.TrimSpace(sb.String()) + "\n"
}

func writeNode(sb *strings.Builder, n *DocNode, depth int) {
	if n.Title != "" {
		sb.WriteString(strings.Repeat("#", min(depth, 6)))
		sb.WriteByte(' ')
		sb.WriteString(oneLine(n.Title))
		sb.WriteString("\n\n")
	}
	if t := strings.TrimSpace(n.Text); t != "" {
		sb.WriteString(t)
		sb.WriteString("\n\n")
	}
	next := depth
	if n.Title != "" {
		next++
	}
	for _, c := range n.Children {
		writeNode(sb, c, next)
	}
}

// PlainText concatenates every node's text, one block per node.
func (t *DocTree) PlainText() string {
	var parts []string
	var walk func(nodes []*DocNode)
	walk = func(nodes []*DocNode) {
		for _, n := range nodes {
			if n.Title != "" {
				parts = append(parts, n.Title)
			}
			if s := strings.TrimSpace(n.Text); s != "" {
				parts = append(parts, s)
			}
			walk(n.Children)
		}
	}
	walk(t.Children)
	return strings.Join(parts, "\n\n")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
