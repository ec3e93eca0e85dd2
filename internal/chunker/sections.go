package chunker

import (
	"regexp"
	"strings"
)

var headerRe = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

// Section is a header-scoped region of a markdown document.
type Section struct {
	Path []string // Header titles, outermost first.
	Text string   // Section markdown including its heading line.
}

// PathString renders the header path as "A > B > C".
func (s Section) PathString() string {
	return strings.Join(s.Path, " > ")
}

type heading struct {
	level int
	title string
}

// SplitSections partitions markdown into sections by ATX headers.
// A new header closes every open section at the same or deeper level.
// Whitespace-only sections are dropped.
func SplitSections(markdown string) []Section {
	var (
		sections []Section
		stack    []heading
		buf      []string
	)

	flush := func() {
		if len(buf) == 0 {
			return
		}
		text := strings.TrimSpace(strings.Join(buf, "\n"))
		buf = buf[:0]
		if text == "" {
			return
		}
		path := make([]string, len(stack))
		for i, h := range stack {
			path[i] = h.title
		}
		sections = append(sections, Section{Path: path, Text: text})
	}

	for _, line := range strings.Split(markdown, "\n") {
		m := headerRe.FindStringSubmatch(line)
		if m == nil {
			buf = append(buf, line)
			continue
		}
		flush()
		level := len(m[1])
		for len(stack) > 0 && stack[len(stack)-1].level >= level {
			stack = stack[:len(stack)-1]
		}
		stack = append(stack, heading{level: level, title: strings.TrimSpace(m[2])})
		buf = append(buf, line)
	}
	flush()

	return sections
}
