package parser

import (
	"fmt"
	"io"

	"github.com/dgallion1/docingest/internal/doctree"
	"github.com/xuri/excelize/v2"
)

// XLSXParser renders each worksheet as a markdown table section.
type XLSXParser struct{}

func (p *XLSXParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	tree := &doctree.DocTree{Title: Title(filename), Format: "xlsx"}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		rows = trimEmptyRows(rows)
		if len(rows) == 0 {
			continue
		}
		tree.Children = append(tree.Children, &doctree.DocNode{
			Title: sheet,
			Text:  markdownTable(rows[0], rows[1:]),
		})
	}
	return tree, nil
}

func trimEmptyRows(rows [][]string) [][]string {
	out := rows[:0]
	for _, r := range rows {
		for _, c := range r {
			if c != "" {
				out = append(out, r)
				break
			}
		}
	}
	return out
}
