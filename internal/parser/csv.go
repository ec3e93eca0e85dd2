package parser

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/dgallion1/docingest/internal/doctree"
)

// csvBatchSize bounds rows per section so large sheets window cleanly.
const csvBatchSize = 20

// CSVParser renders CSV files as markdown tables, one section per row batch.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	tree := &doctree.DocTree{Title: Title(filename), Format: "csv"}
	if len(records) == 0 {
		return tree, nil
	}

	header, data := records[0], records[1:]
	if len(data) == 0 {
		tree.Children = []*doctree.DocNode{{Text: markdownTable(header, nil)}}
		return tree, nil
	}
	for i := 0; i < len(data); i += csvBatchSize {
		end := min(i+csvBatchSize, len(data))
		tree.Children = append(tree.Children, &doctree.DocNode{
			Title: fmt.Sprintf("Rows %d-%d", i+2, end+1), // 1-indexed, header is row 1
			Text:  markdownTable(header, data[i:end]),
		})
	}
	return tree, nil
}
