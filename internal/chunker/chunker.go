package chunker

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config controls chunking behavior.
type Config struct {
	TargetTokens  int `json:"target_tokens"`  // Target window size in tokens.
	OverlapTokens int `json:"overlap_tokens"` // Overlap carried into the next window.
}

// DefaultConfig returns the service defaults.
func DefaultConfig() Config {
	return Config{
		TargetTokens:  1000,
		OverlapTokens: 120,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TargetTokens <= 0 {
		c.TargetTokens = d.TargetTokens
	}
	if c.OverlapTokens < 0 {
		c.OverlapTokens = 0
	}
	return c
}

// Chunk is one line of the chunks JSONL stream.
type Chunk struct {
	ID   string    `json:"id"`
	Text string    `json:"text"`
	Meta ChunkMeta `json:"meta"`
}

// ChunkMeta identifies where a chunk came from.
type ChunkMeta struct {
	DocID   string `json:"doc_id"`
	Section string `json:"section"`
}

// Writer serializes windows as JSONL chunk records with dense ids.
type Writer struct {
	enc   *json.Encoder
	docID string
	count int
}

// NewWriter returns a Writer emitting chunks for docID to w.
func NewWriter(w io.Writer, docID string) *Writer {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Writer{enc: enc, docID: docID}
}

// Write emits one window. Windows that are blank after trimming are skipped
// and do not consume an index.
func (w *Writer) Write(section, window string) (bool, error) {
	text := strings.TrimSpace(window)
	if text == "" {
		return false, nil
	}
	c := Chunk{
		ID:   w.docID + "_" + strconv.Itoa(w.count),
		Text: text,
		Meta: ChunkMeta{DocID: w.docID, Section: section},
	}
	if err := w.enc.Encode(c); err != nil {
		return false, fmt.Errorf("encode chunk %s: %w", c.ID, err)
	}
	w.count++
	return true, nil
}

// Count returns the number of chunks emitted so far.
func (w *Writer) Count() int {
	return w.count
}

// WriteChunks splits markdown into sections and windows and writes them to w.
// Non-blank input that yields no section windows is re-windowed as a single
// untitled section. Returns the number of chunks written.
func WriteChunks(w io.Writer, markdown, docID string, cfg Config) (int, error) {
	cfg = cfg.withDefaults()
	cw := NewWriter(w, docID)

	for _, sec := range SplitSections(markdown) {
		for _, win := range SplitWindows(sec.Text, cfg.TargetTokens, cfg.OverlapTokens) {
			if _, err := cw.Write(sec.PathString(), win); err != nil {
				return cw.Count(), err
			}
		}
	}

	if cw.Count() == 0 && strings.TrimSpace(markdown) != "" {
		for _, win := range SplitWindows(markdown, cfg.TargetTokens, cfg.OverlapTokens) {
			if _, err := cw.Write("", win); err != nil {
				return cw.Count(), err
			}
		}
	}
	return cw.Count(), nil
}

// GenerateFile reads the markdown at mdPath and writes the chunk stream to
// outPath, replacing it atomically. A missing markdown file yields zero
// chunks and no error.
func GenerateFile(mdPath, outPath, docID string, cfg Config) (int, error) {
	src, err := os.ReadFile(mdPath)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read markdown: %w", err)
	}

	dir := filepath.Dir(outPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create chunk dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(outPath)+".tmp.*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	bw := bufio.NewWriter(tmp)
	n, err := WriteChunks(bw, strings.ToValidUTF8(string(src), "\uFFFD"), docID, cfg)
	if err == nil {
		err = bw.Flush()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("write chunks: %w", err)
	}
	if err := os.Rename(tmpName, outPath); err != nil {
		return 0, fmt.Errorf("rename chunks file: %w", err)
	}
	return n, nil
}
