package storage

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is a job's position in the extraction lifecycle.
type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusExtracting Status = "extracting"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether s ends an extraction attempt.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Artifact kinds, appended to the sanitized prefix as "<prefix>.<kind>".
const (
	KindDocument   = "document.md"
	KindStructured = "document_structured.json"
	KindChunks     = "chunks.jsonl"
	KindManifest   = "manifest.json"
	KindMetadata   = "metadata.json"
)

// ArtifactName joins a prefix and an artifact kind.
func ArtifactName(prefix, kind string) string {
	return prefix + "." + kind
}

// JobMetadata is the authoritative outcome record of a job.
type JobMetadata struct {
	JobID          string         `json:"job_id"`
	Filename       string         `json:"filename"`
	Status         Status         `json:"status"`
	ArtifactPrefix string         `json:"artifact_prefix"`
	Artifacts      []string       `json:"artifacts"`
	Stats          map[string]any `json:"stats"`
	Error          string         `json:"error,omitempty"`
	CreatedAt      *time.Time     `json:"created_at,omitempty"`
}

// Progress is the latest stage snapshot of an extraction attempt.
type Progress struct {
	Stage   string `json:"stage"`
	Percent int    `json:"percent"`
}

// PendingProgress is reported when no snapshot has been written.
var PendingProgress = Progress{Stage: "pending", Percent: 0}

// ChunkingParams records the windowing budgets used for a job.
type ChunkingParams struct {
	TargetTokens  int `json:"target_tokens"`
	OverlapTokens int `json:"overlap_tokens"`
}

// Manifest summarizes the artifacts produced for a job.
type Manifest struct {
	JobID          string         `json:"job_id"`
	SourceFile     string         `json:"source_file"`
	ArtifactPrefix string         `json:"artifact_prefix"`
	Artifacts      []string       `json:"artifacts"`
	NumChunks      int            `json:"num_chunks"`
	Chunking       ChunkingParams `json:"chunking"`
}

// ConversionRecord is left by the worker process for the supervisor.
type ConversionRecord struct {
	Placeholder bool     `json:"placeholder"`
	PageCount   int      `json:"page_count,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
	// Error is set when conversion failed; the supervisor records it if the
	// job ends up failed.
	Error string `json:"error,omitempty"`
}

// ProcessingConfig carries per-job extraction options. Keys it does not
// know about are kept in Extra and written back unchanged.
type ProcessingConfig struct {
	TargetTokens  *int
	OverlapTokens *int
	DoOCR         *bool
	Extra         map[string]json.RawMessage
}

const (
	keyTargetTokens  = "target_tokens"
	keyOverlapTokens = "overlap_tokens"
	keyDoOCR         = "do_ocr"
)

func (c ProcessingConfig) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(c.Extra)+3)
	for k, v := range c.Extra {
		m[k] = v
	}
	if c.TargetTokens != nil {
		m[keyTargetTokens] = *c.TargetTokens
	}
	if c.OverlapTokens != nil {
		m[keyOverlapTokens] = *c.OverlapTokens
	}
	if c.DoOCR != nil {
		m[keyDoOCR] = *c.DoOCR
	}
	return json.Marshal(m)
}

func (c *ProcessingConfig) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = ProcessingConfig{}
	if v, ok := raw[keyTargetTokens]; ok {
		delete(raw, keyTargetTokens)
		if err := decodeOptional(v, &c.TargetTokens); err != nil {
			return fmt.Errorf("%s: %w", keyTargetTokens, err)
		}
	}
	if v, ok := raw[keyOverlapTokens]; ok {
		delete(raw, keyOverlapTokens)
		if err := decodeOptional(v, &c.OverlapTokens); err != nil {
			return fmt.Errorf("%s: %w", keyOverlapTokens, err)
		}
	}
	if v, ok := raw[keyDoOCR]; ok {
		delete(raw, keyDoOCR)
		if err := decodeOptional(v, &c.DoOCR); err != nil {
			return fmt.Errorf("%s: %w", keyDoOCR, err)
		}
	}
	if len(raw) > 0 {
		c.Extra = raw
	}
	return nil
}

// decodeOptional leaves *dst nil for a JSON null.
func decodeOptional[T any](data json.RawMessage, dst **T) error {
	if string(data) == "null" {
		return nil
	}
	v := new(T)
	if err := json.Unmarshal(data, v); err != nil {
		return err
	}
	*dst = v
	return nil
}

// Resolve overlays c onto the given defaults, returning the effective
// chunking budgets. An overlap that is not below the target is dropped.
func (c *ProcessingConfig) Resolve(defaults ChunkingParams) ChunkingParams {
	out := defaults
	if c == nil {
		return out
	}
	if c.TargetTokens != nil && *c.TargetTokens > 0 {
		out.TargetTokens = *c.TargetTokens
	}
	if c.OverlapTokens != nil && *c.OverlapTokens >= 0 {
		out.OverlapTokens = *c.OverlapTokens
	}
	if out.OverlapTokens >= out.TargetTokens {
		out.OverlapTokens = 0
	}
	return out
}
