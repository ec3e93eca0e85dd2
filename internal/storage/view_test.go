package storage

import (
	"errors"
	"strings"
	"testing"
)

var testEvidence = []string{".document.md", ".document_structured.json"}

func TestView_NotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.View("ghost", testEvidence, false); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestView_UploadOnly(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.SaveUpload("u", "Guide v2.pdf", strings.NewReader("x")); err != nil {
		t.Fatal(err)
	}
	v, err := s.View("u", testEvidence, false)
	if err != nil {
		t.Fatal(err)
	}
	if v.Metadata.Status != StatusUploaded || v.Metadata.Filename != "Guide v2.pdf" || v.Metadata.ArtifactPrefix != "Guide_v2" {
		t.Errorf("unexpected synthesized record %+v", v.Metadata)
	}
	if v.Artifacts == nil || len(v.Artifacts) != 0 {
		t.Errorf("expected empty artifact list, got %v", v.Artifacts)
	}
}

func TestView_ExtractingHidesArtifacts(t *testing.T) {
	s := newTestStore(t)
	if err := s.WriteMetadata(&JobMetadata{JobID: "e", ArtifactPrefix: "r", Status: StatusExtracting}); err != nil {
		t.Fatal(err)
	}
	v, err := s.View("e", testEvidence, false)
	if err != nil {
		t.Fatal(err)
	}
	if v.Metadata.Status != StatusExtracting {
		t.Errorf("expected extracting, got %s", v.Metadata.Status)
	}
	if len(v.Artifacts) != 0 {
		t.Errorf("artifacts must be hidden while extracting, got %v", v.Artifacts)
	}
}

func TestView_SynthesizesCompletedFromOutput(t *testing.T) {
	s := newTestStore(t)
	if err := s.WriteMetadata(&JobMetadata{
		JobID: "c", Filename: "r.pdf", ArtifactPrefix: "r", Status: StatusExtracting,
		Stats: map[string]any{"page_count": 4},
	}); err != nil {
		t.Fatal(err)
	}
	writeOutput(t, s, "c", "r.document.md", "# r")

	v, err := s.View("c", testEvidence, false)
	if err != nil {
		t.Fatal(err)
	}
	if v.Metadata.Status != StatusCompleted {
		t.Fatalf("expected synthesized completed, got %s", v.Metadata.Status)
	}
	if v.Metadata.Filename != "r.pdf" || v.Metadata.Stats["page_count"] != float64(4) {
		t.Errorf("expected filename and stats carried over, got %+v", v.Metadata)
	}
	if len(v.Artifacts) != 2 {
		t.Errorf("expected metadata and document artifacts, got %v", v.Artifacts)
	}

	// The stored record is not rewritten.
	stored, _ := s.ReadMetadata("c")
	if stored.Status != StatusExtracting {
		t.Errorf("stored record mutated to %s", stored.Status)
	}
}

func TestView_TerminalRecordWins(t *testing.T) {
	s := newTestStore(t)
	if err := s.WriteMetadata(&JobMetadata{JobID: "f", ArtifactPrefix: "r", Status: StatusFailed, Error: "bad"}); err != nil {
		t.Fatal(err)
	}
	writeOutput(t, s, "f", "r.document.md", "# r")
	v, err := s.View("f", testEvidence, false)
	if err != nil {
		t.Fatal(err)
	}
	if v.Metadata.Status != StatusFailed || v.Metadata.Error != "bad" {
		t.Errorf("expected stored failed record, got %+v", v.Metadata)
	}
}

func TestView_CustomEvidence(t *testing.T) {
	s := newTestStore(t)
	writeOutput(t, s, "x", "r.chunks.jsonl", "{}")
	v, err := s.View("x", []string{".chunks.jsonl"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if v.Metadata.Status != StatusCompleted {
		t.Errorf("expected chunks to count as evidence, got %s", v.Metadata.Status)
	}
	v, err = s.View("x", testEvidence, false)
	if err != nil {
		t.Fatal(err)
	}
	if v.Metadata.Status != StatusUploaded {
		t.Errorf("expected uploaded without default evidence, got %s", v.Metadata.Status)
	}
}

func TestView_InFlightIgnoresEvidence(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.SaveUpload("i", "r.pdf", strings.NewReader("x")); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteMetadata(&JobMetadata{JobID: "i", Filename: "r.pdf", ArtifactPrefix: "r", Status: StatusExtracting}); err != nil {
		t.Fatal(err)
	}
	writeOutput(t, s, "i", "r.document.md", "# r")

	v, err := s.View("i", testEvidence, true)
	if err != nil {
		t.Fatal(err)
	}
	if v.Metadata.Status != StatusExtracting {
		t.Errorf("expected extracting while in flight, got %s", v.Metadata.Status)
	}
	if len(v.Artifacts) != 0 || len(v.Metadata.Artifacts) != 0 {
		t.Errorf("artifacts must be hidden while in flight, got %v / %v", v.Artifacts, v.Metadata.Artifacts)
	}
}

func TestView_InFlightMasksStaleTerminalRecord(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.SaveUpload("t", "r.pdf", strings.NewReader("x")); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteMetadata(&JobMetadata{JobID: "t", ArtifactPrefix: "r", Status: StatusFailed, Error: "boom"}); err != nil {
		t.Fatal(err)
	}
	v, err := s.View("t", testEvidence, true)
	if err != nil {
		t.Fatal(err)
	}
	if v.Metadata.Status != StatusExtracting || v.Metadata.Error != "" {
		t.Errorf("expected extracting without error while in flight, got %+v", v.Metadata)
	}
	if v.Metadata.Filename != "r.pdf" {
		t.Errorf("expected filename from upload, got %q", v.Metadata.Filename)
	}
}
