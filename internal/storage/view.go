package storage

import "path/filepath"

// JobView is what callers see of a job: its reconciled record and the
// artifacts they may download.
type JobView struct {
	Metadata  JobMetadata `json:"metadata"`
	Artifacts []string    `json:"artifacts"`
}

// View reconciles the stored record with what is on disk. A job in flight
// is always reported as extracting, whatever its files say. Otherwise, when
// output files matching evidence exist but the record is missing or not
// terminal, the job is reported completed; the stored file is left
// untouched. A job with only an upload is reported as uploaded. Artifacts
// are hidden while the job is extracting.
func (s *Store) View(jobID string, evidence []string, inFlight bool) (*JobView, error) {
	if err := ValidateJobID(jobID); err != nil {
		return nil, err
	}
	// An unreadable record is treated like a missing one.
	meta, _ := s.ReadMetadata(jobID)
	artifacts := s.ListArtifacts(jobID)
	upload := s.UploadedFile(jobID)

	if meta == nil && len(artifacts) == 0 && upload == "" {
		return nil, ErrJobNotFound
	}

	filename := ""
	if meta != nil {
		filename = meta.Filename
	}
	if filename == "" && upload != "" {
		filename = filepath.Base(upload)
	}

	if inFlight {
		rec := JobMetadata{
			JobID:          jobID,
			Filename:       filename,
			Status:         StatusExtracting,
			ArtifactPrefix: s.Prefix(jobID),
			Artifacts:      []string{},
			Stats:          map[string]any{},
		}
		if meta != nil {
			rec.CreatedAt = meta.CreatedAt
			if meta.ArtifactPrefix != "" {
				rec.ArtifactPrefix = meta.ArtifactPrefix
			}
		}
		return &JobView{Metadata: rec, Artifacts: []string{}}, nil
	}

	if s.HasOutput(jobID, evidence) && (meta == nil || !meta.Status.Terminal()) {
		synth := &JobMetadata{
			JobID:          jobID,
			Filename:       filename,
			Status:         StatusCompleted,
			ArtifactPrefix: s.Prefix(jobID),
			Artifacts:      artifacts,
			Stats:          map[string]any{},
		}
		if meta != nil {
			if meta.Stats != nil {
				synth.Stats = meta.Stats
			}
			synth.CreatedAt = meta.CreatedAt
		}
		meta = synth
	}

	if meta == nil {
		meta = &JobMetadata{
			JobID:          jobID,
			Filename:       filename,
			Status:         StatusUploaded,
			ArtifactPrefix: s.Prefix(jobID),
			Artifacts:      artifacts,
			Stats:          map[string]any{},
		}
	}

	if meta.Status == StatusExtracting || artifacts == nil {
		artifacts = []string{}
	}
	return &JobView{Metadata: *meta, Artifacts: artifacts}, nil
}
