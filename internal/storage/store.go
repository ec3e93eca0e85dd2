package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var (
	// ErrJobNotFound means a job has no record, no artifacts and no upload.
	ErrJobNotFound = errors.New("job not found")
	// ErrPathTraversal rejects identifiers that would escape the data root.
	ErrPathTraversal = errors.New("invalid path component")
)

// Bookkeeping files in a job output directory that are not artifacts.
const (
	ProgressFile         = "progress.json"
	ProcessingConfigFile = "processing_request.json"
	ConversionFile       = "conversion.json"
	WorkerLogFile        = "worker.log"
)

var internalFiles = map[string]bool{
	ProgressFile:         true,
	ProcessingConfigFile: true,
	ConversionFile:       true,
	WorkerLogFile:        true,
}

// Store keeps uploads, outputs and job records on disk.
//
// Directory layout:
//
//	<root>/uploads/<job_id>/<original filename>
//	<root>/outputs/<job_id>/<prefix>.<kind>
//	<root>/outputs/<job_id>/progress.json
//	<root>/outputs/<job_id>/processing_request.json
type Store struct {
	root string
}

func NewStore(root string) *Store {
	return &Store{root: strings.TrimSpace(root)}
}

func (s *Store) Root() string {
	return s.root
}

func (s *Store) uploadsDir() string { return filepath.Join(s.root, "uploads") }
func (s *Store) outputsDir() string { return filepath.Join(s.root, "outputs") }

// EnsureDirs creates the uploads and outputs directories.
func (s *Store) EnsureDirs() error {
	if s.root == "" {
		return fmt.Errorf("data root is empty")
	}
	for _, d := range []string{s.uploadsDir(), s.outputsDir()} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	return nil
}

// ValidateJobID rejects ids that are empty or contain path separators.
func ValidateJobID(jobID string) error {
	if !safeName(jobID) {
		return fmt.Errorf("%w: job id %q", ErrPathTraversal, jobID)
	}
	return nil
}

func safeName(name string) bool {
	return name != "" && name != "." && !strings.Contains(name, "..") &&
		!strings.ContainsAny(name, `/\`)
}

// UploadDir returns the upload directory of a job without creating it.
func (s *Store) UploadDir(jobID string) string {
	return filepath.Join(s.uploadsDir(), jobID)
}

// OutputDir returns the output directory of a job without creating it.
func (s *Store) OutputDir(jobID string) string {
	return filepath.Join(s.outputsDir(), jobID)
}

func (s *Store) ensureOutputDir(jobID string) (string, error) {
	if err := ValidateJobID(jobID); err != nil {
		return "", err
	}
	dir := s.OutputDir(jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	return dir, nil
}

// SaveUpload stores the source file of a job and returns its path.
func (s *Store) SaveUpload(jobID, filename string, r io.Reader) (string, error) {
	if err := ValidateJobID(jobID); err != nil {
		return "", err
	}
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if !safeName(name) {
		return "", fmt.Errorf("%w: filename %q", ErrPathTraversal, filename)
	}
	dir := s.UploadDir(jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close upload: %w", err)
	}
	return path, nil
}

// UploadedFile returns the path of the job's source file, or "" when none
// has been uploaded.
func (s *Store) UploadedFile(jobID string) string {
	if ValidateJobID(jobID) != nil {
		return ""
	}
	entries, err := os.ReadDir(s.UploadDir(jobID))
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if e.Type().IsRegular() {
			return filepath.Join(s.UploadDir(jobID), e.Name())
		}
	}
	return ""
}

// Prefix returns the artifact prefix of a job, derived from its upload.
func (s *Store) Prefix(jobID string) string {
	upload := s.UploadedFile(jobID)
	if upload == "" {
		return DefaultPrefix
	}
	return SanitizePrefix(filepath.Base(upload))
}

// ListArtifacts returns the artifact filenames of a job sorted by name.
// Bookkeeping and temporary files are left out.
func (s *Store) ListArtifacts(jobID string) []string {
	if ValidateJobID(jobID) != nil {
		return nil
	}
	entries, err := os.ReadDir(s.OutputDir(jobID))
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || internalFiles[name] || isTempFile(name) {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func isTempFile(name string) bool {
	return strings.Contains(name, ".tmp.")
}

// HasOutput reports whether the job output directory holds a file ending in
// one of the evidence suffixes.
func (s *Store) HasOutput(jobID string, evidence []string) bool {
	for _, name := range s.ListArtifacts(jobID) {
		for _, suffix := range evidence {
			if suffix != "" && strings.HasSuffix(name, suffix) {
				return true
			}
		}
	}
	return false
}

// ArtifactPath resolves an artifact filename inside the job output dir.
// It returns fs.ErrNotExist when the file is missing.
func (s *Store) ArtifactPath(jobID, filename string) (string, error) {
	if err := ValidateJobID(jobID); err != nil {
		return "", err
	}
	if !safeName(filename) {
		return "", fmt.Errorf("%w: filename %q", ErrPathTraversal, filename)
	}
	dir := s.OutputDir(jobID)
	path := filepath.Join(dir, filename)
	if rel, err := filepath.Rel(dir, path); err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: filename %q", ErrPathTraversal, filename)
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fs.ErrNotExist
	}
	return path, nil
}

// writeJSONAtomic writes v as indented JSON via a temp file and rename so
// readers never observe a partial record.
func writeJSONAtomic(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	return WriteFileAtomic(path, append(b, '\n'))
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(b)) == "" {
		return fmt.Errorf("%s is empty", filepath.Base(path))
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

// metadataPath finds the job's metadata record, accepting the legacy
// "*.meta.json" and bare "metadata.json" names.
func (s *Store) metadataPath(jobID string) string {
	entries, err := os.ReadDir(s.OutputDir(jobID))
	if err != nil {
		return ""
	}
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || isTempFile(name) {
			continue
		}
		if strings.HasSuffix(name, "."+KindMetadata) || strings.HasSuffix(name, ".meta.json") || name == KindMetadata {
			return filepath.Join(s.OutputDir(jobID), name)
		}
	}
	return ""
}

// ReadMetadata returns the stored record of a job, or nil when none exists.
func (s *Store) ReadMetadata(jobID string) (*JobMetadata, error) {
	if err := ValidateJobID(jobID); err != nil {
		return nil, err
	}
	path := s.metadataPath(jobID)
	if path == "" {
		return nil, nil
	}
	var meta JobMetadata
	if err := readJSON(path, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// WriteMetadata atomically replaces "<prefix>.metadata.json". created_at is
// stamped on the first write and carried over afterwards.
func (s *Store) WriteMetadata(meta *JobMetadata) error {
	if meta == nil {
		return fmt.Errorf("metadata is nil")
	}
	dir, err := s.ensureOutputDir(meta.JobID)
	if err != nil {
		return err
	}
	if meta.ArtifactPrefix == "" {
		meta.ArtifactPrefix = s.Prefix(meta.JobID)
	}
	if meta.CreatedAt == nil {
		if prev, err := s.ReadMetadata(meta.JobID); err == nil && prev != nil && prev.CreatedAt != nil {
			meta.CreatedAt = prev.CreatedAt
		} else {
			now := time.Now().UTC().Truncate(time.Second)
			meta.CreatedAt = &now
		}
	}
	if meta.Artifacts == nil {
		meta.Artifacts = []string{}
	}
	if meta.Stats == nil {
		meta.Stats = map[string]any{}
	}
	return writeJSONAtomic(filepath.Join(dir, ArtifactName(meta.ArtifactPrefix, KindMetadata)), meta)
}

// WriteMetadataDirect writes the record in place without the temp file
// dance. It is the last resort after WriteMetadata has failed.
func (s *Store) WriteMetadataDirect(meta *JobMetadata) error {
	dir, err := s.ensureOutputDir(meta.JobID)
	if err != nil {
		return err
	}
	prefix := meta.ArtifactPrefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, ArtifactName(prefix, KindMetadata)), b, 0o644)
}

// WriteProgress replaces the job's progress snapshot.
func (s *Store) WriteProgress(jobID string, p Progress) error {
	dir, err := s.ensureOutputDir(jobID)
	if err != nil {
		return err
	}
	return writeJSONAtomic(filepath.Join(dir, ProgressFile), p)
}

// ReadProgress returns the latest snapshot, or PendingProgress when none
// can be read.
func (s *Store) ReadProgress(jobID string) Progress {
	if ValidateJobID(jobID) != nil {
		return PendingProgress
	}
	var p Progress
	if err := readJSON(filepath.Join(s.OutputDir(jobID), ProgressFile), &p); err != nil {
		return PendingProgress
	}
	return p
}

// WriteProcessingConfig persists the resolved options for the worker.
func (s *Store) WriteProcessingConfig(jobID string, cfg *ProcessingConfig) error {
	dir, err := s.ensureOutputDir(jobID)
	if err != nil {
		return err
	}
	if cfg == nil {
		cfg = &ProcessingConfig{}
	}
	return writeJSONAtomic(filepath.Join(dir, ProcessingConfigFile), cfg)
}

// ReadProcessingConfig loads the persisted options. A missing file yields
// an empty config.
func (s *Store) ReadProcessingConfig(jobID string) (*ProcessingConfig, error) {
	if err := ValidateJobID(jobID); err != nil {
		return nil, err
	}
	var cfg ProcessingConfig
	err := readJSON(filepath.Join(s.OutputDir(jobID), ProcessingConfigFile), &cfg)
	if errors.Is(err, fs.ErrNotExist) {
		return &ProcessingConfig{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// WriteConversion records the worker's conversion outcome.
func (s *Store) WriteConversion(jobID string, rec ConversionRecord) error {
	dir, err := s.ensureOutputDir(jobID)
	if err != nil {
		return err
	}
	return writeJSONAtomic(filepath.Join(dir, ConversionFile), rec)
}

// ReadConversion returns the worker's conversion record, if any.
func (s *Store) ReadConversion(jobID string) (ConversionRecord, bool) {
	var rec ConversionRecord
	if ValidateJobID(jobID) != nil {
		return rec, false
	}
	if err := readJSON(filepath.Join(s.OutputDir(jobID), ConversionFile), &rec); err != nil {
		return ConversionRecord{}, false
	}
	return rec, true
}

// WriteManifest writes "<prefix>.manifest.json".
func (s *Store) WriteManifest(m *Manifest) error {
	dir, err := s.ensureOutputDir(m.JobID)
	if err != nil {
		return err
	}
	return writeJSONAtomic(filepath.Join(dir, ArtifactName(m.ArtifactPrefix, KindManifest)), m)
}

// WriteArtifact atomically writes raw bytes as "<prefix>.<kind>".
func (s *Store) WriteArtifact(jobID, prefix, kind string, data []byte) error {
	dir, err := s.ensureOutputDir(jobID)
	if err != nil {
		return err
	}
	return WriteFileAtomic(filepath.Join(dir, ArtifactName(prefix, kind)), data)
}

// WriteFileAtomic writes data to path through a sibling temp file.
func WriteFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

// ResetOutputs clears a job's output directory for a fresh attempt. The
// metadata record is kept so the next write can carry over created_at.
func (s *Store) ResetOutputs(jobID string) error {
	if err := ValidateJobID(jobID); err != nil {
		return err
	}
	keep := filepath.Base(s.metadataPath(jobID))
	entries, err := os.ReadDir(s.OutputDir(jobID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var errs []error
	for _, e := range entries {
		if e.Name() == keep {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.OutputDir(jobID), e.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CleanResult counts the entries removed by Clean.
type CleanResult struct {
	RemovedUploads int `json:"removed_uploads"`
	RemovedOutputs int `json:"removed_outputs"`
}

// Clean removes every upload and output. Entries that cannot be removed are
// reported through the returned error while the rest are still deleted.
func (s *Store) Clean() (CleanResult, error) {
	var res CleanResult
	var errs []error
	for _, d := range []string{s.uploadsDir(), s.outputsDir()} {
		entries, err := os.ReadDir(d)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, err)
			}
			continue
		}
		for _, e := range entries {
			if err := os.RemoveAll(filepath.Join(d, e.Name())); err != nil {
				errs = append(errs, err)
				continue
			}
			if d == s.uploadsDir() {
				res.RemovedUploads++
			} else {
				res.RemovedOutputs++
			}
		}
	}
	if err := s.EnsureDirs(); err != nil {
		errs = append(errs, err)
	}
	return res, errors.Join(errs...)
}

// Prune removes jobs whose upload and output directories were last modified
// before now-maxAge. skip protects jobs that are still in use.
func (s *Store) Prune(maxAge time.Duration, skip func(jobID string) bool) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	latest := map[string]time.Time{}
	for _, d := range []string{s.uploadsDir(), s.outputsDir()} {
		entries, err := os.ReadDir(d)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			if t, ok := latest[e.Name()]; !ok || info.ModTime().After(t) {
				latest[e.Name()] = info.ModTime()
			}
		}
	}

	removed := 0
	var errs []error
	for jobID, mod := range latest {
		if !mod.Before(cutoff) || (skip != nil && skip(jobID)) {
			continue
		}
		err := errors.Join(os.RemoveAll(s.UploadDir(jobID)), os.RemoveAll(s.OutputDir(jobID)))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
