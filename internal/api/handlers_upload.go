package api

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docingest/internal/parser"
	"github.com/dgallion1/docingest/internal/pipeline"
	"github.com/google/uuid"
)

// handleUpload stores a multipart file under a fresh job id.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1<<20)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, "file too large", http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	filename := sanitizeFilename(header.Filename)
	if !parser.IsAllowedUpload(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}
	if header.Size > s.cfg.MaxUploadBytes {
		jsonError(w, "file too large", http.StatusRequestEntityTooLarge)
		return
	}

	jobID := uuid.NewString()
	if _, err := s.store.SaveUpload(jobID, filename, file); err != nil {
		s.log.Error("save upload failed", "job_id", jobID, "error", err)
		jsonError(w, "failed to save upload", http.StatusInternalServerError)
		return
	}

	s.log.Info("upload stored", "job_id", jobID, "filename", filename, "size", header.Size)
	writeJSON(w, http.StatusCreated, map[string]any{
		"job_id":   jobID,
		"filename": filename,
	})
}

// handleClean removes every upload and output unless an extraction is running.
func (s *Server) handleClean(w http.ResponseWriter, r *http.Request) {
	res, err := s.orchestrator.Clean()
	switch {
	case errors.Is(err, pipeline.ErrJobsActive):
		jsonError(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		s.log.Error("storage clean incomplete", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":           err.Error(),
			"removed_uploads": res.RemovedUploads,
			"removed_outputs": res.RemovedOutputs,
		})
		return
	}
	s.log.Info("storage cleaned", "uploads", res.RemovedUploads, "outputs", res.RemovedOutputs)
	writeJSON(w, http.StatusOK, res)
}

func sanitizeFilename(name string) string {
	// Strip client path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}

