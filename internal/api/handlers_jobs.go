package api

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dgallion1/docingest/internal/pipeline"
	"github.com/dgallion1/docingest/internal/storage"
	"github.com/go-chi/chi/v5"
)

type extractRequest struct {
	ProcessingConfig *storage.ProcessingConfig `json:"processing_config"`
}

// handleExtract starts extraction of an uploaded job and returns at once.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	var req extractRequest
	if r.Body != nil {
		err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req)
		if err != nil && !errors.Is(err, io.EOF) {
			jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	sum, err := s.orchestrator.Extract(r.Context(), jobID, req.ProcessingConfig)
	switch {
	case errors.Is(err, pipeline.ErrUploadMissing):
		jsonError(w, "upload not found", http.StatusNotFound)
		return
	case errors.Is(err, storage.ErrPathTraversal):
		jsonError(w, "invalid job id", http.StatusBadRequest)
		return
	case err != nil:
		s.log.Error("extract request failed", "job_id", jobID, "error", err)
		jsonError(w, "failed to start extraction", http.StatusInternalServerError)
		return
	}

	code := http.StatusAccepted
	if sum.AlreadyRunning {
		code = http.StatusOK
	}
	writeJSON(w, code, sum)
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	view, err := s.orchestrator.View(jobID)
	switch {
	case errors.Is(err, storage.ErrJobNotFound):
		jsonError(w, "job not found", http.StatusNotFound)
		return
	case errors.Is(err, storage.ErrPathTraversal):
		jsonError(w, "invalid job id", http.StatusBadRequest)
		return
	case err != nil:
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if err := storage.ValidateJobID(jobID); err != nil {
		jsonError(w, "invalid job id", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.store.ReadProgress(jobID))
}

// handleArtifact downloads one artifact of a job once it is not being
// extracted.
func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	filename := chi.URLParam(r, "filename")

	if s.orchestrator.InFlight(jobID) {
		jsonError(w, "extraction in progress", http.StatusConflict)
		return
	}
	path, err := s.store.ArtifactPath(jobID, filename)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, storage.ErrPathTraversal) {
			s.log.Warn("artifact lookup failed", "job_id", jobID, "filename", filename, "error", err)
		}
		jsonError(w, "artifact not found", http.StatusNotFound)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		jsonError(w, "artifact not found", http.StatusNotFound)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		jsonError(w, "artifact not readable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(path)+`"`)
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
