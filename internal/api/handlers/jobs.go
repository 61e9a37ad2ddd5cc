package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meshforge/cad-engine/internal/observability"
	"github.com/meshforge/cad-engine/internal/storage"
)

// maxJobListLimit caps how many rows one listing request can pull.
const maxJobListLimit = 500

// JobsHandler serves conversion history from the job store.
type JobsHandler struct {
	logger *observability.Logger
	jobs   *storage.JobRepository
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(logger *observability.Logger, jobs *storage.JobRepository) *JobsHandler {
	return &JobsHandler{logger: logger, jobs: jobs}
}

// List handles GET /jobs?limit=N.
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid limit parameter", v)
			return
		}
		limit = n
	}
	if limit > maxJobListLimit {
		limit = maxJobListLimit
	}

	jobs, err := h.jobs.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("job listing failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list jobs", "")
		return
	}
	if jobs == nil {
		jobs = []*storage.ConversionJob{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// Get handles GET /jobs/{id}.
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid job id", err.Error())
		return
	}

	job, err := h.jobs.GetByID(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "job not found", id.String())
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", id.String()).Msg("job lookup failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load job", "")
		return
	}

	writeJSON(w, http.StatusOK, job)
}
