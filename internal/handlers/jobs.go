package handlers

import (
	"database/sql"
	"errors"
	"io"
	"net/http"
	"os"
	"slices"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/lithammer/shortuuid/v4"

	"media-editor/internal/database"
	"media-editor/internal/encoder"
	"media-editor/internal/mediatypes"
	"media-editor/internal/orchestrator"
	"media-editor/internal/streaming"
)

// maxJobBody bounds the size of a submitted job document.
const maxJobBody = 1 << 20

// JobsResponse lists running encodes and recent export history.
type JobsResponse struct {
	Active  []string                `json:"active"`
	History []database.ExportRecord `json:"history"`
}

// JobResponse is one export with its live state.
type JobResponse struct {
	database.ExportRecord
	Running bool `json:"running"`
}

// CreateJobResponse is returned once a job has been accepted.
type CreateJobResponse struct {
	ID     string `json:"id"`
	Output string `json:"output"`
	Total  int    `json:"total"`
}

// ListJobs returns running jobs and the most recent exports.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSONError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, 500)
	}

	history, err := h.db.ListExports(r.Context(), limit)
	if err != nil {
		log.Error("list exports: %v", err)
		writeJSONError(w, "could not list exports", http.StatusInternalServerError)
		return
	}
	if history == nil {
		history = []database.ExportRecord{}
	}
	writeJSONStatus(w, http.StatusOK, JobsResponse{
		Active:  h.orch.ActiveJobs(),
		History: history,
	})
}

// GetJob returns one export.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, err := h.db.GetExport(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeJSONError(w, "job not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error("get export %s: %v", id, err)
		writeJSONError(w, "could not load job", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, http.StatusOK, JobResponse{
		ExportRecord: *rec,
		Running:      slices.Contains(h.orch.ActiveJobs(), id),
	})
}

// CreateJob accepts a YAML or JSON export job and starts encoding it.
// The history row is written before the encode starts so progress results
// always find it.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJobBody))
	if err != nil {
		writeJSONError(w, "job document too large or unreadable", http.StatusRequestEntityTooLarge)
		return
	}
	job, err := encoder.ParseJob(body)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := job.Validate(nil); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if job.ID == "" {
		job.ID = shortuuid.New()
	}
	total := job.TotalFrames(nil)

	if err := h.db.CreateExport(r.Context(), job.ID, job.Output, total); err != nil {
		if _, gerr := h.db.GetExport(r.Context(), job.ID); gerr == nil {
			writeJSONError(w, "job id already used", http.StatusConflict)
			return
		}
		log.Error("create export %s: %v", job.ID, err)
		writeJSONError(w, "could not record job", http.StatusInternalServerError)
		return
	}

	if _, err := h.orch.StartEncode(job); err != nil {
		if ferr := h.db.FinishExport(r.Context(), job.ID, database.ExportError, 0, err.Error()); ferr != nil {
			log.Warn("finish export %s: %v", job.ID, ferr)
		}
		status := http.StatusConflict
		if errors.Is(err, orchestrator.ErrShutdown) {
			status = http.StatusServiceUnavailable
		}
		writeJSONError(w, err.Error(), status)
		return
	}

	log.Info("Accepted export %s: %d frames -> %s", job.ID, total, job.Output)
	writeJSONStatus(w, http.StatusAccepted, CreateJobResponse{
		ID:     job.ID,
		Output: job.Output,
		Total:  total,
	})
}

// CancelJob asks a running job to stop. The final state arrives on the
// event stream.
func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !h.orch.CancelEncode(id) {
		writeJSONError(w, "job is not running", http.StatusNotFound)
		return
	}
	writeJSONStatus(w, http.StatusAccepted, map[string]string{"id": id, "status": "cancelling"})
}

// DownloadExport sends the output file of a finished export.
func (h *Handlers) DownloadExport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, err := h.db.GetExport(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeJSONError(w, "job not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error("get export %s: %v", id, err)
		writeJSONError(w, "could not load job", http.StatusInternalServerError)
		return
	}
	if rec.Status != database.ExportDone {
		writeJSONError(w, "job has not finished: "+string(rec.Status), http.StatusConflict)
		return
	}
	if _, err := os.Stat(rec.Output); err != nil {
		writeJSONError(w, "output file is gone", http.StatusGone)
		return
	}

	err = streaming.ServeFile(r.Context(), w, rec.Output, mediatypes.GetMimeType(rec.Output), streaming.DefaultConfig())
	if err != nil && !errors.Is(err, streaming.ErrClientGone) {
		log.Warn("download %s: %v", id, err)
	}
}
