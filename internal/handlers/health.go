package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"media-editor/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	// Indexer
	IndexerEnabled    bool   `json:"indexerEnabled"`
	Indexing          bool   `json:"indexing"`
	LastIndexed       string `json:"lastIndexed,omitempty"`
	InitialIndexError string `json:"initialIndexError,omitempty"`
	FilesFound        int64  `json:"filesFound"`
	FilesProbed       int64  `json:"filesProbed"`

	// Work in flight
	ActiveJobs       int `json:"activeJobs"`
	ProbeCacheSize   int `json:"probeCacheEntries"`
	EventSubscribers int `json:"eventSubscribers"`
	CodecProcesses   int `json:"codecProcesses"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Ready:            true,
		Status:           statusHealthy,
		Version:          startup.Version,
		Uptime:           time.Since(h.startTime).Round(time.Second).String(),
		ActiveJobs:       len(h.orch.ActiveJobs()),
		EventSubscribers: h.hub.Subscribers(),
		GoVersion:        runtime.Version(),
		NumCPU:           runtime.NumCPU(),
		NumGoroutine:     runtime.NumGoroutine(),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if n, err := h.db.CountProbes(ctx); err == nil {
		response.ProbeCacheSize = n
	}
	if h.processes != nil {
		response.CodecProcesses = h.processes.Active()
	}

	if h.indexer != nil {
		hs := h.indexer.GetHealthStatus()
		response.IndexerEnabled = true
		response.Ready = hs.Ready
		response.Indexing = hs.Indexing
		response.FilesFound = hs.FilesFound
		response.FilesProbed = hs.FilesProbed
		if !hs.LastIndexed.IsZero() {
			response.LastIndexed = hs.LastIndexed.Format(time.RFC3339)
		}
		if !hs.Ready {
			response.Status = statusStarting
		}
		if hs.InitialIndexError != "" {
			response.InitialIndexError = hs.InitialIndexError
			response.Status = statusDegraded
		}
	}

	// Return 503 only if not ready at all
	status := http.StatusOK
	if !response.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSONStatus(w, status, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{"status": "alive"})
	}
}

// ReadinessCheck returns 200 once the initial index has run. Without an
// indexer the service is ready as soon as it serves.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.indexer == nil || h.indexer.IsReady() {
		writeJSONStatus(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	writeJSONStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
}
