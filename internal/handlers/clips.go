package handlers

import (
	"bytes"
	"errors"
	"image"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gorilla/mux"

	"media-editor/internal/media"
	"media-editor/internal/orchestrator"
)

// frameImage is a frame taken off the session goroutine for encoding.
type frameImage struct {
	Image   *image.RGBA
	PTS     float64
	Playing bool
}

type cacheStats struct {
	Entries int   `json:"entries"`
	Bytes   int64 `json:"bytes"`
	Budget  int64 `json:"budget"`
}

// ClipResponse is what probing has reported about a clip.
type ClipResponse struct {
	ID           string    `json:"id"`
	Duration     float64   `json:"duration"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	HasThumbnail bool      `json:"hasThumbnail"`
	Peaks        []float32 `json:"peaks,omitempty"`
	AudioPath    string    `json:"audioPath,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// clipRequest is the clip ID and resolved source path of a clip command.
func (h *Handlers) clipRequest(w http.ResponseWriter, r *http.Request) (clip, path string, ok bool) {
	clip = mux.Vars(r)["clip"]
	if clip == "" {
		writeJSONError(w, "clip id is required", http.StatusBadRequest)
		return "", "", false
	}
	path, err := h.resolveMediaPath(r.URL.Query().Get("path"))
	if err != nil {
		writePathError(w, err)
		return "", "", false
	}
	return clip, path, true
}

// timeParam parses ?t= as seconds, defaulting to 0.
func timeParam(r *http.Request) (float64, error) {
	v := r.URL.Query().Get("t")
	if v == "" {
		return 0, nil
	}
	ts, err := strconv.ParseFloat(v, 64)
	if err != nil || ts < 0 {
		return 0, errors.New("t must be a non-negative number of seconds")
	}
	return ts, nil
}

func (h *Handlers) needSession(w http.ResponseWriter) bool {
	if h.session == nil {
		writeJSONError(w, "preview is not running", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func writeOrchestratorError(w http.ResponseWriter, err error) {
	if errors.Is(err, orchestrator.ErrShutdown) || errors.Is(err, ErrSessionStopped) {
		writeJSONError(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	writeJSONError(w, err.Error(), http.StatusInternalServerError)
}

// ProbeClip starts a background probe of a clip. Duration, size,
// thumbnail, waveform and audio arrive on the event stream.
func (h *Handlers) ProbeClip(w http.ResponseWriter, r *http.Request) {
	clip, path, ok := h.clipRequest(w, r)
	if !ok {
		return
	}
	if err := h.orch.Probe(clip, path); err != nil {
		writeOrchestratorError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusAccepted, map[string]string{"clip": clip, "status": "probing"})
}

// ExtractClipAudio starts extracting a clip's audio to WAV.
func (h *Handlers) ExtractClipAudio(w http.ResponseWriter, r *http.Request) {
	clip, path, ok := h.clipRequest(w, r)
	if !ok {
		return
	}
	if err := h.orch.ExtractAudio(clip, path); err != nil {
		writeOrchestratorError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusAccepted, map[string]string{"clip": clip, "status": "extracting"})
}

// SaveClipFrame decodes the frame at ?t= at full resolution into the frame
// directory as ?name=.
func (h *Handlers) SaveClipFrame(w http.ResponseWriter, r *http.Request) {
	clip, path, ok := h.clipRequest(w, r)
	if !ok {
		return
	}
	ts, err := timeParam(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if h.frameDir == "" {
		writeJSONError(w, "frame export is disabled", http.StatusServiceUnavailable)
		return
	}
	name := filepath.Base(r.URL.Query().Get("name"))
	if _, err := media.FormatOf(name); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	dest := filepath.Join(h.frameDir, name)
	if err := h.orch.SaveFrame(clip, path, ts, dest); err != nil {
		writeOrchestratorError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusAccepted, map[string]string{"clip": clip, "dest": dest})
}

// GetClip returns the probe state the preview has collected for a clip.
func (h *Handlers) GetClip(w http.ResponseWriter, r *http.Request) {
	if !h.needSession(w) {
		return
	}
	id := mux.Vars(r)["clip"]
	c, ok := h.session.Clip(id)
	if !ok {
		writeJSONError(w, "clip not found", http.StatusNotFound)
		return
	}
	writeJSONStatus(w, http.StatusOK, ClipResponse{
		ID:           id,
		Duration:     c.Duration,
		Width:        c.Width,
		Height:       c.Height,
		HasThumbnail: c.Thumbnail != nil,
		Peaks:        c.Peaks,
		AudioPath:    c.AudioPath,
		Error:        c.Err,
	})
}

// ScrubClip shows the frame of a clip at ?t=. A cached frame is on screen
// immediately; otherwise the decode is queued and supersedes older
// requests.
func (h *Handlers) ScrubClip(w http.ResponseWriter, r *http.Request) {
	if !h.needSession(w) {
		return
	}
	clip, path, ok := h.clipRequest(w, r)
	if !ok {
		return
	}
	ts, err := timeParam(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	cached, err := h.session.Scrub(r.Context(), clip, path, ts)
	if err != nil {
		writeOrchestratorError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, map[string]any{"clip": clip, "time": ts, "cached": cached})
}

// PlayClip starts playback of a clip from ?t=.
func (h *Handlers) PlayClip(w http.ResponseWriter, r *http.Request) {
	if !h.needSession(w) {
		return
	}
	clip, path, ok := h.clipRequest(w, r)
	if !ok {
		return
	}
	ts, err := timeParam(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.session.Play(r.Context(), clip, path, ts); err != nil {
		writeOrchestratorError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusAccepted, map[string]any{"clip": clip, "time": ts, "status": "playing"})
}

// StopPlayback ends the playback session.
func (h *Handlers) StopPlayback(w http.ResponseWriter, r *http.Request) {
	if !h.needSession(w) {
		return
	}
	if err := h.session.Stop(r.Context()); err != nil {
		writeOrchestratorError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// CurrentFrame returns the frame on screen for a clip as JPEG. The frame
// PTS travels in X-Frame-PTS.
func (h *Handlers) CurrentFrame(w http.ResponseWriter, r *http.Request) {
	if !h.needSession(w) {
		return
	}
	clip := mux.Vars(r)["clip"]
	f, ok, err := h.session.Current(r.Context(), clip)
	if err != nil {
		writeOrchestratorError(w, err)
		return
	}
	if !ok {
		writeJSONError(w, "no frame on screen", http.StatusNotFound)
		return
	}

	var buf bytes.Buffer
	if err := media.Encode(&buf, f.Image, media.FormatJPEG, thumbnailQuality); err != nil {
		log.Error("encode frame of %s: %v", clip, err)
		writeJSONError(w, "could not encode frame", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Frame-PTS", strconv.FormatFloat(f.PTS, 'f', 3, 64))
	w.Header().Set("X-Playing", strconv.FormatBool(f.Playing))
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Debug("write frame: %v", err)
	}
}

// FrameCacheStats reports the rolling frame cache.
func (h *Handlers) FrameCacheStats(w http.ResponseWriter, r *http.Request) {
	if !h.needSession(w) {
		return
	}
	st, err := h.session.CacheStats(r.Context())
	if err != nil {
		writeOrchestratorError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, st)
}
