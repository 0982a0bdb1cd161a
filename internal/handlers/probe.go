package handlers

import (
	"bytes"
	"context"
	"image"
	"net/http"
	"strconv"
	"time"

	"media-editor/internal/database"
	"media-editor/internal/media"
	"media-editor/internal/mediatypes"
	"media-editor/internal/probe"
)

const (
	probeTimeout     = 30 * time.Second
	thumbnailQuality = 80
	maxThumbWidth    = 1280
)

// ProbeResponse describes a media file.
type ProbeResponse struct {
	Path     string          `json:"path"`
	Kind     mediatypes.Kind `json:"kind"`
	Duration float64         `json:"duration"`
	Width    int             `json:"width"`
	Height   int             `json:"height"`
	HasAudio bool            `json:"hasAudio"`
	Cached   bool            `json:"cached"`
}

// ProbeFile returns the duration and dimensions of ?path=, from the probe
// cache when the file is unchanged.
func (h *Handlers) ProbeFile(w http.ResponseWriter, r *http.Request) {
	path, err := h.resolveMediaPath(r.URL.Query().Get("path"))
	if err != nil {
		writePathError(w, err)
		return
	}
	kind := mediatypes.KindOf(path)
	if kind == mediatypes.KindOther {
		writeJSONError(w, "not a media file", http.StatusUnsupportedMediaType)
		return
	}

	resp := ProbeResponse{Path: path, Kind: kind}
	if e, ok := h.cache.Current(r.Context(), path); ok {
		resp.fill(e)
		resp.Cached = true
		writeJSONStatus(w, http.StatusOK, resp)
		return
	}

	var entry database.ProbeEntry
	if kind == mediatypes.KindImage {
		dims, err := media.GetImageDimensions(path)
		if err != nil {
			writeJSONError(w, "could not read image", http.StatusUnprocessableEntity)
			return
		}
		entry.Width, entry.Height = dims.Width, dims.Height
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		defer cancel()
		info, err := h.backend.Open(ctx, path)
		if err != nil {
			log.Warn("probe %s: %v", path, err)
			writeJSONError(w, "could not probe file", http.StatusUnprocessableEntity)
			return
		}
		entry.Duration = info.Duration
		if v, ok := info.Video(); ok {
			entry.Width, entry.Height = v.Width, v.Height
		}
		_, entry.HasAudio = info.Audio()
	}

	if err := h.cache.Put(r.Context(), path, entry); err != nil {
		log.Warn("cache probe of %s: %v", path, err)
	}
	resp.fill(&entry)
	writeJSONStatus(w, http.StatusOK, resp)
}

func (p *ProbeResponse) fill(e *database.ProbeEntry) {
	p.Duration = e.Duration
	p.Width = e.Width
	p.Height = e.Height
	p.HasAudio = e.HasAudio
}

// Thumbnail returns a JPEG preview of ?path=. Videos use the frame the
// prober picks; images are scaled to ?width= (default 320).
func (h *Handlers) Thumbnail(w http.ResponseWriter, r *http.Request) {
	path, err := h.resolveMediaPath(r.URL.Query().Get("path"))
	if err != nil {
		writePathError(w, err)
		return
	}

	width := probe.ThumbnailWidth
	if v := r.URL.Query().Get("width"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxThumbWidth {
			writeJSONError(w, "invalid width", http.StatusBadRequest)
			return
		}
		width = n
	}

	var img image.Image
	switch mediatypes.KindOf(path) {
	case mediatypes.KindImage:
		src, err := media.LoadImageConstrained(path, media.MaxImageDimension, media.MaxImagePixels)
		if err != nil {
			writeJSONError(w, "could not read image", http.StatusUnprocessableEntity)
			return
		}
		img = src
	case mediatypes.KindVideo:
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		defer cancel()
		duration, err := probe.Duration(ctx, h.backend, path)
		if err != nil {
			log.Warn("thumbnail duration of %s: %v", path, err)
			writeJSONError(w, "could not probe file", http.StatusUnprocessableEntity)
			return
		}
		thumb, err := probe.VideoThumbnail(ctx, h.backend, path, duration)
		if err != nil {
			log.Warn("thumbnail of %s: %v", path, err)
			writeJSONError(w, "could not decode frame", http.StatusUnprocessableEntity)
			return
		}
		img = thumb.Image
	default:
		writeJSONError(w, "no thumbnail for this file type", http.StatusUnsupportedMediaType)
		return
	}

	var buf bytes.Buffer
	if err := media.Encode(&buf, media.Fit(img, width, 0), media.FormatJPEG, thumbnailQuality); err != nil {
		log.Error("encode thumbnail of %s: %v", path, err)
		writeJSONError(w, "could not encode thumbnail", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Cache-Control", "private, max-age=60")
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Debug("write thumbnail: %v", err)
	}
}

// TriggerIndex starts a background scan of the media directory.
func (h *Handlers) TriggerIndex(w http.ResponseWriter, _ *http.Request) {
	if h.indexer == nil {
		writeJSONError(w, "indexer is disabled", http.StatusNotFound)
		return
	}
	if h.indexer.IsIndexing() {
		writeJSONStatus(w, http.StatusConflict, map[string]string{"status": "already_indexing"})
		return
	}
	h.indexer.TriggerIndex()
	writeJSONStatus(w, http.StatusAccepted, map[string]string{"status": "started"})
}
