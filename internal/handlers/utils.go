package handlers

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"

	"media-editor/internal/filesystem"
	"media-editor/internal/logging"
)

var log = logging.For("http")

// writeJSON encodes v as JSON and writes it to the response writer.
// Any encoding or write errors are logged since we typically cannot
// recover from them in an HTTP handler context.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONStatus writes v as JSON with the given status code.
func writeJSONStatus(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, v)
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONStatus(w, statusCode, map[string]string{"error": message})
}

// pathError carries the status code for a rejected path.
type pathError struct {
	status int
	msg    string
}

func (e *pathError) Error() string { return e.msg }

// resolveMediaPath turns a path query value into an absolute file path.
// Relative paths are taken against the media directory. When a media
// directory is configured, paths outside it are refused.
func (h *Handlers) resolveMediaPath(raw string) (string, error) {
	if raw == "" {
		return "", &pathError{http.StatusBadRequest, "path is required"}
	}
	p := filepath.Clean(raw)
	if !filepath.IsAbs(p) {
		if h.mediaDir == "" {
			return "", &pathError{http.StatusBadRequest, "path must be absolute"}
		}
		p = filepath.Join(h.mediaDir, p)
	}
	if h.mediaDir != "" {
		root := filepath.Clean(h.mediaDir)
		if p != root && !strings.HasPrefix(p, root+string(filepath.Separator)) {
			return "", &pathError{http.StatusForbidden, "path is outside the media directory"}
		}
	}

	info, err := filesystem.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &pathError{http.StatusNotFound, "file not found"}
		}
		return "", &pathError{http.StatusInternalServerError, "could not stat file"}
	}
	if info.IsDir() {
		return "", &pathError{http.StatusBadRequest, "path is a directory"}
	}
	return p, nil
}

// writePathError reports a resolveMediaPath failure.
func writePathError(w http.ResponseWriter, err error) {
	var pe *pathError
	if errors.As(err, &pe) {
		writeJSONError(w, pe.msg, pe.status)
		return
	}
	writeJSONError(w, err.Error(), http.StatusInternalServerError)
}
