package streaming

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"media-editor/internal/logging"
)

// Sentinel errors for streaming operations.
var (
	// ErrWriteTimeout is returned when a chunk could not be written in time
	// or the whole transfer exceeded MaxDuration.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone is returned when the request context was canceled.
	ErrClientGone = errors.New("client disconnected")
)

var log = logging.For("streaming")

// Config bounds a transfer.
type Config struct {
	// WriteTimeout is the deadline for each chunk.
	WriteTimeout time.Duration
	// MaxDuration caps the whole transfer (0 = unlimited).
	MaxDuration time.Duration
	// ChunkSize is how much is written and flushed at a time.
	ChunkSize int
	// OnProgress is called after every chunk.
	OnProgress func(written int64, elapsed time.Duration)
}

// DefaultConfig returns the settings used for export downloads.
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 30 * time.Second,
		ChunkSize:    256 * 1024,
	}
}

// Writer copies to an http.ResponseWriter in chunks, each under its own
// write deadline.
type Writer struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	ctx     context.Context
	config  Config
	start   time.Time
	written int64
}

// NewWriter wraps w. ctx is normally the request context.
func NewWriter(ctx context.Context, w http.ResponseWriter, config Config) *Writer {
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultConfig().ChunkSize
	}
	return &Writer{
		w:      w,
		rc:     http.NewResponseController(w),
		ctx:    ctx,
		config: config,
		start:  time.Now(),
	}
}

// Write implements io.Writer.
func (sw *Writer) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		if err := sw.check(); err != nil {
			return total, err
		}
		n := min(len(p), sw.config.ChunkSize)
		if sw.config.WriteTimeout > 0 {
			// Recorders and some wrappers cannot set deadlines.
			if err := sw.rc.SetWriteDeadline(time.Now().Add(sw.config.WriteTimeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
				return total, err
			}
		}
		written, err := sw.w.Write(p[:n])
		total += written
		sw.written += int64(written)
		if err != nil {
			if os.IsTimeout(err) {
				return total, ErrWriteTimeout
			}
			return total, err
		}
		if err := sw.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return total, err
		}
		if sw.config.OnProgress != nil {
			sw.config.OnProgress(sw.written, time.Since(sw.start))
		}
		p = p[n:]
	}
	return total, nil
}

func (sw *Writer) check() error {
	if err := sw.ctx.Err(); err != nil {
		return ErrClientGone
	}
	if sw.config.MaxDuration > 0 && time.Since(sw.start) > sw.config.MaxDuration {
		return ErrWriteTimeout
	}
	return nil
}

// Stats returns bytes written and time elapsed.
func (sw *Writer) Stats() (int64, time.Duration) {
	return sw.written, time.Since(sw.start)
}

// Copy streams r to w under config.
func Copy(ctx context.Context, w http.ResponseWriter, r io.Reader, config Config) (int64, error) {
	sw := NewWriter(ctx, w, config)
	buf := make([]byte, sw.config.ChunkSize)
	n, err := io.CopyBuffer(sw, r, buf)
	written, elapsed := sw.Stats()
	log.Debug("Stream finished: %d bytes in %v", written, elapsed)
	return n, err
}

// ServeFile sends the file at path as an attachment. The response carries
// Content-Length so clients can show download progress.
func ServeFile(ctx context.Context, w http.ResponseWriter, path, contentType string, config Config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			log.Warn("Failed to close %s: %v", path, cerr)
		}
	}()
	st, err := f.Stat()
	if err != nil {
		return err
	}
	if st.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}

	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.FormatInt(st.Size(), 10))
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	_, err = Copy(ctx, w, f, config)
	return err
}
