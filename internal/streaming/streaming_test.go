package streaming

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.WriteTimeout != 30*time.Second {
		t.Errorf("Expected WriteTimeout=30s, got %v", config.WriteTimeout)
	}
	if config.MaxDuration != 0 {
		t.Errorf("Expected MaxDuration=0 (unlimited), got %v", config.MaxDuration)
	}
	if config.ChunkSize != 256*1024 {
		t.Errorf("Expected ChunkSize=256KB, got %d", config.ChunkSize)
	}
}

func TestWriterChunks(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		chunk     int
		wantCalls int
	}{
		{"smaller than chunk", 10, 64, 1},
		{"exact chunk", 64, 64, 1},
		{"several chunks", 200, 64, 4},
		{"zero chunk uses default", 1000, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			calls := 0
			sw := NewWriter(context.Background(), w, Config{
				ChunkSize:  tt.chunk,
				OnProgress: func(int64, time.Duration) { calls++ },
			})
			data := bytes.Repeat([]byte{'x'}, tt.size)

			n, err := sw.Write(data)
			if err != nil {
				t.Fatalf("Write failed: %v", err)
			}
			if n != tt.size || w.Body.Len() != tt.size {
				t.Errorf("Expected %d bytes, wrote %d, body %d", tt.size, n, w.Body.Len())
			}
			if calls != tt.wantCalls {
				t.Errorf("Expected %d progress calls, got %d", tt.wantCalls, calls)
			}
			if written, _ := sw.Stats(); written != int64(tt.size) {
				t.Errorf("Expected stats %d, got %d", tt.size, written)
			}
			if !w.Flushed {
				t.Error("Expected the recorder to be flushed")
			}
		})
	}
}

func TestWriterCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sw := NewWriter(ctx, httptest.NewRecorder(), DefaultConfig())
	if _, err := sw.Write([]byte("data")); !errors.Is(err, ErrClientGone) {
		t.Errorf("Expected ErrClientGone, got %v", err)
	}
}

func TestWriterMaxDuration(t *testing.T) {
	sw := NewWriter(context.Background(), httptest.NewRecorder(), Config{MaxDuration: time.Millisecond})
	time.Sleep(5 * time.Millisecond)
	if _, err := sw.Write([]byte("late")); !errors.Is(err, ErrWriteTimeout) {
		t.Errorf("Expected ErrWriteTimeout, got %v", err)
	}
}

func TestSentinelErrorsAreDistinct(t *testing.T) {
	if errors.Is(ErrWriteTimeout, ErrClientGone) {
		t.Error("Expected distinct sentinel errors")
	}
}

// =============================================================================
// ServeFile
// =============================================================================

func TestServeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "export.mp4")
	data := bytes.Repeat([]byte("frame"), 1000)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	if err := ServeFile(context.Background(), w, path, "video/mp4", Config{ChunkSize: 512}); err != nil {
		t.Fatalf("ServeFile failed: %v", err)
	}
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if got := w.Header().Get("Content-Length"); got != "5000" {
		t.Errorf("Expected Content-Length 5000, got %s", got)
	}
	if got := w.Header().Get("Content-Disposition"); got != `attachment; filename="export.mp4"` {
		t.Errorf("Unexpected Content-Disposition %s", got)
	}
	if !bytes.Equal(w.Body.Bytes(), data) {
		t.Error("Expected body to match the file")
	}
}

func TestServeFileErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		path string
	}{
		{"missing", filepath.Join(dir, "gone.mp4")},
		{"directory", dir},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			if err := ServeFile(context.Background(), w, tt.path, "video/mp4", DefaultConfig()); err == nil {
				t.Error("Expected an error")
			}
			if w.Body.Len() != 0 {
				t.Error("Expected nothing written")
			}
		})
	}
}
