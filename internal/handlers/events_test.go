package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"media-editor/internal/database"
	"media-editor/internal/orchestrator"
)

// =============================================================================
// Export history
// =============================================================================

func TestHubRecordsExportHistory(t *testing.T) {
	env := setupHandlers(t)
	hub := env.h.Hub()
	ctx := context.Background()

	for _, id := range []string{"ok", "bad", "stopped"} {
		if err := env.db.CreateExport(ctx, id, "/out/"+id+".mp4", 20); err != nil {
			t.Fatal(err)
		}
	}

	results := []orchestrator.Result{
		{Kind: orchestrator.ResultEncodeProgress, Job: "ok", FrameIndex: 1, Total: 20},
		{Kind: orchestrator.ResultEncodeDone, Job: "ok", FrameIndex: 20, Total: 20},
		{Kind: orchestrator.ResultEncodeProgress, Job: "bad", FrameIndex: 1, Total: 20},
		{Kind: orchestrator.ResultEncodeError, Job: "bad", Message: "disk full"},
		{Kind: orchestrator.ResultEncodeProgress, Job: "stopped", FrameIndex: 1, Total: 20},
		{Kind: orchestrator.ResultEncodeProgress, Job: "stopped", FrameIndex: 7, Total: 20},
		{Kind: orchestrator.ResultEncodeError, Job: "stopped", Message: orchestrator.CancelledMessage},
		// Non-encode results are not recorded.
		{Kind: orchestrator.ResultDuration, Clip: "c", Duration: 3},
	}
	for _, r := range results {
		hub.record(ctx, r)
	}

	tests := []struct {
		id         string
		wantStatus database.ExportStatus
		wantFrames int
		wantMsg    string
	}{
		{"ok", database.ExportDone, 20, ""},
		{"bad", database.ExportError, 1, "disk full"},
		{"stopped", database.ExportCancelled, 7, orchestrator.CancelledMessage},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			rec, err := env.db.GetExport(ctx, tt.id)
			if err != nil {
				t.Fatalf("GetExport failed: %v", err)
			}
			if rec.Status != tt.wantStatus || rec.Frames != tt.wantFrames || rec.Message != tt.wantMsg {
				t.Errorf("Expected %s/%d/%q, got %s/%d/%q", tt.wantStatus, tt.wantFrames, tt.wantMsg,
					rec.Status, rec.Frames, rec.Message)
			}
		})
	}

	if len(hub.lastFrame) != 0 || len(hub.lastWrite) != 0 {
		t.Errorf("Expected per-job state to be released, got %d/%d", len(hub.lastFrame), len(hub.lastWrite))
	}
}

func TestHubThrottlesProgressWrites(t *testing.T) {
	env := setupHandlers(t)
	hub := env.h.Hub()
	ctx := context.Background()
	if err := env.db.CreateExport(ctx, "j", "/out/j.mp4", 100); err != nil {
		t.Fatal(err)
	}

	hub.record(ctx, orchestrator.Result{Kind: orchestrator.ResultEncodeProgress, Job: "j", FrameIndex: 1, Total: 100})
	hub.record(ctx, orchestrator.Result{Kind: orchestrator.ResultEncodeProgress, Job: "j", FrameIndex: 2, Total: 100})

	rec, _ := env.db.GetExport(ctx, "j")
	if rec.Frames != 1 {
		t.Errorf("Expected the second update to be held back, got frame %d", rec.Frames)
	}

	// The last frame is always written.
	hub.record(ctx, orchestrator.Result{Kind: orchestrator.ResultEncodeProgress, Job: "j", FrameIndex: 100, Total: 100})
	rec, _ = env.db.GetExport(ctx, "j")
	if rec.Frames != 100 {
		t.Errorf("Expected frame 100, got %d", rec.Frames)
	}
}

// =============================================================================
// Websocket fan-out
// =============================================================================

func dialEvents(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial %s: %v", url, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func awaitSubscribers(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(wait)
	for hub.Subscribers() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d subscribers, got %d", n, hub.Subscribers())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestServeEventsBroadcasts(t *testing.T) {
	env := setupHandlers(t)
	hub := env.h.Hub()
	srv := httptest.NewServer(http.HandlerFunc(env.h.ServeEvents))
	defer srv.Close()

	a := dialEvents(t, srv)
	b := dialEvents(t, srv)
	awaitSubscribers(t, hub, 2)

	hub.Broadcast(orchestrator.Result{Kind: orchestrator.ResultDuration, Clip: "clip-1", Duration: 2.5})

	for name, conn := range map[string]*websocket.Conn{"a": a, "b": b} {
		_ = conn.SetReadDeadline(time.Now().Add(wait))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("client %s: read failed: %v", name, err)
		}
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("client %s: bad JSON %s: %v", name, data, err)
		}
		if msg["kind"] != "duration" || msg["clip"] != "clip-1" || msg["duration"] != 2.5 {
			t.Errorf("client %s: unexpected message %v", name, msg)
		}
	}

	_ = a.Close()
	awaitSubscribers(t, hub, 1)
}

func TestHubPublishAndClose(t *testing.T) {
	env := setupHandlers(t)
	hub := env.h.Hub()
	srv := httptest.NewServer(http.HandlerFunc(env.h.ServeEvents))
	defer srv.Close()

	conn := dialEvents(t, srv)
	awaitSubscribers(t, hub, 1)

	hub.Publish(context.Background(), orchestrator.Result{Kind: orchestrator.ResultEncodeError, Job: "j", Message: "boom"})
	_ = conn.SetReadDeadline(time.Now().Add(wait))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !strings.Contains(string(data), `"kind":"encode_error"`) {
		t.Errorf("Expected encode_error, got %s", data)
	}

	hub.Close()
	if hub.Subscribers() != 0 {
		t.Errorf("Expected no subscribers after close, got %d", hub.Subscribers())
	}
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("Expected the connection to be closed")
	}
}
