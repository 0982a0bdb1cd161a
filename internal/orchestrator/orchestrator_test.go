package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"media-editor/internal/codec/synth"
	"media-editor/internal/encoder"
	"media-editor/internal/workers"
)

const (
	videoA = "/media/a.mkv"
	videoB = "/media/b.mkv"
	silent = "/media/silent.mkv"
	wait   = 5 * time.Second
)

func testBackend() *synth.Backend {
	b := synth.New()
	b.Add(videoA, synth.Source{Duration: 10, Audio: true})
	b.Add(videoB, synth.Source{Duration: 3, Audio: true})
	b.Add(silent, synth.Source{Duration: 3})
	return b
}

func newTest(t *testing.T, b *synth.Backend, mutate func(*Config)) *Orchestrator {
	t.Helper()
	cfg := Config{
		Backend:   b,
		TempDir:   t.TempDir(),
		SaveFrame: func(string, image.Image) error { return nil },
	}
	if mutate != nil {
		mutate(&cfg)
	}
	o := New(cfg)
	t.Cleanup(o.Shutdown)
	return o
}

// awaitResult polls the shared stream until match accepts a result. Every
// result seen on the way is returned as well.
func awaitResult(t *testing.T, o *Orchestrator, match func(Result) bool) (Result, []Result) {
	t.Helper()
	var seen []Result
	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		r, ok := o.PollResult()
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		seen = append(seen, r)
		if match(r) {
			return r, seen
		}
	}
	t.Fatalf("Timed out waiting for result; saw %d results", len(seen))
	return Result{}, nil
}

func awaitScrub(t *testing.T, o *Orchestrator) Result {
	t.Helper()
	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		if r, ok := o.PollScrub(); ok {
			return r
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("Timed out waiting for scrub frame")
	return Result{}
}

func awaitPlayback(t *testing.T, o *Orchestrator) PlaybackFrame {
	t.Helper()
	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		if f, ok := o.PollPlayback(); ok {
			return f
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("Timed out waiting for playback frame")
	return PlaybackFrame{}
}

func kinds(rs []Result) []ResultKind {
	out := make([]ResultKind, len(rs))
	for i, r := range rs {
		out[i] = r.Kind
	}
	return out
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

// blockFirstRead makes the first decoded frame wait until release is closed.
func blockFirstRead(b *synth.Backend) (entered, release chan struct{}) {
	entered = make(chan struct{})
	release = make(chan struct{})
	var once sync.Once
	b.ReadDelay = func() {
		once.Do(func() {
			close(entered)
			<-release
		})
	}
	return entered, release
}

// =============================================================================
// Scrub
// =============================================================================

func TestScrubLatestWins(t *testing.T) {
	b := testBackend()
	entered, release := blockFirstRead(b)
	o := newTest(t, b, nil)

	o.RequestScrub("a", videoA, 3.0)
	<-entered

	o.RequestScrub("a", videoA, 0.0)
	o.RequestScrub("a", videoA, 0.1)
	o.RequestScrub("a", videoA, 5.0)
	close(release)

	first := awaitScrub(t, o)
	second := awaitScrub(t, o)
	if first.Time != 3.0 || second.Time != 5.0 {
		t.Fatalf("Expected frames for 3.0 then 5.0, got %v then %v", first.Time, second.Time)
	}
	if !near(second.Frame.PTS, 5.0) {
		t.Errorf("Expected frame pts 5.0, got %v", second.Frame.PTS)
	}

	time.Sleep(50 * time.Millisecond)
	if r, ok := o.PollScrub(); ok {
		t.Errorf("Expected no further scrub frames, got one for %v", r.Time)
	}
}

func TestScrubDecoderReuse(t *testing.T) {
	b := testBackend()
	o := newTest(t, b, nil)

	steps := []struct {
		name  string
		path  string
		ts    float64
		opens int
		pts   float64
	}{
		{"first request opens", videoA, 1.0, 1, 1.0},
		{"small step forward decodes through", videoA, 1.5, 1, 1.5},
		{"backward reopens", videoA, 1.2, 2, 1.2},
		{"long jump reopens", videoA, 4.0, 3, 4.0},
		{"short jump decodes through", videoA, 5.5, 3, 5.5},
		{"other file reopens", videoB, 0.5, 4, 0.5},
	}

	for _, s := range steps {
		t.Run(s.name, func(t *testing.T) {
			o.RequestScrub("clip", s.path, s.ts)
			r := awaitScrub(t, o)
			if r.Kind != ResultFrame || r.Frame == nil {
				t.Fatalf("Expected a frame result, got %s", r.Kind)
			}
			if !near(r.Frame.PTS, s.pts) {
				t.Errorf("Expected pts %v, got %v", s.pts, r.Frame.PTS)
			}
			if got := b.Opens(); got != s.opens {
				t.Errorf("Expected %d opens, got %d", s.opens, got)
			}
		})
	}
}

func TestScrubPreviewSize(t *testing.T) {
	b := synth.New()
	b.Add(videoA, synth.Source{Duration: 2, Width: 1280, Height: 720})
	o := newTest(t, b, func(c *Config) { c.PreviewWidth = 320 })

	o.RequestScrub("a", videoA, 0.5)
	r := awaitScrub(t, o)
	if got := r.Frame.Image.Bounds(); got.Dx() != 320 || got.Dy() != 180 {
		t.Errorf("Expected 320x180, got %dx%d", got.Dx(), got.Dy())
	}
}

func TestScrubMissingFile(t *testing.T) {
	o := newTest(t, testBackend(), nil)

	o.RequestScrub("gone", "/media/missing.mkv", 1.0)
	r, _ := awaitResult(t, o, func(r Result) bool { return r.Kind == ResultError })
	if r.Clip != "gone" || r.Message == "" {
		t.Errorf("Expected an error for clip gone, got %+v", r)
	}

	o.RequestScrub("a", videoA, 1.0)
	if f := awaitScrub(t, o); f.Clip != "a" {
		t.Errorf("Expected the scrub worker to keep serving, got clip %q", f.Clip)
	}
}

// =============================================================================
// Playback
// =============================================================================

func TestPlaybackSequence(t *testing.T) {
	o := newTest(t, testBackend(), nil)

	session, err := o.StartPlayback("a", videoA, 2.0)
	if err != nil {
		t.Fatalf("StartPlayback failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		f := awaitPlayback(t, o)
		if f.Session != session {
			t.Fatalf("Expected session %d, got %d", session, f.Session)
		}
		want := float64(60+i) / 30
		if !near(f.Frame.PTS, want) {
			t.Fatalf("Frame %d: expected pts %v, got %v", i, want, f.Frame.PTS)
		}
	}
}

func TestPlaybackEndOfStream(t *testing.T) {
	b := synth.New()
	b.Add(videoA, synth.Source{Duration: 0.5})
	o := newTest(t, b, nil)

	session, err := o.StartPlayback("a", videoA, 0)
	if err != nil {
		t.Fatalf("StartPlayback failed: %v", err)
	}
	for i := 0; i < 15; i++ {
		if f := awaitPlayback(t, o); f.End || f.Frame == nil {
			t.Fatalf("Frame %d: expected a decoded frame, got %+v", i, f)
		}
	}
	end := awaitPlayback(t, o)
	if !end.End || end.Frame != nil || end.Session != session || end.Clip != "a" {
		t.Errorf("Expected an end marker for session %d, got %+v", session, end)
	}
	time.Sleep(50 * time.Millisecond)
	if _, ok := o.PollPlayback(); ok {
		t.Error("Expected nothing after the end marker")
	}
	if _, ok := o.PollResult(); ok {
		t.Error("Expected end of stream to be silent")
	}
}

func TestPlaybackNewSession(t *testing.T) {
	o := newTest(t, testBackend(), nil)

	first, err := o.StartPlayback("a", videoA, 0)
	if err != nil {
		t.Fatalf("StartPlayback failed: %v", err)
	}
	awaitPlayback(t, o)
	// Let the frame channel fill up.
	time.Sleep(50 * time.Millisecond)

	second, err := o.StartPlayback("a", videoA, 6.0)
	if err != nil {
		t.Fatalf("StartPlayback failed: %v", err)
	}
	if second != first+1 || o.Session() != second {
		t.Fatalf("Expected session %d, got %d (current %d)", first+1, second, o.Session())
	}

	stale := 0
	for {
		f := awaitPlayback(t, o)
		if f.Session == first {
			stale++
			continue
		}
		if f.Session != second {
			t.Fatalf("Expected session %d, got %d", second, f.Session)
		}
		if !near(f.Frame.PTS, 6.0) {
			t.Errorf("Expected the new session to start at 6.0, got %v", f.Frame.PTS)
		}
		break
	}
	if stale > 1 {
		t.Errorf("Expected at most one in-flight frame of the old session, got %d", stale)
	}
}

func TestStopPlayback(t *testing.T) {
	o := newTest(t, testBackend(), nil)

	if _, err := o.StartPlayback("a", videoA, 0); err != nil {
		t.Fatalf("StartPlayback failed: %v", err)
	}
	awaitPlayback(t, o)
	time.Sleep(20 * time.Millisecond)

	if err := o.StopPlayback(); err != nil {
		t.Fatalf("StopPlayback failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	leftover := 0
	for {
		if _, ok := o.PollPlayback(); !ok {
			break
		}
		leftover++
	}
	if leftover > 1 {
		t.Errorf("Expected at most one in-flight frame after stop, got %d", leftover)
	}

	time.Sleep(50 * time.Millisecond)
	if _, ok := o.PollPlayback(); ok {
		t.Error("Expected playback to stay stopped")
	}
}

func TestPlaybackMissingFile(t *testing.T) {
	o := newTest(t, testBackend(), nil)

	if _, err := o.StartPlayback("gone", "/media/missing.mkv", 0); err != nil {
		t.Fatalf("StartPlayback failed: %v", err)
	}
	r, _ := awaitResult(t, o, func(r Result) bool { return r.Kind == ResultError })
	if r.Clip != "gone" {
		t.Errorf("Expected error for clip gone, got %q", r.Clip)
	}
	if f := awaitPlayback(t, o); !f.End {
		t.Errorf("Expected the failed session to end, got %+v", f)
	}
}

// =============================================================================
// Probe
// =============================================================================

func TestProbeResults(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		kinds []ResultKind
	}{
		{
			name:  "video with audio",
			path:  videoB,
			kinds: []ResultKind{ResultDuration, ResultVideoSize, ResultThumbnail, ResultWaveform, ResultAudioPath},
		},
		{
			name:  "video without audio",
			path:  silent,
			kinds: []ResultKind{ResultDuration, ResultVideoSize, ResultThumbnail},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTest(t, testBackend(), nil)
			if err := o.Probe("clip", tt.path); err != nil {
				t.Fatalf("Probe failed: %v", err)
			}

			last := tt.kinds[len(tt.kinds)-1]
			_, seen := awaitResult(t, o, func(r Result) bool { return r.Kind == last })
			time.Sleep(50 * time.Millisecond)
			for {
				r, ok := o.PollResult()
				if !ok {
					break
				}
				seen = append(seen, r)
			}

			got := kinds(seen)
			if len(got) != len(tt.kinds) {
				t.Fatalf("Expected kinds %v, got %v", tt.kinds, got)
			}
			for i := range got {
				if got[i] != tt.kinds[i] {
					t.Fatalf("Expected kinds %v, got %v", tt.kinds, got)
				}
			}

			for _, r := range seen {
				if r.Clip != "clip" {
					t.Errorf("Expected clip id on every result, got %q", r.Clip)
				}
				switch r.Kind {
				case ResultDuration:
					if r.Duration != 3 {
						t.Errorf("Expected duration 3, got %v", r.Duration)
					}
				case ResultVideoSize:
					if r.Width != 64 || r.Height != 36 {
						t.Errorf("Expected 64x36, got %dx%d", r.Width, r.Height)
					}
				case ResultThumbnail:
					if r.Thumbnail == nil || r.Width != 320 || r.Height != 180 {
						t.Errorf("Expected a 320x180 thumbnail, got %dx%d", r.Width, r.Height)
					}
				case ResultWaveform:
					if len(r.Peaks) != 1000 {
						t.Errorf("Expected 1000 peaks, got %d", len(r.Peaks))
					}
				case ResultAudioPath:
					if filepath.Base(r.Path) != "media_editor_audio_clip.wav" {
						t.Errorf("Expected audio file name for clip, got %s", r.Path)
					}
					if _, err := os.Stat(r.Path); err != nil {
						t.Errorf("Expected extracted audio on disk: %v", err)
					}
				}
			}
		})
	}
}

func TestProbeMissingFile(t *testing.T) {
	o := newTest(t, testBackend(), nil)

	if err := o.Probe("gone", "/media/missing.mkv"); err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	r, seen := awaitResult(t, o, func(r Result) bool { return r.IsError() })
	if r.Kind != ResultError || r.Clip != "gone" {
		t.Errorf("Expected ResultError for gone, got %s for %q", r.Kind, r.Clip)
	}
	if len(seen) != 1 {
		t.Errorf("Expected the error to be the only result, got %v", kinds(seen))
	}
}

func TestProbeSharedGate(t *testing.T) {
	gate := workers.NewGate(1)
	o := newTest(t, testBackend(), func(c *Config) { c.ProbeGate = gate })

	hold, err := gate.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := o.Probe("a", videoA); err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if r, ok := o.PollResult(); ok {
		t.Fatalf("Expected no result while the permit is held elsewhere, got %s", r.Kind)
	}
	hold()
	awaitResult(t, o, func(r Result) bool { return r.Kind == ResultDuration && r.Clip == "a" })

	// A failed probe returns its permit too.
	if err := o.Probe("gone", "/media/missing.mkv"); err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	awaitResult(t, o, func(r Result) bool { return r.Clip == "gone" && r.IsError() })
	deadline := time.Now().Add(wait)
	for gate.InUse() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if gate.InUse() != 0 {
		t.Errorf("Expected the permit returned, got %d in use", gate.InUse())
	}
}

type memoryCache struct {
	mu      sync.Mutex
	records map[string]ProbeRecord
	stores  int
}

func (c *memoryCache) Lookup(path string) (ProbeRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[path]
	return rec, ok
}

func (c *memoryCache) Store(path string, rec ProbeRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[path] = rec
	c.stores++
}

func TestProbeCache(t *testing.T) {
	cache := &memoryCache{records: map[string]ProbeRecord{
		videoA: {Duration: 7.5},
	}}
	o := newTest(t, testBackend(), func(c *Config) { c.Cache = cache })

	if err := o.Probe("a", videoA); err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	r, _ := awaitResult(t, o, func(r Result) bool { return r.Kind == ResultDuration })
	if r.Duration != 7.5 {
		t.Errorf("Expected cached duration 7.5, got %v", r.Duration)
	}
	awaitResult(t, o, func(r Result) bool { return r.Kind == ResultThumbnail })

	if err := o.Probe("b", videoB); err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	awaitResult(t, o, func(r Result) bool { return r.Kind == ResultThumbnail && r.Clip == "b" })

	rec, ok := cache.Lookup(videoB)
	if !ok {
		t.Fatal("Expected probe to store its record")
	}
	if rec.Duration != 3 || rec.Width != 64 || rec.Height != 36 {
		t.Errorf("Expected {3 64 36}, got %+v", rec)
	}
}

// =============================================================================
// Encode
// =============================================================================

func encodeJob(out string, seconds float64) *encoder.Job {
	return &encoder.Job{
		Clips:  []encoder.ClipSpec{{Path: videoA, Duration: seconds, Gain: 1}},
		Width:  64,
		Height: 36,
		FPS:    30,
		Output: out,
	}
}

func isTerminal(id string) func(Result) bool {
	return func(r Result) bool {
		return r.Job == id && (r.Kind == ResultEncodeDone || r.Kind == ResultEncodeError)
	}
}

func TestEncodeDone(t *testing.T) {
	b := testBackend()
	o := newTest(t, b, nil)

	id, err := o.StartEncode(encodeJob("/exports/out.mkv", 1))
	if err != nil {
		t.Fatalf("StartEncode failed: %v", err)
	}
	if id == "" {
		t.Fatal("Expected a generated job id")
	}

	r, seen := awaitResult(t, o, isTerminal(id))
	if r.Kind != ResultEncodeDone {
		t.Fatalf("Expected encode_done, got %s: %s", r.Kind, r.Message)
	}
	if r.Path != "/exports/out.mkv" || r.FrameIndex != 30 {
		t.Errorf("Expected 30 frames at /exports/out.mkv, got %d at %s", r.FrameIndex, r.Path)
	}

	progress := 0
	for _, s := range seen {
		if s.Kind == ResultEncodeProgress {
			progress++
			if s.Job != id || s.Total != 30 {
				t.Errorf("Expected progress for %s of 30, got %s of %d", id, s.Job, s.Total)
			}
		}
	}
	if progress != 2 {
		t.Errorf("Expected 2 progress results, got %d", progress)
	}
	if jobs := o.ActiveJobs(); len(jobs) != 0 {
		t.Errorf("Expected no active jobs, got %v", jobs)
	}
	if rec, ok := b.Recording("/exports/out.mkv"); !ok || !rec.Closed {
		t.Error("Expected the output to be finalized")
	}
}

func TestEncodeKeepsJobID(t *testing.T) {
	o := newTest(t, testBackend(), nil)

	job := encodeJob("/exports/named.mkv", 0.5)
	job.ID = "named"
	id, err := o.StartEncode(job)
	if err != nil || id != "named" {
		t.Fatalf("Expected id named, got %q (%v)", id, err)
	}
	awaitResult(t, o, isTerminal(id))
}

func TestCancelEncode(t *testing.T) {
	b := testBackend()
	b.ReadDelay = func() { time.Sleep(time.Millisecond) }
	o := newTest(t, b, nil)

	id, err := o.StartEncode(encodeJob("/exports/long.mkv", 10))
	if err != nil {
		t.Fatalf("StartEncode failed: %v", err)
	}
	if jobs := o.ActiveJobs(); len(jobs) != 1 || jobs[0] != id {
		t.Fatalf("Expected active job %s, got %v", id, jobs)
	}
	awaitResult(t, o, func(r Result) bool { return r.Kind == ResultEncodeProgress })

	if !o.CancelEncode(id) {
		t.Fatal("Expected CancelEncode to find the job")
	}
	r, _ := awaitResult(t, o, isTerminal(id))
	if !r.Cancelled() {
		t.Fatalf("Expected a cancelled result, got %s: %q", r.Kind, r.Message)
	}
	if jobs := o.ActiveJobs(); len(jobs) != 0 {
		t.Errorf("Expected the cancel flag to be removed, got %v", jobs)
	}
	if o.CancelEncode(id) {
		t.Error("Expected CancelEncode on a finished job to report false")
	}
	if rec, ok := b.Recording("/exports/long.mkv"); !ok || !rec.Aborted {
		t.Error("Expected the partial output to be aborted")
	}
}

func TestEncodeInvalidJob(t *testing.T) {
	o := newTest(t, testBackend(), nil)

	job := encodeJob("/exports/empty.mkv", 1)
	job.Clips = nil
	id, err := o.StartEncode(job)
	if err != nil {
		t.Fatalf("StartEncode failed: %v", err)
	}
	r, _ := awaitResult(t, o, isTerminal(id))
	if r.Kind != ResultEncodeError || r.Cancelled() {
		t.Fatalf("Expected a genuine encode error, got %s: %q", r.Kind, r.Message)
	}
	if !strings.Contains(r.Message, "nothing to encode") {
		t.Errorf("Expected empty timeline message, got %q", r.Message)
	}
}

func TestEncodeDuplicateID(t *testing.T) {
	b := testBackend()
	entered, release := blockFirstRead(b)
	o := newTest(t, b, nil)

	job := encodeJob("/exports/one.mkv", 1)
	job.ID = "dup"
	if _, err := o.StartEncode(job); err != nil {
		t.Fatalf("StartEncode failed: %v", err)
	}
	<-entered

	again := encodeJob("/exports/two.mkv", 1)
	again.ID = "dup"
	if _, err := o.StartEncode(again); err == nil {
		t.Error("Expected a second job with the same id to be rejected")
	}
	close(release)
	awaitResult(t, o, isTerminal("dup"))
}

// =============================================================================
// Frames and audio
// =============================================================================

func TestSaveFrame(t *testing.T) {
	var (
		mu    sync.Mutex
		saved image.Image
		dest  string
	)
	o := newTest(t, testBackend(), func(c *Config) {
		c.SaveFrame = func(path string, img image.Image) error {
			mu.Lock()
			defer mu.Unlock()
			saved, dest = img, path
			return nil
		}
	})

	if err := o.SaveFrame("a", videoA, 2.5, "/stills/a.png"); err != nil {
		t.Fatalf("SaveFrame failed: %v", err)
	}
	r, _ := awaitResult(t, o, func(r Result) bool { return r.Kind == ResultFrameSaved || r.IsError() })
	if r.Kind != ResultFrameSaved || r.Path != "/stills/a.png" {
		t.Fatalf("Expected frame_saved for /stills/a.png, got %s %q", r.Kind, r.Path)
	}

	mu.Lock()
	defer mu.Unlock()
	if dest != "/stills/a.png" || saved == nil {
		t.Fatal("Expected the frame to be written")
	}
	if b := saved.Bounds(); b.Dx() != 64 || b.Dy() != 36 {
		t.Errorf("Expected native 64x36, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestSaveFrameWriteError(t *testing.T) {
	o := newTest(t, testBackend(), func(c *Config) {
		c.SaveFrame = func(string, image.Image) error { return errors.New("disk full") }
	})

	if err := o.SaveFrame("a", videoA, 1, "/stills/a.png"); err != nil {
		t.Fatalf("SaveFrame failed: %v", err)
	}
	r, _ := awaitResult(t, o, func(r Result) bool { return r.IsError() })
	if r.Message != "disk full" {
		t.Errorf("Expected disk full, got %q", r.Message)
	}
}

func TestExtractAudioWithoutStream(t *testing.T) {
	o := newTest(t, testBackend(), nil)

	if err := o.ExtractAudio("s", silent); err != nil {
		t.Fatalf("ExtractAudio failed: %v", err)
	}
	if err := o.ExtractAudio("b", videoB); err != nil {
		t.Fatalf("ExtractAudio failed: %v", err)
	}
	r, seen := awaitResult(t, o, func(r Result) bool { return r.Kind == ResultAudioPath })
	if r.Clip != "b" {
		t.Errorf("Expected audio for clip b, got %q", r.Clip)
	}
	for _, s := range seen {
		if s.IsError() {
			t.Errorf("Expected a silent source to be skipped, got error %q", s.Message)
		}
	}
}

// =============================================================================
// Shutdown
// =============================================================================

func TestShutdown(t *testing.T) {
	b := testBackend()
	b.ReadDelay = func() { time.Sleep(time.Millisecond) }
	o := New(Config{Backend: b, TempDir: t.TempDir()})

	id, err := o.StartEncode(encodeJob("/exports/long.mkv", 10))
	if err != nil {
		t.Fatalf("StartEncode failed: %v", err)
	}
	if _, err := o.StartPlayback("a", videoA, 0); err != nil {
		t.Fatalf("StartPlayback failed: %v", err)
	}
	o.RequestScrub("a", videoA, 4.0)
	awaitResult(t, o, func(r Result) bool { return r.Kind == ResultEncodeProgress })

	done := make(chan struct{})
	go func() {
		o.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(wait):
		t.Fatal("Shutdown did not return")
	}

	var cancelled bool
	for {
		r, ok := o.PollResult()
		if !ok {
			break
		}
		if r.Job == id && r.Cancelled() {
			cancelled = true
		}
	}
	if !cancelled {
		t.Error("Expected the running encode to report cancelled")
	}

	if err := o.Probe("a", videoA); !errors.Is(err, ErrShutdown) {
		t.Errorf("Expected ErrShutdown from Probe, got %v", err)
	}
	if _, err := o.StartPlayback("a", videoA, 0); !errors.Is(err, ErrShutdown) {
		t.Errorf("Expected ErrShutdown from StartPlayback, got %v", err)
	}
	if _, err := o.StartEncode(encodeJob("/exports/late.mkv", 1)); !errors.Is(err, ErrShutdown) {
		t.Errorf("Expected ErrShutdown from StartEncode, got %v", err)
	}
	o.Shutdown()
}

// =============================================================================
// Results
// =============================================================================

func TestResultKindString(t *testing.T) {
	tests := []struct {
		kind ResultKind
		want string
	}{
		{ResultAudioPath, "audio_path"},
		{ResultFrame, "frame"},
		{ResultEncodeError, "encode_error"},
		{ResultKind(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Expected %q, got %q", tt.want, got)
		}
	}
}

func TestResultJSON(t *testing.T) {
	data, err := json.Marshal(Result{Kind: ResultEncodeProgress, Job: "j1", FrameIndex: 15, Total: 300})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"kind":"encode_progress","job":"j1","frame":15,"total":300}`
	if string(data) != want {
		t.Errorf("Expected %s, got %s", want, data)
	}
}
