package encoder

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"media-editor/internal/codec"
	"media-editor/internal/codec/synth"
	"media-editor/internal/decoder"
	"media-editor/internal/planes"
	"media-editor/internal/probe"
	"media-editor/internal/transitions"
)

const (
	clipA  = "/media/a.mp4"
	clipB  = "/media/b.mp4"
	output = "/exports/out.mp4"
)

func flat(v byte) func(int) byte {
	return func(int) byte { return v }
}

func twoClipBackend() *synth.Backend {
	b := synth.New()
	b.Add(clipA, synth.Source{Duration: 5, Audio: true, Luma: flat(100)})
	b.Add(clipB, synth.Source{Duration: 5, Audio: true, Luma: flat(200)})
	return b
}

func twoClipJob() *Job {
	return &Job{
		Clips: []ClipSpec{
			{Path: clipA, Duration: 5, Gain: 1},
			{Path: clipB, Duration: 5, Gain: 1},
		},
		Width:  64,
		Height: 36,
		FPS:    30,
		Output: output,
	}
}

func runJob(t *testing.T, b *synth.Backend, job *Job) (*Result, *synth.Recording) {
	t.Helper()
	res, err := New(b, nil).Run(context.Background(), job, nil, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	rec, ok := b.Recording(job.Output)
	if !ok {
		t.Fatal("Expected a recording for the output")
	}
	return res, rec
}

// =============================================================================
// Concatenation
// =============================================================================

func TestRunTwoClipsHardCut(t *testing.T) {
	b := twoClipBackend()
	res, rec := runJob(t, b, twoClipJob())

	if res.Frames != 300 || len(rec.Frames) != 300 {
		t.Fatalf("Expected 300 frames, got %d (recorded %d)", res.Frames, len(rec.Frames))
	}
	if math.Abs(rec.VideoDuration()-10) > 1.0/30 {
		t.Errorf("Expected 10s of video, got %v", rec.VideoDuration())
	}
	if rec.Keyframes != 10 {
		t.Errorf("Expected 10 keyframes, got %d", rec.Keyframes)
	}
	if rec.Options.GOP != 30 {
		t.Errorf("Expected GOP 30, got %d", rec.Options.GOP)
	}
	for i, pts := range rec.VideoPTS {
		if pts != int64(i) {
			t.Fatalf("Expected pts %d at frame %d, got %d", i, i, pts)
		}
	}
	if rec.Luma(149) != 100 || rec.Luma(150) != 200 {
		t.Errorf("Expected cut between frames 149 and 150, got luma %d and %d", rec.Luma(149), rec.Luma(150))
	}
	if !rec.Closed || rec.Aborted {
		t.Errorf("Expected closed output, got closed=%v aborted=%v", rec.Closed, rec.Aborted)
	}
	if b.OpenReaders() != 0 {
		t.Errorf("Expected all readers closed, %d open", b.OpenReaders())
	}
}

func TestRunAudioMatchesVideo(t *testing.T) {
	b := twoClipBackend()
	_, rec := runJob(t, b, twoClipJob())

	diff := math.Abs(rec.AudioDuration() - rec.VideoDuration())
	if diff > float64(codec.AudioFrameSize)/codec.SampleRate {
		t.Errorf("Expected audio within one packet of video, differ by %vs", diff)
	}
	frames := len(rec.Samples) / codec.Channels
	if frames%codec.AudioFrameSize != 0 {
		t.Errorf("Expected whole packets, got %d sample frames", frames)
	}
	for i, pts := range rec.AudioPTS {
		if pts != int64(i*codec.AudioFrameSize) {
			t.Fatalf("Expected audio pts %d, got %d", i*codec.AudioFrameSize, pts)
		}
	}
	// 10s of source audio followed by zero padding.
	last := 10*codec.SampleRate*codec.Channels - 1
	if rec.Samples[last] != synth.DefaultAudioLevel {
		t.Errorf("Expected source audio through 10s, got %v", rec.Samples[last])
	}
	if rec.Samples[last+1] != 0 {
		t.Errorf("Expected zero padding after 10s, got %v", rec.Samples[last+1])
	}
}

func TestRunSetsGlobalHeader(t *testing.T) {
	tests := []struct {
		output string
		want   bool
	}{
		{"/exports/a.mp4", true},
		{"/exports/a.mov", true},
		{"/exports/a.mkv", false},
	}

	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			job := twoClipJob()
			job.Output = tt.output
			_, rec := runJob(t, twoClipBackend(), job)
			if rec.Options.GlobalHeader != tt.want {
				t.Errorf("Expected global header %v, got %v", tt.want, rec.Options.GlobalHeader)
			}
		})
	}
}

// =============================================================================
// Transitions
// =============================================================================

func TestRunCrossfade(t *testing.T) {
	job := twoClipJob()
	job.Transitions = []TransitionSpec{{AfterClip: 0, Kind: transitions.KindCrossfade, Duration: 1}}
	_, rec := runJob(t, twoClipBackend(), job)

	if len(rec.Frames) != 270 {
		t.Fatalf("Expected 270 frames, got %d", len(rec.Frames))
	}
	if math.Abs(rec.VideoDuration()-9) > 1.0/30 {
		t.Errorf("Expected 9s, got %v", rec.VideoDuration())
	}

	tests := []struct {
		name  string
		frame int
		want  byte
	}{
		{"before overlap", 119, 100},
		{"weight zero is outgoing", 120, 100},
		{"midpoint is half", 135, 150},
		{"after overlap is incoming", 150, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rec.Luma(tt.frame); got != tt.want {
				t.Errorf("Expected luma %d at frame %d, got %d", tt.want, tt.frame, got)
			}
		})
	}

	// Chroma stays neutral through the blend.
	mid := rec.Frames[135]
	if got := mid[planes.YLen(64, 36)]; got != 128 {
		t.Errorf("Expected neutral chroma, got %d", got)
	}
}

func TestRunTransitionMidpointUsesLocalPositions(t *testing.T) {
	b := synth.New()
	b.Add(clipA, synth.Source{Duration: 5})
	b.Add(clipB, synth.Source{Duration: 5})
	job := twoClipJob()
	job.Transitions = []TransitionSpec{{AfterClip: 0, Kind: transitions.KindCrossfade, Duration: 1}}
	_, rec := runJob(t, b, job)

	// Output frame 135 blends clip A frame 135 with clip B frame 15.
	want := planes.BlendByte(synth.LumaFor(135), synth.LumaFor(15), 0.5)
	if got := rec.Luma(135); got != want {
		t.Errorf("Expected luma %d, got %d", want, got)
	}
}

func TestRunCrossfadeAudio(t *testing.T) {
	b := synth.New()
	b.Add(clipA, synth.Source{Duration: 2, Audio: true, AudioLevel: 0.8})
	b.Add(clipB, synth.Source{Duration: 2, Audio: true, AudioLevel: 0.2})
	job := twoClipJob()
	job.Clips[0].Duration, job.Clips[1].Duration = 2, 2
	job.Transitions = []TransitionSpec{{AfterClip: 0, Kind: transitions.KindCrossfade, Duration: 1}}
	_, rec := runJob(t, b, job)

	// Output frame 45 is the overlap midpoint (weight 0.5).
	at := func(frame int) float32 {
		return rec.Samples[frame*1470*codec.Channels]
	}
	if got := at(10); math.Abs(float64(got)-0.8) > 1e-6 {
		t.Errorf("Expected 0.8 before overlap, got %v", got)
	}
	if got := at(45); math.Abs(float64(got)-0.5) > 1e-6 {
		t.Errorf("Expected 0.5 at midpoint, got %v", got)
	}
	if got := at(80); math.Abs(float64(got)-0.2) > 1e-6 {
		t.Errorf("Expected 0.2 after overlap, got %v", got)
	}
}

// =============================================================================
// Trimming, cropping and frame-rate conversion
// =============================================================================

func TestRunTrimStart(t *testing.T) {
	tests := []struct {
		name  string
		start float64
		want  byte
	}{
		{"on keyframe", 2.0, synth.LumaFor(60)},
		{"between keyframes", 2.5, synth.LumaFor(75)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := synth.New()
			b.Add(clipA, synth.Source{Duration: 5})
			job := twoClipJob()
			job.Clips = []ClipSpec{{Path: clipA, Start: tt.start, Duration: 1, Gain: 1}}
			_, rec := runJob(t, b, job)

			if len(rec.Frames) != 30 {
				t.Fatalf("Expected 30 frames, got %d", len(rec.Frames))
			}
			if got := rec.Luma(0); got != tt.want {
				t.Errorf("Expected first luma %d, got %d", tt.want, got)
			}
		})
	}
}

func TestRunShortSourceRepeatsLastFrame(t *testing.T) {
	b := synth.New()
	b.Add(clipA, synth.Source{Duration: 1})
	job := twoClipJob()
	job.Clips = []ClipSpec{{Path: clipA, Duration: 2, Gain: 1}}
	_, rec := runJob(t, b, job)

	if len(rec.Frames) != 60 {
		t.Fatalf("Expected 60 frames, got %d", len(rec.Frames))
	}
	if got, want := rec.Luma(59), synth.LumaFor(29); got != want {
		t.Errorf("Expected repeated last frame luma %d, got %d", want, got)
	}
}

func TestRunFrameRateConversion(t *testing.T) {
	b := synth.New()
	b.Add(clipA, synth.Source{Duration: 2, FPS: 25})
	job := twoClipJob()
	job.Clips = []ClipSpec{{Path: clipA, Duration: 1, Gain: 1}}
	_, rec := runJob(t, b, job)

	for j, src := range []int{0, 1, 2, 2, 3, 4, 5} {
		if got, want := rec.Luma(j), synth.LumaFor(src); got != want {
			t.Errorf("Output frame %d: expected source frame %d (luma %d), got %d", j, src, want, got)
		}
	}
}

func TestRunCenterCrop(t *testing.T) {
	tests := []struct {
		name string
		w, h int
	}{
		{"wider source", 128, 36},
		{"taller source", 48, 36},
		{"larger source", 256, 144},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := synth.New()
			b.Add(clipA, synth.Source{Duration: 1, Width: tt.w, Height: tt.h, Luma: flat(80)})
			job := twoClipJob()
			job.Clips = []ClipSpec{{Path: clipA, Duration: 1, Gain: 1}}
			_, rec := runJob(t, b, job)

			frame := rec.Frames[0]
			if len(frame) != planes.PackedLen(64, 36) {
				t.Fatalf("Expected %d bytes, got %d", planes.PackedLen(64, 36), len(frame))
			}
			for i, v := range frame[:planes.YLen(64, 36)] {
				if v != 80 {
					t.Fatalf("Expected flat luma 80, got %d at %d", v, i)
				}
			}
		})
	}
}

// =============================================================================
// Audio
// =============================================================================

func TestRunAudioGainAndSkip(t *testing.T) {
	tests := []struct {
		name string
		clip ClipSpec
		want float32
	}{
		{"unity", ClipSpec{Path: clipA, Duration: 1, Gain: 1}, 0.5},
		{"half gain", ClipSpec{Path: clipA, Duration: 1, Gain: 0.5}, 0.25},
		{"skipped", ClipSpec{Path: clipA, Duration: 1, Gain: 1, SkipAudio: true}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := synth.New()
			b.Add(clipA, synth.Source{Duration: 3, Audio: true})
			job := twoClipJob()
			job.Clips = []ClipSpec{tt.clip}
			_, rec := runJob(t, b, job)

			if got := rec.Samples[0]; got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRunAudioBoundedToClipDuration(t *testing.T) {
	b := synth.New()
	b.Add(clipA, synth.Source{Duration: 5, Audio: true})
	job := twoClipJob()
	job.Clips = []ClipSpec{{Path: clipA, Duration: 1, Gain: 1}}
	_, rec := runJob(t, b, job)

	audible := 0
	for i := 0; i < len(rec.Samples); i += codec.Channels {
		if rec.Samples[i] != 0 {
			audible++
		}
	}
	if audible != codec.SampleRate {
		t.Errorf("Expected %d audible sample frames, got %d", codec.SampleRate, audible)
	}
}

func TestRunSourceWithoutAudio(t *testing.T) {
	b := synth.New()
	b.Add(clipA, synth.Source{Duration: 1})
	job := twoClipJob()
	job.Clips = []ClipSpec{{Path: clipA, Duration: 1, Gain: 1}}
	_, rec := runJob(t, b, job)

	if math.Abs(rec.AudioDuration()-rec.VideoDuration()) > float64(codec.AudioFrameSize)/codec.SampleRate {
		t.Errorf("Expected silent track matching video, got %vs vs %vs", rec.AudioDuration(), rec.VideoDuration())
	}
}

// =============================================================================
// Progress, cancellation and failure
// =============================================================================

func TestRunProgress(t *testing.T) {
	b := twoClipBackend()
	var calls [][2]int
	_, err := New(b, nil).Run(context.Background(), twoClipJob(), nil, func(frame, total int) {
		calls = append(calls, [2]int{frame, total})
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(calls) != 20 {
		t.Fatalf("Expected 20 progress reports, got %d", len(calls))
	}
	if calls[0] != [2]int{15, 300} || calls[19] != [2]int{300, 300} {
		t.Errorf("Expected first (15, 300) and last (300, 300), got %v and %v", calls[0], calls[19])
	}
}

func TestRunCancel(t *testing.T) {
	b := twoClipBackend()
	cancel := new(atomic.Bool)
	reports := 0
	_, err := New(b, nil).Run(context.Background(), twoClipJob(), cancel, func(frame, total int) {
		reports++
		cancel.Store(true)
	})
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("Expected ErrCancelled, got %v", err)
	}
	if err.Error() != "cancelled" {
		t.Errorf("Expected message %q, got %q", "cancelled", err.Error())
	}
	rec, _ := b.Recording(output)
	if !rec.Aborted {
		t.Error("Expected output to be aborted")
	}
	if len(rec.Frames) != 16 {
		t.Errorf("Expected cancellation after one more frame (16), got %d", len(rec.Frames))
	}
	if reports != 1 {
		t.Errorf("Expected 1 progress report, got %d", reports)
	}
	if b.OpenReaders() != 0 {
		t.Errorf("Expected all readers closed, %d open", b.OpenReaders())
	}
}

func TestRunContextCancel(t *testing.T) {
	b := twoClipBackend()
	ctx, cancel := context.WithCancel(context.Background())
	b.ReadDelay = func() {
		if b.Opens() > 0 {
			cancel()
		}
	}
	_, err := New(b, nil).Run(ctx, twoClipJob(), nil, nil)
	if err == nil {
		t.Fatal("Expected error after context cancellation")
	}
	if b.OpenReaders() != 0 {
		t.Errorf("Expected all readers closed, %d open", b.OpenReaders())
	}
}

func TestRunMissingClip(t *testing.T) {
	b := synth.New()
	b.Add(clipA, synth.Source{Duration: 5})
	_, err := New(b, nil).Run(context.Background(), twoClipJob(), nil, nil)
	if err == nil {
		t.Fatal("Expected error for missing second clip")
	}
	rec, _ := b.Recording(output)
	if !rec.Aborted {
		t.Error("Expected output to be aborted")
	}
}

func TestRunInvalidJob(t *testing.T) {
	job := twoClipJob()
	job.Clips = nil
	if _, err := New(synth.New(), nil).Run(context.Background(), job, nil, nil); err == nil {
		t.Error("Expected validation error")
	}
}

// =============================================================================
// Round trip
// =============================================================================

func TestRoundTrip(t *testing.T) {
	b := twoClipBackend()
	job := twoClipJob()
	job.Transitions = []TransitionSpec{{AfterClip: 0, Kind: transitions.KindCrossfade, Duration: 1}}
	runJob(t, b, job)

	ctx := context.Background()
	d, err := probe.Duration(ctx, b, output)
	if err != nil {
		t.Fatalf("Probe of export failed: %v", err)
	}
	if math.Abs(d-9) > 1.0/30 {
		t.Errorf("Expected 9s, got %v", d)
	}

	dec, err := decoder.Open(ctx, b, output, decoder.Options{}, nil)
	if err != nil {
		t.Fatalf("Decoder open of export failed: %v", err)
	}
	defer dec.Close()
	if _, err := dec.Seek(6); err != nil {
		t.Fatal(err)
	}
	f, err := dec.AdvanceTo(6)
	if err != nil {
		t.Fatalf("AdvanceTo failed: %v", err)
	}
	if math.Abs(f.PTS-6) > 1.0/30 {
		t.Errorf("Expected frame near 6s, got %v", f.PTS)
	}
	if f.Image.Pix[0] != 200 {
		t.Errorf("Expected incoming clip luma 200, got %d", f.Image.Pix[0])
	}
}

func TestRoundTripWithoutGlobalHeaderFails(t *testing.T) {
	b := synth.New()
	mux, err := b.NewMuxer(context.Background(), codec.MuxerOptions{Path: output, Width: 64, Height: 36, FPS: 30})
	if err != nil {
		t.Fatal(err)
	}
	if err := mux.WriteHeader(); err != nil {
		t.Fatal(err)
	}
	if err := mux.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := probe.Duration(context.Background(), b, output); !errors.Is(err, synth.ErrUnreadable) {
		t.Errorf("Expected unreadable output, got %v", err)
	}
}
