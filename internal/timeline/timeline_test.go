package timeline

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"media-editor/internal/mediatypes"
	"media-editor/internal/transitions"
)

// =============================================================================
// Formatting
// =============================================================================

func TestFormatTime(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "00:00:00"},
		{61.5, "01:01:15"},
		{3599, "59:59:00"},
		{1.0 / 30, "00:00:01"},
		{-3, "00:00:00"},
	}
	for _, tt := range tests {
		if got := FormatTime(tt.in); got != tt.want {
			t.Errorf("FormatTime(%v): expected %s, got %s", tt.in, tt.want, got)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{4.2, "4.2s"},
		{0, "0.0s"},
		{59.94, "59.9s"},
		{60, "1:00"},
		{187, "3:07"},
		{3600, "1:00:00"},
		{3875, "1:04:35"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%v): expected %s, got %s", tt.in, tt.want, got)
		}
	}
}

// =============================================================================
// Aspect
// =============================================================================

func TestDetectAspect(t *testing.T) {
	tests := []struct {
		name string
		w, h int
		want Aspect
	}{
		{"full hd", 1920, 1080, Aspect16x9},
		{"vertical", 1080, 1920, Aspect9x16},
		{"square", 1000, 1000, Aspect1x1},
		{"classic tv", 640, 480, Aspect4x3},
		{"dv", 720, 480, Aspect3x2},
		{"instagram portrait", 1080, 1350, Aspect4x5},
		{"ultrawide", 2560, 1080, Aspect21x9},
		{"odd landscape", 1000, 300, Aspect16x9},
		{"odd portrait", 300, 1000, Aspect9x16},
		{"unknown size", 0, 0, Aspect16x9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectAspect(tt.w, tt.h); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestOutputSize(t *testing.T) {
	tests := []struct {
		aspect Aspect
		short  int
		w, h   int
	}{
		{Aspect16x9, 1080, 1920, 1080},
		{Aspect9x16, 1080, 1080, 1920},
		{Aspect1x1, 720, 720, 720},
		{Aspect21x9, 1080, 2520, 1080},
		{AspectAnamorphic, 1080, 2580, 1080},
		{Aspect4x5, 1080, 1080, 1350},
	}
	for _, tt := range tests {
		t.Run(tt.aspect.String(), func(t *testing.T) {
			w, h := tt.aspect.OutputSize(tt.short)
			if w != tt.w || h != tt.h {
				t.Errorf("Expected %dx%d, got %dx%d", tt.w, tt.h, w, h)
			}
		})
	}
}

func TestParseAspect(t *testing.T) {
	for i := range aspects {
		a := Aspect(i)
		got, err := ParseAspect(a.String())
		if err != nil || got != a {
			t.Errorf("Expected %s to parse back, got %s (%v)", a, got, err)
		}
	}
	if _, err := ParseAspect("5:4"); err == nil {
		t.Error("Expected an unknown aspect to fail")
	}
}

// =============================================================================
// Library and placement
// =============================================================================

func TestAddMedia(t *testing.T) {
	tl := New()
	v := tl.AddMedia("/media/clip.mp4")
	a := tl.AddMedia("/media/song.mp3")
	again := tl.AddMedia("/media/clip.mp4")

	if v != again {
		t.Error("Expected importing a path twice to return the same id")
	}
	if len(tl.Library) != 2 {
		t.Fatalf("Expected 2 library entries, got %d", len(tl.Library))
	}
	if m, _ := tl.Media(v); m.Kind != mediatypes.KindVideo || m.Name != "clip.mp4" {
		t.Errorf("Expected video clip.mp4, got %s %s", m.Kind, m.Name)
	}
	if m, _ := tl.Media(a); m.Kind != mediatypes.KindAudio {
		t.Errorf("Expected audio, got %s", m.Kind)
	}
}

func TestPlace(t *testing.T) {
	tl := New()
	v := tl.AddMedia("/media/v.mp4")
	a := tl.AddMedia("/media/a.wav")
	tl.SetProbe(v, 5, 1920, 1080)
	tl.SetProbe(a, 3, 0, 0)

	tests := []struct {
		name  string
		media uuid.UUID
		at    float64
		row   int
		track int
		start float64
	}{
		{"empty track starts at zero", v, 7, TrackV1, TrackV1, 0},
		{"near the end snaps to it", v, 5.6, TrackV1, TrackV1, 5},
		{"far from the end stays", v, 20, TrackV1, TrackV1, 20},
		{"video dropped on audio row", v, 3, TrackA1, TrackV1, 3},
		{"audio dropped on video row", a, 2, TrackV2, TrackA2, 0},
		{"audio clamps to last row", a, 0.2, 9, TrackA2, 0},
		{"near zero snaps to zero", a, 0.3, TrackA1, TrackA1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := tl.Place(tt.media, tt.at, tt.row)
			if !ok {
				t.Fatal("Place failed")
			}
			c, _ := tl.Clip(id)
			if c.Track != tt.track || c.Start != tt.start {
				t.Errorf("Expected track %d at %v, got track %d at %v", tt.track, tt.start, c.Track, c.Start)
			}
		})
	}

	if _, ok := tl.Place(uuid.New(), 0, 0); ok {
		t.Error("Expected placing unknown media to fail")
	}
}

func TestSetProbe(t *testing.T) {
	tl := New()
	v := tl.AddMedia("/media/v.mp4")
	id, _ := tl.Place(v, 0, TrackV1)
	if c, _ := tl.Clip(id); c.Duration != 1 {
		t.Fatalf("Expected placeholder duration 1, got %v", c.Duration)
	}

	tl.SetProbe(v, 12, 1080, 1920)
	if c, _ := tl.Clip(id); c.Duration != 12 {
		t.Errorf("Expected the clip to grow to 12, got %v", c.Duration)
	}
	if tl.Aspect != Aspect9x16 {
		t.Errorf("Expected the first video to set 9:16, got %s", tl.Aspect)
	}

	w := tl.AddMedia("/media/w.mp4")
	tl.SetProbe(w, 4, 1920, 1080)
	if tl.Aspect != Aspect9x16 {
		t.Errorf("Expected later videos to leave the aspect alone, got %s", tl.Aspect)
	}
}

// =============================================================================
// Linked clips
// =============================================================================

func TestExtractAudioLinksBothWays(t *testing.T) {
	tl := New()
	v := tl.AddMedia("/media/v.mp4")
	tl.SetProbe(v, 5, 1920, 1080)
	video, _ := tl.Place(v, 0, TrackV2)

	audio, ok := tl.ExtractAudio(video)
	if !ok {
		t.Fatal("ExtractAudio failed")
	}

	got, ok := tl.Linked(video)
	if !ok || got.ID != audio {
		t.Fatal("Expected the video clip to resolve its audio clip")
	}
	if got.Track != TrackA2 || got.Start != 0 || got.Duration != 5 {
		t.Errorf("Expected A2 at 0 for 5s, got track %d at %v for %v", got.Track, got.Start, got.Duration)
	}
	back, ok := tl.Linked(audio)
	if !ok || back.ID != video || !back.AudioMuted {
		t.Error("Expected the audio clip to resolve the muted video clip")
	}

	if _, ok := tl.ExtractAudio(video); ok {
		t.Error("Expected a second extraction to be refused")
	}
	if _, ok := tl.ExtractAudio(audio); ok {
		t.Error("Expected extraction from an audio clip to be refused")
	}
}

func TestRemoveClipUnlinks(t *testing.T) {
	tl := New()
	v := tl.AddMedia("/media/v.mp4")
	video, _ := tl.Place(v, 0, TrackV1)
	audio, _ := tl.ExtractAudio(video)
	tl.SetTransition(video, transitions.KindCrossfade, 1)

	if !tl.RemoveClip(audio) {
		t.Fatal("RemoveClip failed")
	}
	if _, ok := tl.Linked(video); ok {
		t.Error("Expected the video clip to be unlinked")
	}
	if c, _ := tl.Clip(video); !c.AudioMuted {
		t.Error("Expected the video clip to stay muted")
	}

	tl.RemoveClip(video)
	if len(tl.Transitions) != 0 {
		t.Errorf("Expected the transition to go with its clip, got %d", len(tl.Transitions))
	}
}

func TestRemoveMedia(t *testing.T) {
	tl := New()
	v := tl.AddMedia("/media/v.mp4")
	w := tl.AddMedia("/media/w.mp4")
	tl.Place(v, 0, TrackV1)
	tl.Place(v, 0, TrackV2)
	tl.Place(w, 0, TrackV1)

	if !tl.RemoveMedia(v) {
		t.Fatal("RemoveMedia failed")
	}
	if len(tl.Library) != 1 || len(tl.Clips) != 1 {
		t.Errorf("Expected 1 media and 1 clip left, got %d and %d", len(tl.Library), len(tl.Clips))
	}
	if tl.RemoveMedia(v) {
		t.Error("Expected removing twice to report false")
	}
}

func TestClipAtAndDuration(t *testing.T) {
	tl := New()
	v := tl.AddMedia("/media/v.mp4")
	tl.SetProbe(v, 4, 0, 0)
	first, _ := tl.Place(v, 0, TrackV1)
	second, _ := tl.Place(v, 4, TrackV1)

	tests := []struct {
		time float64
		want uuid.UUID
	}{
		{0, first},
		{3.99, first},
		{4, second},
		{7.5, second},
		{8, uuid.Nil},
	}
	for _, tt := range tests {
		c, ok := tl.ClipAt(TrackV1, tt.time)
		switch {
		case tt.want == uuid.Nil && ok:
			t.Errorf("At %v: expected a gap, got %s", tt.time, c.ID)
		case tt.want != uuid.Nil && (!ok || c.ID != tt.want):
			t.Errorf("At %v: expected %s", tt.time, tt.want)
		}
	}
	if d := tl.TotalDuration(); d != 8 {
		t.Errorf("Expected total 8, got %v", d)
	}
}

// =============================================================================
// Export jobs
// =============================================================================

func TestBuildJob(t *testing.T) {
	tl := New()
	a := tl.AddMedia("/media/a.mp4")
	b := tl.AddMedia("/media/b.mp4")
	tl.SetProbe(a, 5, 1920, 1080)
	tl.SetProbe(b, 4, 1920, 1080)

	second, _ := tl.Place(b, 10, TrackV1) // empty track: lands at zero
	first, _ := tl.Place(a, 0, TrackV1)
	c, _ := tl.Clip(second)
	c.Start, c.Offset, c.Duration, c.Volume = 5, 1, 3, 0.5
	tl.SetTransition(first, transitions.KindCrossfade, 0.5)

	job, err := tl.BuildJob(ExportOptions{Output: "/exports/out.mp4", Short: 720})
	if err != nil {
		t.Fatalf("BuildJob failed: %v", err)
	}
	if job.Width != 1280 || job.Height != 720 || job.FPS != 30 {
		t.Errorf("Expected 1280x720@30, got %dx%d@%d", job.Width, job.Height, job.FPS)
	}
	if len(job.Clips) != 2 {
		t.Fatalf("Expected 2 clips, got %d", len(job.Clips))
	}
	if job.Clips[0].Path != "/media/a.mp4" || job.Clips[1].Path != "/media/b.mp4" {
		t.Errorf("Expected timeline order a, b; got %s, %s", job.Clips[0].Path, job.Clips[1].Path)
	}
	if c := job.Clips[1]; c.Start != 1 || c.Duration != 3 || c.Gain != 0.5 || c.SkipAudio {
		t.Errorf("Expected offset 1, 3s at gain 0.5 with audio, got %+v", c)
	}
	if len(job.Transitions) != 1 || job.Transitions[0].AfterClip != 0 || job.Transitions[0].Kind != transitions.KindCrossfade {
		t.Errorf("Expected one crossfade after clip 0, got %+v", job.Transitions)
	}
}

func TestBuildJobAudioFollowsLink(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(tl *Timeline, video, audio uuid.UUID)
		gain      float64
		skipAudio bool
	}{
		{
			name:  "aligned linked clip carries the sound",
			setup: func(tl *Timeline, _, audio uuid.UUID) { c, _ := tl.Clip(audio); c.Volume = 0.8 },
			gain:  0.8,
		},
		{
			name:      "moved linked clip mutes the video",
			setup:     func(tl *Timeline, _, audio uuid.UUID) { c, _ := tl.Clip(audio); c.Start = 2 },
			skipAudio: true,
		},
		{
			name:      "deleted linked clip mutes the video",
			setup:     func(tl *Timeline, _, audio uuid.UUID) { tl.RemoveClip(audio) },
			skipAudio: true,
		},
		{
			name:      "silent linked clip skips audio",
			setup:     func(tl *Timeline, _, audio uuid.UUID) { c, _ := tl.Clip(audio); c.Volume = 0 },
			skipAudio: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl := New()
			v := tl.AddMedia("/media/v.mp4")
			tl.SetProbe(v, 4, 1920, 1080)
			video, _ := tl.Place(v, 0, TrackV1)
			audio, _ := tl.ExtractAudio(video)
			tt.setup(tl, video, audio)

			job, err := tl.BuildJob(ExportOptions{Output: "/exports/out.mkv"})
			if err != nil {
				t.Fatalf("BuildJob failed: %v", err)
			}
			c := job.Clips[0]
			if c.Gain != tt.gain || c.SkipAudio != tt.skipAudio {
				t.Errorf("Expected gain %v skip %v, got gain %v skip %v", tt.gain, tt.skipAudio, c.Gain, c.SkipAudio)
			}
		})
	}
}

func TestBuildJobErrors(t *testing.T) {
	tl := New()
	if _, err := tl.BuildJob(ExportOptions{Output: "/out.mp4"}); !errors.Is(err, ErrEmptyTrack) {
		t.Errorf("Expected ErrEmptyTrack, got %v", err)
	}

	v := tl.AddMedia("/media/v.mp4")
	tl.Place(v, 0, TrackV1)
	if _, err := tl.BuildJob(ExportOptions{}); err == nil {
		t.Error("Expected a job without output to fail validation")
	}
}

// =============================================================================
// Persistence
// =============================================================================

func TestSaveLoad(t *testing.T) {
	tl := New()
	v := tl.AddMedia("/media/v.mp4")
	tl.SetProbe(v, 6, 1080, 1080)
	video, _ := tl.Place(v, 0, TrackV1)
	audio, _ := tl.ExtractAudio(video)
	tl.SetTransition(video, transitions.KindWipe, 0.5)

	path := filepath.Join(t.TempDir(), "project.yaml")
	if err := tl.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got.Aspect != Aspect1x1 {
		t.Errorf("Expected 1:1, got %s", got.Aspect)
	}
	if len(got.Library) != 1 || len(got.Clips) != 2 || len(got.Transitions) != 1 {
		t.Fatalf("Expected 1 media, 2 clips, 1 transition; got %d, %d, %d",
			len(got.Library), len(got.Clips), len(got.Transitions))
	}
	if l, ok := got.Linked(video); !ok || l.ID != audio {
		t.Error("Expected the link to survive a round trip")
	}
	if tr, _ := got.TransitionAfter(video); tr.Kind != transitions.KindWipe {
		t.Errorf("Expected wipe, got %s", tr.Kind)
	}
}

func TestLoadDefaultsVolume(t *testing.T) {
	const project = `aspect: "16:9"
library:
  - id: 6f1c1e2a-6a4e-4d8e-9d7e-1a2b3c4d5e6f
    path: /media/v.mp4
    name: v.mp4
    kind: video
    duration: 4
    probed: true
    width: 1920
    height: 1080
clips:
  - id: 0b7d4c1e-2f3a-4b5c-8d9e-0f1a2b3c4d5e
    media: 6f1c1e2a-6a4e-4d8e-9d7e-1a2b3c4d5e6f
    start: 0
    duration: 4
    track: 0
  - id: 1c8e5d2f-3a4b-4c6d-9e0f-1a2b3c4d5e6f
    media: 6f1c1e2a-6a4e-4d8e-9d7e-1a2b3c4d5e6f
    start: 4
    duration: 4
    track: 0
    volume: 0
`
	path := filepath.Join(t.TempDir(), "hand.yaml")
	if err := os.WriteFile(path, []byte(project), 0o644); err != nil {
		t.Fatal(err)
	}
	tl, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(tl.Clips) != 2 {
		t.Fatalf("Expected 2 clips, got %d", len(tl.Clips))
	}
	if tl.Clips[0].Volume != 1 || tl.Clips[1].Volume != 0 {
		t.Errorf("Expected volumes 1 and 0, got %v and %v", tl.Clips[0].Volume, tl.Clips[1].Volume)
	}

	job, err := tl.BuildJob(ExportOptions{Output: "/out/hand.mp4"})
	if err != nil {
		t.Fatalf("BuildJob failed: %v", err)
	}
	if job.Clips[0].Gain != 1 || job.Clips[0].SkipAudio {
		t.Errorf("Expected the clip without a volume to keep its audio, got %+v", job.Clips[0])
	}
	if !job.Clips[1].SkipAudio {
		t.Errorf("Expected the muted clip to skip audio, got %+v", job.Clips[1])
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "none.yaml")); err == nil {
		t.Error("Expected an error for a missing project")
	}
}
