package transcoder

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"media-editor/internal/codec"
	"media-editor/internal/planes"
)

// ===========================================================================
// ffprobe parsing
// ===========================================================================

const sampleProbe = `{
  "streams": [
    {
      "index": 0,
      "codec_name": "mjpeg",
      "codec_type": "video",
      "width": 600,
      "height": 600,
      "disposition": { "default": 0, "attached_pic": 1 }
    },
    {
      "index": 1,
      "codec_name": "h264",
      "codec_type": "video",
      "pix_fmt": "yuv420p",
      "width": 1920,
      "height": 1080,
      "avg_frame_rate": "30000/1001",
      "r_frame_rate": "30000/1001",
      "time_base": "1/30000",
      "duration": "12.012000",
      "disposition": { "default": 1, "attached_pic": 0 }
    },
    {
      "index": 2,
      "codec_name": "aac",
      "codec_type": "audio",
      "sample_rate": "48000",
      "channels": 2,
      "time_base": "1/48000",
      "duration": "12.000000"
    }
  ],
  "format": {
    "filename": "/media/clip.mp4",
    "format_name": "mov,mp4,m4a,3gp,3g2,mj2",
    "start_time": "0.021333",
    "duration": "12.034000"
  }
}`

func TestParseProbeJSON(t *testing.T) {
	info, err := ParseProbeJSON([]byte(sampleProbe))
	if err != nil {
		t.Fatalf("ParseProbeJSON failed: %v", err)
	}

	if info.Duration != 12.034 {
		t.Errorf("Expected duration 12.034, got %v", info.Duration)
	}
	if info.StartTime != 0.021333 {
		t.Errorf("Expected start time 0.021333, got %v", info.StartTime)
	}
	if len(info.Streams) != 3 {
		t.Fatalf("Expected 3 streams, got %d", len(info.Streams))
	}
	if info.Streams[0].Kind != codec.StreamOther {
		t.Errorf("Expected cover art to be StreamOther, got %v", info.Streams[0].Kind)
	}

	v, ok := info.Video()
	if !ok {
		t.Fatal("Expected a video stream")
	}
	if v.Index != 1 || v.Width != 1920 || v.Height != 1080 {
		t.Errorf("Expected stream 1 at 1920x1080, got stream %d at %dx%d", v.Index, v.Width, v.Height)
	}
	if v.FrameRate != (codec.Rational{Num: 30000, Den: 1001}) {
		t.Errorf("Expected 30000/1001, got %v", v.FrameRate)
	}

	a, ok := info.Audio()
	if !ok {
		t.Fatal("Expected an audio stream")
	}
	if a.SampleRate != 48000 || a.Channels != 2 {
		t.Errorf("Expected 48000 Hz stereo, got %d Hz x%d", a.SampleRate, a.Channels)
	}
}

func TestParseProbeJSONStreamDuration(t *testing.T) {
	data := `{"streams":[{"index":0,"codec_type":"audio","codec_name":"flac","sample_rate":"44100","channels":1,"duration":"3.5"}],
	"format":{"format_name":"flac","duration":"N/A"}}`
	info, err := ParseProbeJSON([]byte(data))
	if err != nil {
		t.Fatalf("ParseProbeJSON failed: %v", err)
	}
	if info.Duration != 3.5 {
		t.Errorf("Expected stream duration fallback 3.5, got %v", info.Duration)
	}
	if _, ok := info.Video(); ok {
		t.Error("Expected no video stream")
	}
}

func TestParseProbeJSONInvalid(t *testing.T) {
	if _, err := ParseProbeJSON([]byte("not json")); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

// ===========================================================================
// showinfo parsing
// ===========================================================================

func TestParseShowinfo(t *testing.T) {
	tests := []struct {
		name string
		line string
		want float64
		ok   bool
	}{
		{
			name: "frame line",
			line: "[Parsed_showinfo_0 @ 0x55d0c8e0] n:   3 pts:  12012 pts_time:0.4004  duration:1001 fmt:yuv420p",
			want: 0.4004,
			ok:   true,
		},
		{
			name: "integer time",
			line: "[Parsed_showinfo_1 @ 0x1] n:0 pts:0 pts_time:2 duration:1",
			want: 2,
			ok:   true,
		},
		{
			name: "negative time",
			line: "[Parsed_showinfo_0 @ 0x1] n:0 pts:-512 pts_time:-0.04",
			want: -0.04,
			ok:   true,
		},
		{
			name: "side data line",
			line: "[Parsed_showinfo_0 @ 0x1]   color_range:tv color_space:bt709",
		},
		{
			name: "other filter",
			line: "frame=   10 fps=0.0 q=-0.0 size=N/A time=00:00:00.40 pts_time:0.4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseShowinfo(tt.line)
			if ok != tt.ok {
				t.Fatalf("Expected ok=%v, got %v", tt.ok, ok)
			}
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

// ===========================================================================
// Argument builders
// ===========================================================================

func argValue(args []string, flag string) (string, bool) {
	i := slices.Index(args, flag)
	if i < 0 || i+1 >= len(args) {
		return "", false
	}
	return args[i+1], true
}

func TestVideoArgs(t *testing.T) {
	t.Run("from start", func(t *testing.T) {
		args := VideoArgs("in.mp4", 0, 0, 1920, 1080)
		if slices.Contains(args, "-ss") {
			t.Error("Expected no -ss when starting at zero")
		}
		if slices.Contains(args, "-threads") {
			t.Error("Expected no -threads when zero")
		}
		if vf, _ := argValue(args, "-vf"); vf != "showinfo" {
			t.Errorf("Expected filter showinfo, got %q", vf)
		}
		if args[len(args)-1] != "pipe:1" {
			t.Errorf("Expected output pipe:1, got %q", args[len(args)-1])
		}
	})

	t.Run("seek", func(t *testing.T) {
		args := VideoArgs("in.mp4", 4.5, 2, 1920, 1080)
		ss, ok := argValue(args, "-ss")
		if !ok || ss != "4.500000" {
			t.Errorf("Expected -ss 4.500000, got %q", ss)
		}
		if !slices.Contains(args, "-noaccurate_seek") || !slices.Contains(args, "-copyts") {
			t.Errorf("Expected keyframe seek with copied timestamps, got %v", args)
		}
		if slices.Index(args, "-ss") > slices.Index(args, "-i") {
			t.Error("Expected -ss before -i")
		}
		if th, _ := argValue(args, "-threads"); th != "2" {
			t.Errorf("Expected -threads 2, got %q", th)
		}
	})

	t.Run("odd size", func(t *testing.T) {
		args := VideoArgs("in.mp4", 0, 0, 641, 361)
		if vf, _ := argValue(args, "-vf"); vf != "crop=640:360:0:0,showinfo" {
			t.Errorf("Expected crop before showinfo, got %q", vf)
		}
	})
}

func TestAudioArgs(t *testing.T) {
	args := AudioArgs("in.wav", codec.AudioOptions{SampleRate: 2000, Channels: 1, Start: 1.5, Duration: 2})
	checks := map[string]string{
		"-ss": "1.500000",
		"-t":  "2.000000",
		"-ar": "2000",
		"-ac": "1",
		"-f":  "f32le",
	}
	for flag, want := range checks {
		if got, _ := argValue(args, flag); got != want {
			t.Errorf("Expected %s %s, got %q", flag, want, got)
		}
	}

	args = AudioArgs("in.wav", codec.AudioOptions{})
	if slices.Contains(args, "-ss") || slices.Contains(args, "-t") {
		t.Errorf("Expected no trimming, got %v", args)
	}
	if got, _ := argValue(args, "-ar"); got != "44100" {
		t.Errorf("Expected default rate 44100, got %q", got)
	}
}

func TestMuxArgs(t *testing.T) {
	t.Run("mp4 with audio", func(t *testing.T) {
		args := MuxArgs(codec.MuxerOptions{
			Path: "out.mp4", Width: 1280, Height: 720, FPS: 30,
			Audio: true, GlobalHeader: true,
		})
		joined := strings.Join(args, " ")
		for _, want := range []string{
			"-s 1280x720",
			"-i pipe:0",
			"-i pipe:3",
			"-map 1:a:0",
			"-c:v libx264",
			"-crf 23",
			"-preset medium",
			"-g 30",
			"-flags +global_header",
			"-c:a aac",
			"-b:a 128k",
			"-ar 44100",
			"-ac 2",
			"-movflags +faststart",
		} {
			if !strings.Contains(joined, want) {
				t.Errorf("Expected %q in %s", want, joined)
			}
		}
		if args[len(args)-1] != "out.mp4" {
			t.Errorf("Expected output path last, got %q", args[len(args)-1])
		}
	})

	t.Run("mkv without audio", func(t *testing.T) {
		args := MuxArgs(codec.MuxerOptions{
			Path: "out.mkv", Width: 640, Height: 360, FPS: 25, GOP: 50, CRF: 18, Preset: "fast",
		})
		joined := strings.Join(args, " ")
		for _, absent := range []string{"pipe:3", "-c:a", "+global_header", "+faststart"} {
			if strings.Contains(joined, absent) {
				t.Errorf("Expected no %q in %s", absent, joined)
			}
		}
		for _, want := range []string{"-g 50", "-crf 18", "-preset fast", "-framerate 25"} {
			if !strings.Contains(joined, want) {
				t.Errorf("Expected %q in %s", want, joined)
			}
		}
	})
}

// ===========================================================================
// Muxer validation
// ===========================================================================

func TestNewMuxerValidation(t *testing.T) {
	tr := New(Options{})
	tests := []struct {
		name string
		opts codec.MuxerOptions
	}{
		{"no path", codec.MuxerOptions{Width: 64, Height: 36, FPS: 30}},
		{"odd width", codec.MuxerOptions{Path: "a.mp4", Width: 63, Height: 36, FPS: 30}},
		{"zero height", codec.MuxerOptions{Path: "a.mp4", Width: 64, FPS: 30}},
		{"no fps", codec.MuxerOptions{Path: "a.mp4", Width: 64, Height: 36}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tr.NewMuxer(context.Background(), tt.opts); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestMuxerBeforeHeader(t *testing.T) {
	tr := New(Options{})
	mux, err := tr.NewMuxer(context.Background(), codec.MuxerOptions{Path: "a.mkv", Width: 64, Height: 36, FPS: 30, Audio: true})
	if err != nil {
		t.Fatalf("NewMuxer failed: %v", err)
	}
	if _, err := mux.AudioTimeBase(); !errors.Is(err, codec.ErrHeaderNotWritten) {
		t.Errorf("Expected ErrHeaderNotWritten, got %v", err)
	}
	if err := mux.WriteVideo(make([]byte, planes.PackedLen(64, 36)), 0); !errors.Is(err, codec.ErrHeaderNotWritten) {
		t.Errorf("Expected ErrHeaderNotWritten, got %v", err)
	}
	if err := mux.Abort(); err != nil {
		t.Errorf("Expected abort before header to succeed, got %v", err)
	}
}

func TestMissingBinary(t *testing.T) {
	tr := New(Options{FFmpeg: "/nonexistent/ffmpeg", FFprobe: "/nonexistent/ffprobe"})
	if err := tr.Available(); !errors.Is(err, ErrFFmpegNotFound) {
		t.Errorf("Expected ErrFFmpegNotFound, got %v", err)
	}
	if _, err := tr.Open(context.Background(), "clip.mp4"); !errors.Is(err, ErrFFmpegNotFound) {
		t.Errorf("Expected ErrFFmpegNotFound from Open, got %v", err)
	}
}

// ===========================================================================
// Round trip through real ffmpeg
// ===========================================================================

func requireFFmpeg(t *testing.T) *Transcoder {
	t.Helper()
	tr := New(Options{})
	if err := tr.Available(); err != nil {
		t.Skipf("ffmpeg not available: %v", err)
	}
	t.Cleanup(tr.Cleanup)
	return tr
}

func TestRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping ffmpeg round trip in short mode")
	}
	tr := requireFFmpeg(t)
	ctx := context.Background()
	out := filepath.Join(t.TempDir(), "out.mkv")

	const w, h, fps, frames = 64, 36, 10, 20
	mux, err := tr.NewMuxer(ctx, codec.MuxerOptions{
		Path: out, Width: w, Height: h, FPS: fps, Audio: true, Preset: "ultrafast",
	})
	if err != nil {
		t.Fatalf("NewMuxer failed: %v", err)
	}
	if err := mux.WriteHeader(); err != nil {
		t.Fatalf("WriteHeader failed: %v", err)
	}
	tb, err := mux.AudioTimeBase()
	if err != nil || tb.Den != codec.SampleRate {
		t.Fatalf("Expected time base 1/%d, got %v (%v)", codec.SampleRate, tb, err)
	}

	frame := make([]byte, planes.PackedLen(w, h))
	perFrame := codec.SampleRate / fps
	samples := make([]float32, perFrame*codec.Channels)
	for i := range samples {
		samples[i] = 0.25
	}
	for i := 0; i < frames; i++ {
		for j := 0; j < w*h; j++ {
			frame[j] = byte(16 + i*8)
		}
		if err := mux.WriteVideo(frame, int64(i)); err != nil {
			t.Fatalf("WriteVideo %d failed: %v", i, err)
		}
		if err := mux.WriteAudio(samples, int64(i*perFrame)); err != nil {
			t.Fatalf("WriteAudio %d failed: %v", i, err)
		}
	}
	if err := mux.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	info, err := tr.Open(ctx, out)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if info.Duration < 1.8 || info.Duration > 2.2 {
		t.Errorf("Expected about 2s, got %v", info.Duration)
	}

	vr, err := tr.OpenVideo(ctx, out, codec.VideoOptions{})
	if err != nil {
		t.Fatalf("OpenVideo failed: %v", err)
	}
	defer vr.Close()

	var raw codec.RawFrame
	count := 0
	last := -1.0
	for {
		err := vr.ReadFrame(&raw)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("ReadFrame failed: %v", err)
		}
		if raw.PTS <= last {
			t.Errorf("Expected increasing PTS, got %v after %v", raw.PTS, last)
		}
		last = raw.PTS
		count++
	}
	if count != frames {
		t.Errorf("Expected %d frames, got %d", frames, count)
	}

	if err := vr.Seek(1.0); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	if err := vr.ReadFrame(&raw); err != nil {
		t.Fatalf("ReadFrame after seek failed: %v", err)
	}
	if raw.PTS > 1.0+1e-6 {
		t.Errorf("Expected seek to land at or before 1.0, got %v", raw.PTS)
	}
	vr.Close()

	ar, err := tr.OpenAudio(ctx, out, codec.AudioOptions{SampleRate: 2000, Channels: 1})
	if err != nil {
		t.Fatalf("OpenAudio failed: %v", err)
	}
	defer ar.Close()
	buf := make([]float32, 512)
	total := 0
	for {
		n, err := ar.ReadSamples(buf)
		total += n
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("ReadSamples failed: %v", err)
		}
	}
	if total < 3600 || total > 4400 {
		t.Errorf("Expected about 4000 mono samples, got %d", total)
	}
	if tr.Active() != 1 {
		t.Errorf("Expected only the audio reader running, got %d processes", tr.Active())
	}
}

func TestOpenAudioWithoutStream(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping ffmpeg test in short mode")
	}
	tr := requireFFmpeg(t)
	ctx := context.Background()
	out := filepath.Join(t.TempDir(), "silent.mkv")

	mux, err := tr.NewMuxer(ctx, codec.MuxerOptions{Path: out, Width: 32, Height: 32, FPS: 10, Preset: "ultrafast"})
	if err != nil {
		t.Fatalf("NewMuxer failed: %v", err)
	}
	if err := mux.WriteHeader(); err != nil {
		t.Fatalf("WriteHeader failed: %v", err)
	}
	if err := mux.WriteVideo(make([]byte, planes.PackedLen(32, 32)), 0); err != nil {
		t.Fatalf("WriteVideo failed: %v", err)
	}
	if err := mux.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := tr.OpenAudio(ctx, out, codec.AudioOptions{}); !errors.Is(err, codec.ErrNoStream) {
		t.Errorf("Expected ErrNoStream, got %v", err)
	}
}
