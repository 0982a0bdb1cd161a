package transcoder

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"media-editor/internal/codec"
)

// x264 settings used when a muxer is created without them.
const (
	DefaultCRF    = 23
	DefaultPreset = "medium"
	audioBitrate  = "128k"
)

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'f', 6, 64)
}

// VideoArgs builds the ffmpeg arguments of a video reader starting at the
// keyframe at or before start. Frames keep their source timestamps and are
// printed by showinfo as they pass. Odd sizes are cropped to even ones.
func VideoArgs(path string, start float64, threads, width, height int) []string {
	args := []string{"-hide_banner", "-nostats", "-loglevel", "info"}
	if threads > 0 {
		args = append(args, "-threads", strconv.Itoa(threads))
	}
	args = append(args, "-copyts")
	if start > 0 {
		args = append(args, "-ss", ftoa(start), "-noaccurate_seek")
	}
	args = append(args, "-i", path, "-map", "0:v:0")

	filter := "showinfo"
	if width%2 != 0 || height%2 != 0 {
		filter = "crop=" + strconv.Itoa(width&^1) + ":" + strconv.Itoa(height&^1) + ":0:0," + filter
	}
	return append(args,
		"-vf", filter,
		"-fps_mode", "passthrough",
		"-f", "rawvideo",
		"-pix_fmt", "yuv420p",
		"pipe:1",
	)
}

// AudioArgs builds the ffmpeg arguments of an audio reader producing
// interleaved float32 samples.
func AudioArgs(path string, opts codec.AudioOptions) []string {
	opts = opts.WithDefaults()
	args := []string{"-hide_banner", "-nostats", "-loglevel", "error"}
	if opts.Start > 0 {
		args = append(args, "-ss", ftoa(opts.Start))
	}
	args = append(args, "-i", path)
	if opts.Duration > 0 {
		args = append(args, "-t", ftoa(opts.Duration))
	}
	return append(args,
		"-map", "0:a:0",
		"-vn",
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-ar", strconv.Itoa(opts.SampleRate),
		"-ac", strconv.Itoa(opts.Channels),
		"pipe:1",
	)
}

// MuxArgs builds the arguments of an encoding ffmpeg that reads packed
// yuv420p frames from stdin and, with audio, float32 samples from fd 3.
func MuxArgs(opts codec.MuxerOptions) []string {
	opts = muxDefaults(opts)
	args := []string{
		"-hide_banner", "-nostats", "-loglevel", "error", "-y",
		"-f", "rawvideo",
		"-pix_fmt", "yuv420p",
		"-s", strconv.Itoa(opts.Width) + "x" + strconv.Itoa(opts.Height),
		"-framerate", strconv.Itoa(opts.FPS),
		"-i", "pipe:0",
	}
	if opts.Audio {
		args = append(args,
			"-f", "f32le",
			"-ar", strconv.Itoa(opts.SampleRate),
			"-ac", strconv.Itoa(opts.Channels),
			"-i", "pipe:3",
		)
	}
	args = append(args, "-map", "0:v:0")
	if opts.Audio {
		args = append(args, "-map", "1:a:0")
	}
	args = append(args,
		"-c:v", "libx264",
		"-preset", opts.Preset,
		"-crf", strconv.Itoa(opts.CRF),
		"-g", strconv.Itoa(opts.GOP),
		"-pix_fmt", "yuv420p",
	)
	if opts.GlobalHeader {
		args = append(args, "-flags", "+global_header")
	}
	if opts.Audio {
		args = append(args,
			"-c:a", "aac",
			"-b:a", audioBitrate,
			"-ar", strconv.Itoa(opts.SampleRate),
			"-ac", strconv.Itoa(opts.Channels),
		)
	}
	if isMP4(opts.Path) {
		args = append(args, "-movflags", "+faststart")
	}
	return append(args, opts.Path)
}

func muxDefaults(o codec.MuxerOptions) codec.MuxerOptions {
	if o.GOP <= 0 {
		o.GOP = o.FPS
	}
	if o.CRF <= 0 {
		o.CRF = DefaultCRF
	}
	if o.Preset == "" {
		o.Preset = DefaultPreset
	}
	if o.SampleRate <= 0 {
		o.SampleRate = codec.SampleRate
	}
	if o.Channels <= 0 {
		o.Channels = codec.Channels
	}
	return o
}

func isMP4(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".mov", ".m4v":
		return true
	}
	return false
}

var showinfoPTS = regexp.MustCompile(`pts_time:\s*(-?[0-9]+(?:\.[0-9]+)?)`)

// ParseShowinfo extracts the frame time from one line of showinfo output.
func ParseShowinfo(line string) (float64, bool) {
	if !strings.Contains(line, "showinfo") {
		return 0, false
	}
	m := showinfoPTS.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
