package transcoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"media-editor/internal/codec"
	"media-editor/internal/metrics"
)

// Open runs ffprobe against path.
func (t *Transcoder) Open(ctx context.Context, path string) (*codec.ContainerInfo, error) {
	cmd := exec.CommandContext(ctx, t.ffprobe,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout bytes.Buffer
	stderr := newTail(8)
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	metrics.FFmpegProcessesTotal.WithLabelValues("probe").Inc()
	if err := cmd.Run(); err != nil {
		if cmd.Process == nil {
			return nil, startError(t.ffprobe, err)
		}
		return nil, exitError(ctx, fmt.Sprintf("ffprobe %q", path), err, stderr)
	}

	info, err := ParseProbeJSON(stdout.Bytes())
	if err != nil {
		return nil, err
	}
	info.Path = path
	return info, nil
}

// ParseProbeJSON converts ffprobe's -print_format json output. Attached
// pictures such as cover art are not reported as video streams.
func ParseProbeJSON(data []byte) (*codec.ContainerInfo, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ffprobe JSON: %w", err)
	}

	info := &codec.ContainerInfo{
		Path:      raw.Format.Filename,
		Format:    raw.Format.FormatName,
		Duration:  parseFloat(raw.Format.Duration),
		StartTime: parseFloat(raw.Format.StartTime),
	}
	for i := range raw.Streams {
		info.Streams = append(info.Streams, convertStream(&raw.Streams[i]))
	}

	// Some containers only report duration per stream.
	if info.Duration <= 0 {
		for _, s := range info.Streams {
			info.Duration = max(info.Duration, s.Duration)
		}
	}
	return info, nil
}

// --- ffprobe JSON wire types ---

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	StartTime  string `json:"start_time"`
}

type ffprobeStream struct {
	Index        int            `json:"index"`
	CodecName    string         `json:"codec_name"`
	CodecType    string         `json:"codec_type"`
	PixFmt       string         `json:"pix_fmt"`
	Width        int            `json:"width"`
	Height       int            `json:"height"`
	AvgFrameRate string         `json:"avg_frame_rate"`
	RFrameRate   string         `json:"r_frame_rate"`
	TimeBase     string         `json:"time_base"`
	SampleRate   string         `json:"sample_rate"`
	Channels     int            `json:"channels"`
	Duration     string         `json:"duration"`
	Disposition  map[string]int `json:"disposition"`
}

func convertStream(s *ffprobeStream) codec.StreamInfo {
	out := codec.StreamInfo{
		Index:    s.Index,
		Codec:    s.CodecName,
		TimeBase: parseRational(s.TimeBase),
		Duration: parseFloat(s.Duration),
	}
	switch s.CodecType {
	case "video":
		if s.Disposition["attached_pic"] == 1 {
			return out
		}
		out.Kind = codec.StreamVideo
		out.Width, out.Height = s.Width, s.Height
		out.PixelFormat = s.PixFmt
		out.FrameRate = parseRational(s.AvgFrameRate)
		if !out.FrameRate.Valid() {
			out.FrameRate = parseRational(s.RFrameRate)
		}
	case "audio":
		out.Kind = codec.StreamAudio
		out.SampleRate = int(parseFloat(s.SampleRate))
		out.Channels = s.Channels
	}
	return out
}

func parseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "N/A" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func parseRational(s string) codec.Rational {
	r, err := codec.ParseRational(s)
	if err != nil || !r.Valid() {
		return codec.Rational{}
	}
	return r
}
