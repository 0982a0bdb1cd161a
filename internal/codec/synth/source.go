package synth

import (
	"math"

	"media-editor/internal/codec"
)

// Default source properties.
const (
	DefaultFPS        = 30
	DefaultWidth      = 64
	DefaultHeight     = 36
	DefaultGOP        = 30
	DefaultAudioLevel = 0.5
)

// Source describes one synthetic media file.
type Source struct {
	Duration float64
	FPS      int
	Width    int
	Height   int
	// GOP is the keyframe interval in frames.
	GOP int

	Audio      bool
	SampleRate int
	Channels   int
	// AudioLevel is the constant sample value of generated audio.
	AudioLevel float32

	// Luma returns the Y value of frame i. Nil uses LumaFor.
	Luma func(i int) byte
	// FailSeek makes every Seek return an error.
	FailSeek bool
	// StartTime is the container start offset reported by Open.
	StartTime float64

	// Recorded content from a muxer replaces generated content.
	frames  [][]byte
	samples []float32
	// unreadable marks an MP4-family output written without global headers.
	unreadable bool
}

// LumaFor is the default frame pattern: 16 + i mod 220, staying inside the
// video range.
func LumaFor(i int) byte {
	return byte(16 + i%220)
}

func (s *Source) withDefaults() *Source {
	out := *s
	if out.FPS <= 0 {
		out.FPS = DefaultFPS
	}
	if out.Width <= 0 {
		out.Width = DefaultWidth
	}
	if out.Height <= 0 {
		out.Height = DefaultHeight
	}
	out.Width &^= 1
	out.Height &^= 1
	if out.GOP <= 0 {
		out.GOP = DefaultGOP
	}
	if out.Audio {
		if out.SampleRate <= 0 {
			out.SampleRate = codec.SampleRate
		}
		if out.Channels <= 0 {
			out.Channels = codec.Channels
		}
		if out.AudioLevel == 0 && out.samples == nil {
			out.AudioLevel = DefaultAudioLevel
		}
	}
	if out.Luma == nil {
		out.Luma = LumaFor
	}
	return &out
}

// FrameCount is the number of decodable frames.
func (s *Source) FrameCount() int {
	if s.frames != nil {
		return len(s.frames)
	}
	return int(math.Round(s.Duration * float64(s.FPS)))
}

// SampleFrames is the number of audio sample frames (per channel).
func (s *Source) SampleFrames() int {
	if !s.Audio {
		return 0
	}
	if s.samples != nil {
		return len(s.samples) / s.Channels
	}
	return int(math.Round(s.Duration * float64(s.SampleRate)))
}

// sample returns channel c of sample frame k.
func (s *Source) sample(k, c int) float32 {
	if s.samples == nil {
		return s.AudioLevel
	}
	return s.samples[k*s.Channels+c%s.Channels]
}

func (s *Source) info(path string) *codec.ContainerInfo {
	fps := codec.Rational{Num: s.FPS, Den: 1}
	info := &codec.ContainerInfo{
		Path:      path,
		Format:    "synth",
		Duration:  s.Duration,
		StartTime: s.StartTime,
		Streams: []codec.StreamInfo{{
			Index:       0,
			Kind:        codec.StreamVideo,
			Codec:       "rawvideo",
			Width:       s.Width,
			Height:      s.Height,
			PixelFormat: "yuv420p",
			FrameRate:   fps,
			TimeBase:    codec.Rational{Num: 1, Den: s.FPS},
			Duration:    float64(s.FrameCount()) / float64(s.FPS),
		}},
	}
	if s.Audio {
		info.Streams = append(info.Streams, codec.StreamInfo{
			Index:      1,
			Kind:       codec.StreamAudio,
			Codec:      "pcm_f32le",
			SampleRate: s.SampleRate,
			Channels:   s.Channels,
			TimeBase:   codec.Rational{Num: 1, Den: s.SampleRate},
			Duration:   float64(s.SampleFrames()) / float64(s.SampleRate),
		})
	}
	return info
}
