package orchestrator

import (
	"image"
	"os"

	"media-editor/internal/codec"
	"media-editor/internal/encoder"
	"media-editor/internal/media"
	"media-editor/internal/workers"
)

// Defaults for Config fields left at zero.
const (
	DefaultProbeConcurrency = 4
	DefaultResultBuffer     = 512
	DefaultScrubBuffer      = 8
	DefaultPlaybackBuffer   = 32
	DefaultPlaybackCommands = 4
	DefaultPreviewWidth     = 640
	DefaultScrubJump        = 2.0
)

// ProbeRecord is what a probe cache remembers about a source.
type ProbeRecord struct {
	Duration float64
	Width    int
	Height   int
}

// ProbeCache lets probes skip the container open for sources seen before.
// Implementations must be safe for concurrent use.
type ProbeCache interface {
	Lookup(path string) (ProbeRecord, bool)
	Store(path string, rec ProbeRecord)
}

// Config configures an Orchestrator.
type Config struct {
	Backend codec.Backend

	ProbeConcurrency int
	// ProbeGate bounds probes across every user of the codec library. When
	// nil a gate of ProbeConcurrency permits is created.
	ProbeGate *workers.Gate

	ResultBuffer     int
	ScrubBuffer      int
	PlaybackBuffer   int
	PlaybackCommands int

	// PreviewWidth caps the width of scrub and playback frames.
	PreviewWidth int
	// ScrubJump is the forward distance in seconds beyond which the scrub
	// decoder seeks instead of decoding through.
	ScrubJump float64

	// TempDir receives extracted audio. Defaults to os.TempDir().
	TempDir string

	// Encoder runs export jobs. Defaults to encoder.New(Backend, nil).
	Encoder *encoder.Pipeline

	// SaveFrame writes still frames. Defaults to media.SaveFrame.
	SaveFrame func(dest string, img image.Image) error

	// Cache is optional.
	Cache ProbeCache
}

func (c Config) withDefaults() Config {
	if c.ProbeConcurrency <= 0 {
		c.ProbeConcurrency = DefaultProbeConcurrency
	}
	if c.ProbeGate == nil {
		c.ProbeGate = workers.NewGate(c.ProbeConcurrency)
	}
	if c.ResultBuffer <= 0 {
		c.ResultBuffer = DefaultResultBuffer
	}
	if c.ScrubBuffer <= 0 {
		c.ScrubBuffer = DefaultScrubBuffer
	}
	if c.PlaybackBuffer <= 0 {
		c.PlaybackBuffer = DefaultPlaybackBuffer
	}
	if c.PlaybackCommands <= 0 {
		c.PlaybackCommands = DefaultPlaybackCommands
	}
	if c.PreviewWidth <= 0 {
		c.PreviewWidth = DefaultPreviewWidth
	}
	if c.ScrubJump <= 0 {
		c.ScrubJump = DefaultScrubJump
	}
	if c.TempDir == "" {
		c.TempDir = os.TempDir()
	}
	if c.Encoder == nil {
		c.Encoder = encoder.New(c.Backend, nil)
	}
	if c.SaveFrame == nil {
		c.SaveFrame = media.SaveFrame
	}
	return c
}
