package codec

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

// Fixed audio layout used for every export and every extracted track.
const (
	SampleRate = 44100
	Channels   = 2
	// AudioFrameSize is the number of samples per channel in one encoded
	// audio packet.
	AudioFrameSize = 1024
)

var (
	// ErrHeaderNotWritten is returned by Muxer methods that need the
	// container header to exist first.
	ErrHeaderNotWritten = errors.New("codec: container header not written")
	// ErrNoStream is returned when a container has no stream of the
	// requested kind.
	ErrNoStream = errors.New("codec: no such stream")
)

// Backend is a codec library.
type Backend interface {
	// Open reads container and stream metadata.
	Open(ctx context.Context, path string) (*ContainerInfo, error)
	// OpenVideo opens the first video stream for decoding.
	OpenVideo(ctx context.Context, path string, opts VideoOptions) (VideoReader, error)
	// OpenAudio opens the first audio stream for decoding and resampling.
	OpenAudio(ctx context.Context, path string, opts AudioOptions) (AudioReader, error)
	// NewMuxer creates an output container with one video stream and,
	// optionally, one audio stream.
	NewMuxer(ctx context.Context, opts MuxerOptions) (Muxer, error)
}

// VideoOptions configures a VideoReader.
type VideoOptions struct {
	// Threads is a decoder thread hint. Zero lets the backend choose.
	Threads int
}

// AudioOptions configures an AudioReader. The reader starts at Start and
// returns io.EOF after Duration seconds (or at end of stream).
type AudioOptions struct {
	SampleRate int
	Channels   int
	Start      float64
	// Duration of zero reads to the end of the stream.
	Duration float64
}

// WithDefaults fills zero fields with the export layout.
func (o AudioOptions) WithDefaults() AudioOptions {
	if o.SampleRate <= 0 {
		o.SampleRate = SampleRate
	}
	if o.Channels <= 0 {
		o.Channels = Channels
	}
	if o.Start < 0 {
		o.Start = 0
	}
	return o
}

// VideoReader decodes one video stream.
type VideoReader interface {
	Stream() StreamInfo
	// Seek positions the decoder at or before ts. Frames returned afterwards
	// may start earlier than ts (at the preceding keyframe).
	Seek(ts float64) error
	// ReadFrame decodes the next frame into dst, reusing dst.Data when it is
	// large enough. It returns io.EOF at end of stream and leaves dst
	// untouched on any error.
	ReadFrame(dst *RawFrame) error
	Close() error
}

// AudioReader decodes and resamples one audio stream.
type AudioReader interface {
	// ReadSamples fills dst with interleaved samples and returns how many
	// values were written. It returns io.EOF once nothing is left.
	ReadSamples(dst []float32) (int, error)
	SampleRate() int
	Channels() int
	Close() error
}

// MuxerOptions describes an output file.
type MuxerOptions struct {
	Path   string
	Width  int
	Height int
	FPS    int
	// GOP is the keyframe interval in frames.
	GOP    int
	CRF    int
	Preset string

	Audio      bool
	SampleRate int
	Channels   int

	// GlobalHeader stores codec parameter sets in the container header
	// instead of inline in the bitstream.
	GlobalHeader bool
}

// Muxer encodes and writes one output container. Video PTS are in frames
// (time base 1/FPS); audio PTS are in AudioTimeBase units.
type Muxer interface {
	WriteHeader() error
	AudioTimeBase() (Rational, error)
	WriteVideo(frame []byte, pts int64) error
	WriteAudio(samples []float32, pts int64) error
	// Close flushes encoders and finalizes the container.
	Close() error
	// Abort stops writing and removes the partial output.
	Abort() error
}

// RequiresGlobalHeader reports whether the container for path needs codec
// parameter sets in its header. MP4-family files without them cannot be
// reopened.
func RequiresGlobalHeader(path string) bool {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "mp4", "mov", "m4v", "3gp", "3g2":
		return true
	}
	return false
}
