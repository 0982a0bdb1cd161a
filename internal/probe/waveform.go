package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"media-editor/internal/codec"
)

// Waveform decode parameters.
const (
	WaveformColumns    = 1000
	WaveformSampleRate = 2000
)

// ErrNoSamples is returned when an audio stream decodes to nothing.
var ErrNoSamples = errors.New("no audio samples")

// Waveform decodes the audio track as mono at WaveformSampleRate and
// reduces it to at most WaveformColumns absolute peaks in [0, 1].
func Waveform(ctx context.Context, backend codec.Backend, path string) (peaks []float32, err error) {
	start := time.Now()
	defer func() { observe("waveform", start, err) }()

	r, err := backend.OpenAudio(ctx, path, codec.AudioOptions{SampleRate: WaveformSampleRate, Channels: 1})
	if err != nil {
		return nil, fmt.Errorf("waveform: %w", err)
	}
	defer r.Close()

	var samples []float32
	buf := make([]float32, 4096)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := r.ReadSamples(buf)
		samples = append(samples, buf[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("waveform of %s: %w", path, err)
		}
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("waveform of %s: %w", path, ErrNoSamples)
	}

	peaks = Peaks(samples, WaveformColumns)
	log.Debug("waveform %d peaks <- %s", len(peaks), path)
	return peaks, nil
}

// Peaks splits samples into blocks of len/cols (at least one sample) and
// returns the absolute peak of each of the first cols blocks. Samples are
// clamped to [-1, 1] first.
func Peaks(samples []float32, cols int) []float32 {
	if len(samples) == 0 || cols <= 0 {
		return nil
	}
	block := max(len(samples)/cols, 1)
	peaks := make([]float32, 0, cols)
	for off := 0; off < len(samples) && len(peaks) < cols; off += block {
		end := min(off+block, len(samples))
		var peak float32
		for _, s := range samples[off:end] {
			s = max(-1, min(1, s))
			if s < 0 {
				s = -s
			}
			peak = max(peak, s)
		}
		peaks = append(peaks, peak)
	}
	return peaks
}
