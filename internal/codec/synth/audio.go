package synth

import (
	"errors"
	"io"
	"math"

	"media-editor/internal/codec"
)

type audioReader struct {
	backend *Backend
	src     *Source
	opts    codec.AudioOptions
	total   int
	pos     int
	closed  bool
}

func newAudioReader(b *Backend, src *Source, opts codec.AudioOptions) *audioReader {
	end := float64(src.SampleFrames()) / float64(src.SampleRate)
	if opts.Duration > 0 {
		end = math.Min(end, opts.Start+opts.Duration)
	}
	total := int(math.Round((end - opts.Start) * float64(opts.SampleRate)))
	return &audioReader{backend: b, src: src, opts: opts, total: max(total, 0)}
}

func (r *audioReader) SampleRate() int { return r.opts.SampleRate }
func (r *audioReader) Channels() int   { return r.opts.Channels }

func (r *audioReader) ReadSamples(dst []float32) (int, error) {
	if r.closed {
		return 0, errors.New("synth: read on closed reader")
	}
	ch := r.opts.Channels
	n := min(len(dst)/ch, r.total-r.pos)
	if n <= 0 {
		if r.pos >= r.total {
			return 0, io.EOF
		}
		return 0, nil
	}
	last := r.src.SampleFrames() - 1
	for k := 0; k < n; k++ {
		t := r.opts.Start + float64(r.pos+k)/float64(r.opts.SampleRate)
		si := min(int(t*float64(r.src.SampleRate)), last)
		for c := 0; c < ch; c++ {
			dst[k*ch+c] = r.mix(si, c)
		}
	}
	r.pos += n
	return n * ch, nil
}

// mix downmixes to mono by averaging, otherwise maps channels modulo the
// source layout.
func (r *audioReader) mix(si, c int) float32 {
	if r.opts.Channels == 1 && r.src.Channels > 1 {
		var sum float32
		for sc := 0; sc < r.src.Channels; sc++ {
			sum += r.src.sample(si, sc)
		}
		return sum / float32(r.src.Channels)
	}
	return r.src.sample(si, c)
}

func (r *audioReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.backend.openReaders.Add(-1)
	return nil
}
