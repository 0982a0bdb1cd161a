package synth

import (
	"errors"
	"fmt"

	"media-editor/internal/codec"
	"media-editor/internal/planes"
)

// Recording is everything a muxer received. It is written by one goroutine
// and should only be inspected once the muxer is closed or aborted.
type Recording struct {
	Options       codec.MuxerOptions
	HeaderWritten bool
	Closed        bool
	Aborted       bool

	Frames    [][]byte
	VideoPTS  []int64
	Keyframes int

	Samples  []float32
	AudioPTS []int64
}

// VideoDuration is the duration of the recorded video stream in seconds.
func (r *Recording) VideoDuration() float64 {
	return float64(len(r.Frames)) / float64(r.Options.FPS)
}

// AudioDuration is the duration of the recorded audio stream in seconds.
func (r *Recording) AudioDuration() float64 {
	if !r.Options.Audio {
		return 0
	}
	return float64(len(r.Samples)/r.Options.Channels) / float64(r.Options.SampleRate)
}

// Luma returns the first luma sample of frame i.
func (r *Recording) Luma(i int) byte {
	return r.Frames[i][0]
}

type muxer struct {
	backend *Backend
	rec     *Recording
}

func (m *muxer) WriteHeader() error {
	if m.rec.HeaderWritten {
		return errors.New("synth: header already written")
	}
	m.rec.HeaderWritten = true
	return nil
}

func (m *muxer) AudioTimeBase() (codec.Rational, error) {
	if !m.rec.HeaderWritten {
		return codec.Rational{}, codec.ErrHeaderNotWritten
	}
	if !m.rec.Options.Audio {
		return codec.Rational{}, codec.ErrNoStream
	}
	return codec.Rational{Num: 1, Den: m.rec.Options.SampleRate}, nil
}

func (m *muxer) WriteVideo(frame []byte, pts int64) error {
	if err := m.writable(); err != nil {
		return err
	}
	o := m.rec.Options
	if len(frame) != planes.PackedLen(o.Width, o.Height) {
		return fmt.Errorf("synth: frame is %d bytes, expected %d", len(frame), planes.PackedLen(o.Width, o.Height))
	}
	if n := len(m.rec.VideoPTS); n > 0 && pts <= m.rec.VideoPTS[n-1] {
		return fmt.Errorf("synth: non-monotonic video pts %d after %d", pts, m.rec.VideoPTS[n-1])
	}
	gop := int64(o.GOP)
	if gop <= 0 {
		gop = int64(o.FPS)
	}
	if pts%gop == 0 {
		m.rec.Keyframes++
	}
	m.rec.Frames = append(m.rec.Frames, append([]byte(nil), frame...))
	m.rec.VideoPTS = append(m.rec.VideoPTS, pts)
	return nil
}

func (m *muxer) WriteAudio(samples []float32, pts int64) error {
	if err := m.writable(); err != nil {
		return err
	}
	o := m.rec.Options
	if !o.Audio {
		return codec.ErrNoStream
	}
	if len(samples)%o.Channels != 0 {
		return fmt.Errorf("synth: %d samples is not a multiple of %d channels", len(samples), o.Channels)
	}
	if want := int64(len(m.rec.Samples) / o.Channels); pts != want {
		return fmt.Errorf("synth: audio pts %d leaves a gap, expected %d", pts, want)
	}
	m.rec.Samples = append(m.rec.Samples, samples...)
	m.rec.AudioPTS = append(m.rec.AudioPTS, pts)
	return nil
}

func (m *muxer) writable() error {
	switch {
	case !m.rec.HeaderWritten:
		return codec.ErrHeaderNotWritten
	case m.rec.Closed || m.rec.Aborted:
		return errors.New("synth: muxer finished")
	}
	return nil
}

func (m *muxer) Close() error {
	if err := m.writable(); err != nil {
		return err
	}
	m.rec.Closed = true
	o := m.rec.Options
	src := Source{
		Duration:   m.rec.VideoDuration(),
		FPS:        o.FPS,
		Width:      o.Width,
		Height:     o.Height,
		GOP:        o.GOP,
		Audio:      o.Audio,
		SampleRate: o.SampleRate,
		Channels:   o.Channels,
		frames:     m.rec.Frames,
		samples:    m.rec.Samples,
		unreadable: codec.RequiresGlobalHeader(o.Path) && !o.GlobalHeader,
	}
	if src.Audio && src.samples == nil {
		src.samples = []float32{}
	}
	m.backend.Add(o.Path, src)
	return nil
}

func (m *muxer) Abort() error {
	if m.rec.Closed {
		return errors.New("synth: muxer already closed")
	}
	m.rec.Aborted = true
	return nil
}
