package synth

import (
	"errors"
	"fmt"
	"io"
	"math"

	"media-editor/internal/codec"
	"media-editor/internal/planes"
)

// rowPad is extra bytes at the end of every generated row so that readers
// exercise stride removal like they would with a real decoder.
const rowPad = 16

type videoReader struct {
	backend *Backend
	src     *Source
	stream  codec.StreamInfo
	next    int
	closed  bool

	strided [3]planes.Plane
	packed  []byte
}

func (r *videoReader) Stream() codec.StreamInfo {
	return r.stream
}

func (r *videoReader) Seek(ts float64) error {
	if r.closed {
		return errors.New("synth: seek on closed reader")
	}
	if r.src.FailSeek {
		return fmt.Errorf("synth: seek to %.3f rejected", ts)
	}
	n := r.src.FrameCount()
	idx := int(math.Floor(ts*float64(r.src.FPS) + 1e-9))
	idx = max(0, min(idx, n-1))
	r.next = idx - idx%r.src.GOP
	return nil
}

func (r *videoReader) ReadFrame(dst *codec.RawFrame) error {
	if r.closed {
		return errors.New("synth: read on closed reader")
	}
	if r.next >= r.src.FrameCount() {
		return io.EOF
	}
	if r.backend.ReadDelay != nil {
		r.backend.ReadDelay()
	}
	w, h := r.src.Width, r.src.Height
	i := r.next

	var data []byte
	if r.src.frames != nil {
		data = r.src.frames[i]
	} else {
		r.fill(i)
		var err error
		r.packed, err = planes.Extract(r.packed, r.strided, w, h)
		if err != nil {
			return fmt.Errorf("synth: frame %d: %w", i, err)
		}
		data = r.packed
	}

	dst.Reset(w, h, len(data))
	copy(dst.Data, data)
	dst.PTS = float64(i) / float64(r.src.FPS)
	r.next++
	return nil
}

// fill renders frame i into padded planes: flat luma and neutral chroma,
// with padding bytes that must never reach the output.
func (r *videoReader) fill(i int) {
	w, h := r.src.Width, r.src.Height
	if r.strided[0].Data == nil {
		r.strided[0] = planes.Plane{Stride: w + rowPad, Data: make([]byte, (w+rowPad)*h)}
		for c := 1; c < 3; c++ {
			r.strided[c] = planes.Plane{Stride: w/2 + rowPad, Data: make([]byte, (w/2+rowPad)*(h/2))}
		}
	}
	fillPlane(r.strided[0], w, h, r.src.Luma(i))
	fillPlane(r.strided[1], w/2, h/2, 128)
	fillPlane(r.strided[2], w/2, h/2, 128)
}

func fillPlane(p planes.Plane, w, h int, v byte) {
	for row := 0; row < h; row++ {
		line := p.Data[row*p.Stride : (row+1)*p.Stride]
		for x := range line {
			if x < w {
				line[x] = v
			} else {
				line[x] = 0xAA
			}
		}
	}
}

func (r *videoReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.backend.openReaders.Add(-1)
	return nil
}
