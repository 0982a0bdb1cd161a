package planes

import (
	"fmt"
	"math"
)

// Plane is one strided image plane as produced by a decoder.
type Plane struct {
	Data   []byte
	Stride int
}

// YLen returns the size of the luma plane of a w x h frame.
func YLen(w, h int) int {
	return w * h
}

// UVLen returns the size of one chroma plane of a w x h frame.
func UVLen(w, h int) int {
	return (w / 2) * (h / 2)
}

// PackedLen returns the size of a packed yuv420p frame.
func PackedLen(w, h int) int {
	return YLen(w, h) + 2*UVLen(w, h)
}

// Split returns the Y, U and V views of a packed buffer.
func Split(buf []byte, w, h int) (y, u, v []byte) {
	yl := YLen(w, h)
	cl := UVLen(w, h)
	return buf[:yl], buf[yl : yl+cl], buf[yl+cl : yl+2*cl]
}

// Extract strips the row stride from three decoder planes and returns them
// as one packed buffer. dst is reused when it has enough capacity.
func Extract(dst []byte, planes [3]Plane, w, h int) ([]byte, error) {
	need := PackedLen(w, h)
	if cap(dst) < need {
		dst = make([]byte, need)
	}
	dst = dst[:need]

	y, u, v := Split(dst, w, h)
	if err := unstride(y, planes[0], w, h); err != nil {
		return nil, fmt.Errorf("luma plane: %w", err)
	}
	if err := unstride(u, planes[1], w/2, h/2); err != nil {
		return nil, fmt.Errorf("cb plane: %w", err)
	}
	if err := unstride(v, planes[2], w/2, h/2); err != nil {
		return nil, fmt.Errorf("cr plane: %w", err)
	}
	return dst, nil
}

// Write copies a packed buffer back into three strided planes.
func Write(src []byte, planes [3]Plane, w, h int) error {
	if len(src) != PackedLen(w, h) {
		return fmt.Errorf("packed buffer is %d bytes, expected %d for %dx%d", len(src), PackedLen(w, h), w, h)
	}
	y, u, v := Split(src, w, h)
	if err := restride(planes[0], y, w, h); err != nil {
		return fmt.Errorf("luma plane: %w", err)
	}
	if err := restride(planes[1], u, w/2, h/2); err != nil {
		return fmt.Errorf("cb plane: %w", err)
	}
	if err := restride(planes[2], v, w/2, h/2); err != nil {
		return fmt.Errorf("cr plane: %w", err)
	}
	return nil
}

func unstride(dst []byte, p Plane, w, h int) error {
	if p.Stride < w || len(p.Data) < p.Stride*(h-1)+w {
		return fmt.Errorf("stride %d with %d bytes cannot hold %dx%d", p.Stride, len(p.Data), w, h)
	}
	for row := 0; row < h; row++ {
		copy(dst[row*w:(row+1)*w], p.Data[row*p.Stride:row*p.Stride+w])
	}
	return nil
}

func restride(p Plane, src []byte, w, h int) error {
	if p.Stride < w || len(p.Data) < p.Stride*(h-1)+w {
		return fmt.Errorf("stride %d with %d bytes cannot hold %dx%d", p.Stride, len(p.Data), w, h)
	}
	for row := 0; row < h; row++ {
		copy(p.Data[row*p.Stride:row*p.Stride+w], src[row*w:(row+1)*w])
	}
	return nil
}

// BlendByte mixes two samples: round((1-alpha)*a + alpha*b).
func BlendByte(a, b byte, alpha float64) byte {
	return byte(math.Round((1-alpha)*float64(a) + alpha*float64(b)))
}

// Blend writes the linear mix of a and b into dst. Weight 0 copies a and
// weight 1 copies b byte for byte. Only the shortest length of the three
// slices is written.
func Blend(dst, a, b []byte, alpha float64) {
	n := min(len(dst), len(a), len(b))
	dst, a, b = dst[:n], a[:n], b[:n]
	switch {
	case alpha <= 0:
		copy(dst, a)
	case alpha >= 1:
		copy(dst, b)
	default:
		for i := range dst {
			dst[i] = BlendByte(a[i], b[i], alpha)
		}
	}
}
