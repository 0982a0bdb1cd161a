package planes

import (
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// Format is the pixel layout a Scaler produces.
type Format int

const (
	// FormatYUV420P is a packed yuv420p buffer.
	FormatYUV420P Format = iota
	// FormatRGBA is an *image.RGBA.
	FormatRGBA
)

func (f Format) String() string {
	switch f {
	case FormatYUV420P:
		return "yuv420p"
	case FormatRGBA:
		return "rgba"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// Key identifies a conversion. Two conversions with equal keys can share a
// Scaler.
type Key struct {
	SrcW, SrcH int
	// Crop selects the source region. The zero rectangle means the full frame.
	Crop       image.Rectangle
	DstW, DstH int
	Dst        Format
}

// ErrDestination is returned when the caller hands over a destination that
// does not match the scaler's output size.
var ErrDestination = errors.New("planes: destination buffer does not match scaler output")

// Scaler converts packed yuv420p frames of one size into another size and
// pixel format. A Scaler is not safe for concurrent use.
type Scaler struct {
	key    Key
	crop   image.Rectangle
	kernel draw.Interpolator

	ycc  image.YCbCr
	srcP [3]image.Gray
	dstP [3]image.Gray
}

// NewScaler validates the key and prepares reusable image headers.
// A nil kernel selects bilinear filtering.
func NewScaler(key Key, kernel draw.Interpolator) (*Scaler, error) {
	if key.SrcW <= 0 || key.SrcH <= 0 || key.DstW <= 0 || key.DstH <= 0 {
		return nil, fmt.Errorf("planes: invalid scaler size %dx%d -> %dx%d", key.SrcW, key.SrcH, key.DstW, key.DstH)
	}
	if key.SrcW%2 != 0 || key.SrcH%2 != 0 || key.DstW%2 != 0 || key.DstH%2 != 0 {
		return nil, fmt.Errorf("planes: odd dimensions %dx%d -> %dx%d", key.SrcW, key.SrcH, key.DstW, key.DstH)
	}
	crop := key.Crop
	if crop.Empty() {
		crop = image.Rect(0, 0, key.SrcW, key.SrcH)
	}
	if !crop.In(image.Rect(0, 0, key.SrcW, key.SrcH)) {
		return nil, fmt.Errorf("planes: crop %v outside %dx%d source", crop, key.SrcW, key.SrcH)
	}
	if kernel == nil {
		kernel = draw.BiLinear
	}
	return &Scaler{key: key, crop: crop, kernel: kernel}, nil
}

// Key returns the conversion this scaler was built for.
func (s *Scaler) Key() Key {
	return s.key
}

// Matches reports whether the scaler can serve the given conversion.
func (s *Scaler) Matches(k Key) bool {
	return s != nil && s.key == k
}

// ToRGBA converts the packed source frame into dst, which must already be
// allocated at the destination size.
func (s *Scaler) ToRGBA(dst *image.RGBA, src []byte) error {
	if s.key.Dst != FormatRGBA {
		return fmt.Errorf("planes: scaler produces %s, not rgba", s.key.Dst)
	}
	if dst == nil || dst.Rect.Dx() != s.key.DstW || dst.Rect.Dy() != s.key.DstH {
		return ErrDestination
	}
	if err := s.wrapSource(src); err != nil {
		return err
	}
	if s.crop.Dx() == s.key.DstW && s.crop.Dy() == s.key.DstH {
		draw.Draw(dst, dst.Rect, &s.ycc, s.crop.Min, draw.Src)
		return nil
	}
	s.kernel.Scale(dst, dst.Rect, &s.ycc, s.crop, draw.Src, nil)
	return nil
}

// ToYUV crops and scales the packed source frame into dst, a packed buffer
// of exactly PackedLen(DstW, DstH) bytes.
func (s *Scaler) ToYUV(dst, src []byte) error {
	if s.key.Dst != FormatYUV420P {
		return fmt.Errorf("planes: scaler produces %s, not yuv420p", s.key.Dst)
	}
	if len(dst) != PackedLen(s.key.DstW, s.key.DstH) {
		return ErrDestination
	}
	if len(src) != PackedLen(s.key.SrcW, s.key.SrcH) {
		return fmt.Errorf("planes: source is %d bytes, expected %d", len(src), PackedLen(s.key.SrcW, s.key.SrcH))
	}

	sy, su, sv := Split(src, s.key.SrcW, s.key.SrcH)
	dy, du, dv := Split(dst, s.key.DstW, s.key.DstH)

	chroma := image.Rect(s.crop.Min.X/2, s.crop.Min.Y/2, s.crop.Max.X/2, s.crop.Max.Y/2)
	s.scalePlane(0, dy, s.key.DstW, s.key.DstH, sy, s.key.SrcW, s.key.SrcH, s.crop)
	s.scalePlane(1, du, s.key.DstW/2, s.key.DstH/2, su, s.key.SrcW/2, s.key.SrcH/2, chroma)
	s.scalePlane(2, dv, s.key.DstW/2, s.key.DstH/2, sv, s.key.SrcW/2, s.key.SrcH/2, chroma)
	return nil
}

func (s *Scaler) scalePlane(i int, dst []byte, dw, dh int, src []byte, sw, sh int, sr image.Rectangle) {
	if sr.Dx() == dw && sr.Dy() == dh {
		for row := 0; row < dh; row++ {
			off := (sr.Min.Y+row)*sw + sr.Min.X
			copy(dst[row*dw:(row+1)*dw], src[off:off+dw])
		}
		return
	}
	s.srcP[i] = image.Gray{Pix: src, Stride: sw, Rect: image.Rect(0, 0, sw, sh)}
	s.dstP[i] = image.Gray{Pix: dst, Stride: dw, Rect: image.Rect(0, 0, dw, dh)}
	s.kernel.Scale(&s.dstP[i], s.dstP[i].Rect, &s.srcP[i], sr, draw.Src, nil)
}

func (s *Scaler) wrapSource(src []byte) error {
	w, h := s.key.SrcW, s.key.SrcH
	if len(src) != PackedLen(w, h) {
		return fmt.Errorf("planes: source is %d bytes, expected %d", len(src), PackedLen(w, h))
	}
	y, u, v := Split(src, w, h)
	s.ycc = image.YCbCr{
		Y:              y,
		Cb:             u,
		Cr:             v,
		YStride:        w,
		CStride:        w / 2,
		SubsampleRatio: image.YCbCrSubsampleRatio420,
		Rect:           image.Rect(0, 0, w, h),
	}
	return nil
}
