package transitions

import "media-editor/internal/planes"

// Cut switches frames with no overlap.
type Cut struct{}

func (Cut) Kind() Kind               { return KindCut }
func (Cut) Label() string            { return "Cut" }
func (Cut) DefaultDuration() float64 { return 0 }
func (Cut) Build(float64) Spec       { return Spec{Kind: KindCut} }

func (Cut) Apply(dst, a, b []byte, _, _ int, alpha float64) {
	if alpha >= 1 {
		copy(dst, b)
		return
	}
	copy(dst, a)
}

// Crossfade dissolves a into b along a smoothstep curve.
type Crossfade struct{}

func (Crossfade) Kind() Kind               { return KindCrossfade }
func (Crossfade) Label() string            { return "Crossfade" }
func (Crossfade) DefaultDuration() float64 { return 0.5 }

func (c Crossfade) Build(duration float64) Spec {
	return build(c, duration)
}

func (Crossfade) Apply(dst, a, b []byte, _, _ int, alpha float64) {
	planes.Blend(dst, a, b, EaseInOut(alpha))
}

// DipToBlack fades a out to black over the first half and b in over the
// second half.
type DipToBlack struct{}

func (DipToBlack) Kind() Kind               { return KindDipToBlack }
func (DipToBlack) Label() string            { return "Dip to Black" }
func (DipToBlack) DefaultDuration() float64 { return 0.8 }

func (d DipToBlack) Build(duration float64) Spec {
	return build(d, duration)
}

func (DipToBlack) Apply(dst, a, b []byte, w, h int, alpha float64) {
	yl := planes.YLen(w, h)
	if alpha <= 0.5 {
		ramp := EaseInOut(alpha * 2)
		for i := range dst {
			dst[i] = planes.BlendByte(a[i], black(i, yl), ramp)
		}
		return
	}
	ramp := EaseInOut((alpha - 0.5) * 2)
	for i := range dst {
		dst[i] = planes.BlendByte(black(i, yl), b[i], ramp)
	}
}

// black is luma 0 with neutral chroma.
func black(i, yl int) byte {
	if i < yl {
		return 0
	}
	return 128
}

func build(t Transition, duration float64) Spec {
	if duration <= 0 {
		duration = t.DefaultDuration()
	}
	return Spec{Kind: t.Kind(), Duration: duration}
}
