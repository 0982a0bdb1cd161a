package transitions

import (
	"math"

	"media-editor/internal/planes"
)

const (
	wipeFeather   = 0.02
	irisFeather   = 0.04
	irisMaxRadius = 0.75
)

// Wipe sweeps b in from the left behind a soft vertical edge.
type Wipe struct{}

func (Wipe) Kind() Kind               { return KindWipe }
func (Wipe) Label() string            { return "Wipe" }
func (Wipe) DefaultDuration() float64 { return 0.5 }

func (t Wipe) Build(duration float64) Spec {
	return build(t, duration)
}

func (Wipe) Apply(dst, a, b []byte, w, h int, alpha float64) {
	if endpoint(dst, a, b, alpha) {
		return
	}
	edge := EaseInOut(alpha)
	weight := func(px, _, pw, _ int) float64 {
		return WipeAlpha(normX(px, pw), edge, wipeFeather)
	}
	// weight is the share of a: pixels right of the edge still show a.
	eachPixel(dst, b, a, w, h, weight)
}

// Iris opens a circle from the center revealing b.
type Iris struct{}

func (Iris) Kind() Kind               { return KindIris }
func (Iris) Label() string            { return "Iris" }
func (Iris) DefaultDuration() float64 { return 0.7 }

func (t Iris) Build(duration float64) Spec {
	return build(t, duration)
}

func (Iris) Apply(dst, a, b []byte, w, h int, alpha float64) {
	if endpoint(dst, a, b, alpha) {
		return
	}
	radius := EaseInOutCubic(alpha) * irisMaxRadius
	weight := func(px, py, pw, ph int) float64 {
		return WipeAlpha(radius, centerDist(normX(px, pw), normY(py, ph)), irisFeather)
	}
	eachPixel(dst, a, b, w, h, weight)
}

// endpoint copies a or b verbatim at the ends of the ramp, where a feathered
// edge would otherwise leave a partially blended border.
func endpoint(dst, a, b []byte, alpha float64) bool {
	switch {
	case alpha <= 0:
		copy(dst, a)
		return true
	case alpha >= 1:
		copy(dst, b)
		return true
	}
	return false
}

// eachPixel blends every sample of every plane with a per-position weight
// toward `to`.
func eachPixel(dst, from, to []byte, w, h int, weight func(px, py, pw, ph int) float64) {
	fy, fu, fv := planes.Split(from, w, h)
	ty, tu, tv := planes.Split(to, w, h)
	dy, du, dv := planes.Split(dst, w, h)

	for py := 0; py < h; py++ {
		for px := 0; px < w; px++ {
			i := py*w + px
			dy[i] = planes.BlendByte(fy[i], ty[i], weight(px, py, w, h))
		}
	}
	cw, ch := w/2, h/2
	for py := 0; py < ch; py++ {
		for px := 0; px < cw; px++ {
			i := py*cw + px
			a := weight(px, py, cw, ch)
			du[i] = planes.BlendByte(fu[i], tu[i], a)
			dv[i] = planes.BlendByte(fv[i], tv[i], a)
		}
	}
}

// Push slides a out to the left while b enters from the right.
type Push struct{}

func (Push) Kind() Kind               { return KindPush }
func (Push) Label() string            { return "Push" }
func (Push) DefaultDuration() float64 { return 2.0 }

func (t Push) Build(duration float64) Spec {
	return build(t, duration)
}

func (Push) Apply(dst, a, b []byte, w, h int, alpha float64) {
	p := EaseInOutCubic(alpha)
	boundary := (1 - p) * float64(w)
	shift := p * float64(w)

	ay, au, av := planes.Split(a, w, h)
	by, bu, bv := planes.Split(b, w, h)
	dy, du, dv := planes.Split(dst, w, h)

	pushPlane(dy, ay, by, w, h, int(math.Round(boundary)), int(math.Round(shift)))
	cb := int(math.Round(boundary * 0.5))
	cs := int(math.Round(shift * 0.5))
	pushPlane(du, au, bu, w/2, h/2, cb, cs)
	pushPlane(dv, av, bv, w/2, h/2, cb, cs)
}

func pushPlane(dst, a, b []byte, w, h, boundary, shift int) {
	for py := 0; py < h; py++ {
		row := py * w
		for px := 0; px < w; px++ {
			if px < boundary {
				dst[row+px] = a[row+min(px+shift, w-1)]
			} else {
				dst[row+px] = b[row+px-boundary]
			}
		}
	}
}
