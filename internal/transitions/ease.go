package transitions

import "math"

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// EaseInOut is the smoothstep curve. It maps 0.5 to 0.5.
func EaseInOut(t float64) float64 {
	t = clamp01(t)
	return t * t * (3 - 2*t)
}

// EaseIn accelerates from zero velocity.
func EaseIn(t float64) float64 {
	t = clamp01(t)
	return t * t
}

// EaseOut decelerates to zero velocity.
func EaseOut(t float64) float64 {
	t = clamp01(t)
	return 1 - (1-t)*(1-t)
}

// EaseInOutCubic is a steeper S-curve than EaseInOut.
func EaseInOutCubic(t float64) float64 {
	t = clamp01(t)
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

// Linear clamps t to [0, 1].
func Linear(t float64) float64 {
	return clamp01(t)
}

// EaseOutBounce overshoots the end and settles like a dropped ball.
func EaseOutBounce(t float64) float64 {
	const n, d = 7.5625, 2.75
	t = clamp01(t)
	switch {
	case t < 1/d:
		return n * t * t
	case t < 2/d:
		t -= 1.5 / d
		return n*t*t + 0.75
	case t < 2.5/d:
		t -= 2.25 / d
		return n*t*t + 0.9375
	default:
		t -= 2.625 / d
		return n*t*t + 0.984375
	}
}

// EaseInBounce mirrors EaseOutBounce.
func EaseInBounce(t float64) float64 {
	return 1 - EaseOutBounce(1-t)
}

// EaseOutElastic springs past the target before settling.
func EaseOutElastic(t float64) float64 {
	t = clamp01(t)
	if t == 0 || t == 1 {
		return t
	}
	c4 := 2 * math.Pi / 3
	return math.Pow(2, -10*t)*math.Sin((t*10-0.75)*c4) + 1
}

// FrameAlpha spreads n blend frames over the open interval (0, 1) so that
// neither endpoint duplicates an unblended frame.
func FrameAlpha(i, n int) float64 {
	return float64(i+1) / float64(n+1)
}

// WipeAlpha returns the weight of the outgoing frame for a pixel at coord
// relative to a moving edge. feather softens the edge over that width.
func WipeAlpha(coord, edge, feather float64) float64 {
	if feather <= 0 {
		if coord >= edge {
			return 1
		}
		return 0
	}
	return clamp01((coord - (edge - feather*0.5)) / feather)
}

func normX(x, w int) float64 {
	return (float64(x) + 0.5) / float64(w)
}

func normY(y, h int) float64 {
	return (float64(y) + 0.5) / float64(h)
}

func centerDist(nx, ny float64) float64 {
	dx := nx - 0.5
	dy := ny - 0.5
	return math.Sqrt(dx*dx + dy*dy)
}
