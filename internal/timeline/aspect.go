package timeline

import (
	"fmt"
	"math"
	"strings"

	"media-editor/internal/planes"
)

// Aspect is a project output shape.
type Aspect int

const (
	Aspect16x9 Aspect = iota
	Aspect9x16
	Aspect2x3
	Aspect3x2
	Aspect4x3
	Aspect1x1
	Aspect4x5
	Aspect21x9
	AspectAnamorphic
)

var aspects = [...]struct {
	name  string
	ratio float64
	// tolerance for DetectAspect
	tol float64
}{
	Aspect16x9:       {"16:9", 16.0 / 9, 0.05},
	Aspect9x16:       {"9:16", 9.0 / 16, 0.05},
	Aspect2x3:        {"2:3", 2.0 / 3, 0.05},
	Aspect3x2:        {"3:2", 3.0 / 2, 0.05},
	Aspect4x3:        {"4:3", 4.0 / 3, 0.05},
	Aspect1x1:        {"1:1", 1, 0.05},
	Aspect4x5:        {"4:5", 4.0 / 5, 0.05},
	Aspect21x9:       {"21:9", 21.0 / 9, 0.10},
	AspectAnamorphic: {"2.39:1", 2.39, 0.05},
}

func (a Aspect) valid() bool {
	return a >= 0 && int(a) < len(aspects)
}

// Ratio returns width divided by height.
func (a Aspect) Ratio() float64 {
	if !a.valid() {
		return aspects[Aspect16x9].ratio
	}
	return aspects[a].ratio
}

func (a Aspect) String() string {
	if !a.valid() {
		return fmt.Sprintf("aspect(%d)", int(a))
	}
	return aspects[a].name
}

// MarshalText implements encoding.TextMarshaler.
func (a Aspect) MarshalText() ([]byte, error) {
	if !a.valid() {
		return nil, fmt.Errorf("invalid aspect %d", int(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Aspect) UnmarshalText(b []byte) error {
	p, err := ParseAspect(string(b))
	if err != nil {
		return err
	}
	*a = p
	return nil
}

// ParseAspect accepts the names String returns.
func ParseAspect(s string) (Aspect, error) {
	s = strings.TrimSpace(s)
	for i, a := range aspects {
		if a.name == s {
			return Aspect(i), nil
		}
	}
	return 0, fmt.Errorf("unknown aspect %q", s)
}

// DetectAspect picks the preset closest to w x h, falling back to 16:9 for
// landscape and 9:16 for portrait sources that match nothing.
func DetectAspect(w, h int) Aspect {
	if w <= 0 || h <= 0 {
		return Aspect16x9
	}
	r := float64(w) / float64(h)
	for i, a := range aspects {
		if math.Abs(r-a.ratio) < a.tol {
			return Aspect(i)
		}
	}
	if r > 1 {
		return Aspect16x9
	}
	return Aspect9x16
}

// OutputSize returns even dimensions of this shape whose shorter side is
// short.
func (a Aspect) OutputSize(short int) (int, int) {
	r := a.Ratio()
	if r >= 1 {
		return planes.Even(int(math.Round(float64(short) * r))), planes.Even(short)
	}
	return planes.Even(short), planes.Even(int(math.Round(float64(short) / r)))
}
