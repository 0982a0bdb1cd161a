package timeline

import (
	"fmt"
	"math"
)

// FormatTime renders seconds as MM:SS:FF with frames counted at 30 fps.
func FormatTime(s float64) string {
	if s < 0 || math.IsNaN(s) {
		s = 0
	}
	m := int(s / 60)
	sec := int(math.Mod(s, 60))
	fr := int(s*30) % 30
	return fmt.Sprintf("%02d:%02d:%02d", m, sec, fr)
}

// FormatDuration renders seconds compactly: H:MM:SS from an hour up, M:SS
// from a minute up, otherwise tenths of a second.
func FormatDuration(s float64) string {
	if s < 0 || math.IsNaN(s) {
		s = 0
	}
	whole := int64(s)
	switch {
	case s >= 3600:
		return fmt.Sprintf("%d:%02d:%02d", whole/3600, whole%3600/60, whole%60)
	case s >= 60:
		return fmt.Sprintf("%d:%02d", whole/60, whole%60)
	default:
		return fmt.Sprintf("%.1fs", s)
	}
}
