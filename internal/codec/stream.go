package codec

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Rational is a time base or frame rate such as 1/44100 or 30000/1001.
type Rational struct {
	Num int
	Den int
}

// ParseRational accepts "30000/1001", "30" and "29.97".
func ParseRational(s string) (Rational, error) {
	s = strings.TrimSpace(s)
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err := strconv.Atoi(num)
		if err != nil {
			return Rational{}, fmt.Errorf("invalid rational %q: %w", s, err)
		}
		d, err := strconv.Atoi(den)
		if err != nil {
			return Rational{}, fmt.Errorf("invalid rational %q: %w", s, err)
		}
		return Rational{Num: n, Den: d}, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Rational{}, fmt.Errorf("invalid rational %q: %w", s, err)
	}
	if f == math.Trunc(f) {
		return Rational{Num: int(f), Den: 1}, nil
	}
	return Rational{Num: int(math.Round(f * 1000)), Den: 1000}, nil
}

// Valid reports whether both parts are positive.
func (r Rational) Valid() bool {
	return r.Num > 0 && r.Den > 0
}

// Float returns Num/Den, or 0 for an invalid rational.
func (r Rational) Float() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// Seconds converts a timestamp in this time base to seconds.
func (r Rational) Seconds(ts int64) float64 {
	return float64(ts) * r.Float()
}

// Rescale converts seconds to this time base, rounding to nearest.
func (r Rational) Rescale(seconds float64) int64 {
	if !r.Valid() {
		return 0
	}
	return int64(math.Round(seconds * float64(r.Den) / float64(r.Num)))
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// StreamKind classifies a stream.
type StreamKind int

const (
	StreamOther StreamKind = iota
	StreamVideo
	StreamAudio
)

func (k StreamKind) String() string {
	switch k {
	case StreamVideo:
		return "video"
	case StreamAudio:
		return "audio"
	default:
		return "other"
	}
}

// StreamInfo is one stream's metadata.
type StreamInfo struct {
	Index       int
	Kind        StreamKind
	Codec       string
	Width       int
	Height      int
	PixelFormat string
	FrameRate   Rational
	TimeBase    Rational
	SampleRate  int
	Channels    int
	Duration    float64
}

// ContainerInfo is what opening a file reveals.
type ContainerInfo struct {
	Path      string
	Format    string
	Duration  float64
	StartTime float64
	Streams   []StreamInfo
}

// Video returns the first video stream.
func (c *ContainerInfo) Video() (StreamInfo, bool) {
	return c.first(StreamVideo)
}

// Audio returns the first audio stream.
func (c *ContainerInfo) Audio() (StreamInfo, bool) {
	return c.first(StreamAudio)
}

func (c *ContainerInfo) first(kind StreamKind) (StreamInfo, bool) {
	for _, s := range c.Streams {
		if s.Kind == kind {
			return s, true
		}
	}
	return StreamInfo{}, false
}

// RawFrame is one decoded, unconverted frame: packed yuv420p at the
// stream's own size.
type RawFrame struct {
	// PTS in seconds from the start of the stream.
	PTS    float64
	Width  int
	Height int
	Format string
	Data   []byte
}

// Reset prepares f to receive a frame of the given size, reusing Data when
// its capacity allows.
func (f *RawFrame) Reset(w, h, size int) {
	if cap(f.Data) < size {
		f.Data = make([]byte, size)
	}
	f.Data = f.Data[:size]
	f.Width, f.Height = w, h
	f.Format = "yuv420p"
}

// Clone returns a deep copy.
func (f *RawFrame) Clone() *RawFrame {
	out := *f
	out.Data = append([]byte(nil), f.Data...)
	return &out
}
