package decoder

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strconv"
	"time"

	"media-editor/internal/codec"
	"media-editor/internal/metrics"
	"media-editor/internal/planes"
)

// ptsEpsilon absorbs float error when comparing frame times to targets.
const ptsEpsilon = 1e-6

var (
	// ErrNoFrame is returned when the stream ended before any frame decoded.
	ErrNoFrame = errors.New("decoder: no frame decoded")
	// ErrClosed is returned by every operation on a closed decoder.
	ErrClosed = errors.New("decoder: closed")
)

// State is the decoder lifecycle position.
type State int

const (
	StateIdle State = iota
	StatePositioned
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePositioned:
		return "positioned"
	case StateClosed:
		return "closed"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

// Frame is a converted display frame.
type Frame struct {
	Image *image.RGBA
	// PTS in seconds from the start of the source.
	PTS float64
}

// Options configures a Decoder.
type Options struct {
	// MaxWidth caps the output width; the height follows the source aspect.
	// Zero keeps the native size.
	MaxWidth int
	// Mode labels metrics: "scrub", "playback", "hq" or "probe".
	Mode string
}

// Decoder is a stateful frame source for one file. It is not safe for
// concurrent use; each worker goroutine owns its own.
type Decoder struct {
	path   string
	opts   Options
	reader codec.VideoReader
	stream codec.StreamInfo
	state  State

	outW, outH int
	scaler     *planes.Scaler

	// raw is a double buffer: the next frame is read into raw[1-cur] so a
	// failed read leaves the last good frame in raw[cur] intact.
	raw     [2]codec.RawFrame
	cur     int
	decoded bool
	// pending marks raw[cur] as decoded but not yet delivered.
	pending bool

	out *image.RGBA
}

// Open opens path on backend. reuse, if non-nil, is adopted as the
// conversion context when its key matches this source; otherwise a new one
// is built.
func Open(ctx context.Context, backend codec.Backend, path string, opts Options, reuse *planes.Scaler) (*Decoder, error) {
	r, err := backend.OpenVideo(ctx, path, codec.VideoOptions{})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	stream := r.Stream()
	if stream.Width <= 0 || stream.Height <= 0 {
		_ = r.Close()
		return nil, fmt.Errorf("open %s: invalid video size %dx%d", path, stream.Width, stream.Height)
	}
	if opts.Mode == "" {
		opts.Mode = "scrub"
	}

	d := &Decoder{path: path, opts: opts, reader: r, stream: stream}
	d.outW, d.outH = planes.FitWidth(stream.Width, stream.Height, opts.MaxWidth)
	d.out = image.NewRGBA(image.Rect(0, 0, d.outW, d.outH))

	key := d.keyFor(stream.Width&^1, stream.Height&^1)
	if reuse.Matches(key) {
		d.scaler = reuse
		metrics.DecoderOpensTotal.WithLabelValues("reused").Inc()
	} else {
		if d.scaler, err = planes.NewScaler(key, nil); err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		metrics.DecoderOpensTotal.WithLabelValues("new").Inc()
	}
	log.Debug("opened %s %dx%d -> %dx%d", path, stream.Width, stream.Height, d.outW, d.outH)
	return d, nil
}

func (d *Decoder) keyFor(srcW, srcH int) planes.Key {
	return planes.Key{SrcW: srcW, SrcH: srcH, DstW: d.outW, DstH: d.outH, Dst: planes.FormatRGBA}
}

// Path returns the source path.
func (d *Decoder) Path() string { return d.path }

// State returns the lifecycle state.
func (d *Decoder) State() State { return d.state }

// Stream returns the source video stream metadata.
func (d *Decoder) Stream() codec.StreamInfo { return d.stream }

// Size returns the output frame size.
func (d *Decoder) Size() (int, int) { return d.outW, d.outH }

// Scaler returns the conversion context so a successor decoder can reuse it.
func (d *Decoder) Scaler() *planes.Scaler { return d.scaler }

// LastPTS returns the timestamp of the most recently decoded frame, or -1
// when nothing has been decoded since the last seek.
func (d *Decoder) LastPTS() float64 {
	if !d.decoded {
		return -1
	}
	return d.raw[d.cur].PTS
}

// Seek positions the decoder at or before ts. It reports whether the
// reader actually moved; when it did not, decoding continues from the
// current position.
func (d *Decoder) Seek(ts float64) (bool, error) {
	if d.state == StateClosed {
		return false, ErrClosed
	}
	d.state = StatePositioned
	moved := SeekTo(d.reader, ts, d.opts.Mode)
	if moved {
		d.decoded = false
		d.pending = false
	}
	return moved, nil
}

// read decodes one frame into the spare buffer and swaps it in.
func (d *Decoder) read() error {
	next := 1 - d.cur
	if err := d.reader.ReadFrame(&d.raw[next]); err != nil {
		return err
	}
	d.cur = next
	d.decoded = true
	d.pending = true
	return nil
}

func (d *Decoder) ready() error {
	switch d.state {
	case StateClosed:
		return ErrClosed
	case StateIdle:
		d.state = StatePositioned
	}
	return nil
}

// NextFrame returns the next frame in presentation order, converted. It
// returns io.EOF at end of stream.
func (d *Decoder) NextFrame() (*Frame, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}
	if !d.pending {
		if err := d.read(); err != nil {
			return nil, err
		}
	}
	return d.deliver()
}

// BurnTo decodes without converting until a frame at or past target is
// buffered; the next NextFrame returns that frame. It returns io.EOF if the
// stream ends first.
func (d *Decoder) BurnTo(target float64) error {
	if err := d.ready(); err != nil {
		return err
	}
	for {
		if d.pending && d.raw[d.cur].PTS >= target-ptsEpsilon {
			return nil
		}
		if err := d.read(); err != nil {
			return err
		}
		if d.raw[d.cur].PTS < target-ptsEpsilon {
			d.pending = false
			metrics.DecoderFramesTotal.WithLabelValues(d.opts.Mode, "false").Inc()
		}
	}
}

// AdvanceTo decodes forward to the first frame whose timestamp reaches
// target and converts only that frame. When the stream ends first the last
// decoded frame is returned instead; ErrNoFrame means nothing decoded at all.
func (d *Decoder) AdvanceTo(target float64) (*Frame, error) {
	err := d.BurnTo(target)
	switch {
	case err == nil:
		return d.deliver()
	case errors.Is(err, io.EOF) && d.decoded:
		return d.deliver()
	case errors.Is(err, io.EOF):
		return nil, ErrNoFrame
	default:
		return nil, err
	}
}

// deliver converts raw[cur] into the reusable output image and returns a
// clone of it.
func (d *Decoder) deliver() (*Frame, error) {
	raw := &d.raw[d.cur]
	if err := d.convert(raw); err != nil {
		return nil, err
	}
	d.pending = false
	return &Frame{Image: cloneRGBA(d.out), PTS: raw.PTS}, nil
}

func (d *Decoder) convert(raw *codec.RawFrame) error {
	start := time.Now()
	key := d.keyFor(raw.Width, raw.Height)
	if !d.scaler.Matches(key) {
		s, err := planes.NewScaler(key, nil)
		if err != nil {
			return fmt.Errorf("scaler for %dx%d frame: %w", raw.Width, raw.Height, err)
		}
		log.Debug("%s: frame size %dx%d differs from stream metadata, rebuilt scaler", d.path, raw.Width, raw.Height)
		d.scaler = s
	}
	if err := d.scaler.ToRGBA(d.out, raw.Data); err != nil {
		return err
	}
	metrics.DecoderConvertDuration.Observe(time.Since(start).Seconds())
	metrics.DecoderFramesTotal.WithLabelValues(d.opts.Mode, "true").Inc()
	return nil
}

// Close releases the reader. It is safe to call more than once.
func (d *Decoder) Close() error {
	if d.state == StateClosed {
		return nil
	}
	d.state = StateClosed
	return d.reader.Close()
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	return &image.RGBA{
		Pix:    append([]byte(nil), src.Pix...),
		Stride: src.Stride,
		Rect:   src.Rect,
	}
}
