package encoder

import (
	"context"
	"errors"
	"fmt"
	"io"

	"media-editor/internal/codec"
	"media-editor/internal/decoder"
	"media-editor/internal/planes"
)

// clipSource yields output-ready frames and audio for one clip.
type clipSource struct {
	spec   ClipSpec
	fps    int
	outW   int
	outH   int
	reader codec.VideoReader
	audio  codec.AudioReader

	// cur is the source frame currently shown; next is read ahead.
	cur, next         codec.RawFrame
	haveCur, haveNext bool
	eof               bool
	converted         bool

	scaler *planes.Scaler
	out    []byte
	pcm    []float32
}

func openClip(ctx context.Context, backend codec.Backend, spec ClipSpec, fps, w, h int) (*clipSource, error) {
	r, err := backend.OpenVideo(ctx, spec.Path, codec.VideoOptions{})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", spec.Path, err)
	}
	c := &clipSource{
		spec:   spec,
		fps:    fps,
		outW:   w,
		outH:   h,
		reader: r,
		out:    make([]byte, planes.PackedLen(w, h)),
	}
	decoder.SeekTo(r, spec.Start, "encode")

	if !spec.SkipAudio {
		a, err := backend.OpenAudio(ctx, spec.Path, codec.AudioOptions{
			SampleRate: codec.SampleRate,
			Channels:   codec.Channels,
			Start:      spec.Start,
			Duration:   spec.Duration,
		})
		switch {
		case err == nil:
			c.audio = a
		case errors.Is(err, codec.ErrNoStream):
			log.Debug("%s has no audio, using silence", spec.Path)
		default:
			log.Warn("audio decoder open failed for %s: %v (using silence)", spec.Path, err)
		}
	}
	return c, nil
}

// frame returns local output frame j: the latest source frame whose
// timestamp is at or before start + j/fps, with half a frame of tolerance.
// Skipped source frames are never converted. Past the end of the source
// the last frame repeats.
func (c *clipSource) frame(j int) ([]byte, error) {
	half := 0.5 / float64(c.fps)
	t := c.spec.Start + float64(j)/float64(c.fps) + half
	for {
		if !c.haveNext && !c.eof {
			err := c.reader.ReadFrame(&c.next)
			switch {
			case errors.Is(err, io.EOF):
				c.eof = true
			case err != nil:
				return nil, fmt.Errorf("decode %s: %w", c.spec.Path, err)
			default:
				c.haveNext = true
			}
		}
		if !c.haveNext {
			break
		}
		if c.haveCur && c.next.PTS > t {
			break
		}
		// The first frame is taken even if it starts late.
		c.cur, c.next = c.next, c.cur
		c.haveCur, c.haveNext = true, false
		c.converted = false
	}
	if !c.haveCur {
		return nil, fmt.Errorf("decode %s: %w", c.spec.Path, decoder.ErrNoFrame)
	}
	if !c.converted {
		if err := c.convert(&c.cur); err != nil {
			return nil, err
		}
		c.converted = true
	}
	return c.out, nil
}

// convert center-crops and scales raw into the output buffer. The scaler
// is built from the first decoded frame and rebuilt if the size changes.
func (c *clipSource) convert(raw *codec.RawFrame) error {
	key := planes.Key{
		SrcW: raw.Width,
		SrcH: raw.Height,
		Crop: planes.CenterCrop(raw.Width, raw.Height, c.outW, c.outH),
		DstW: c.outW,
		DstH: c.outH,
		Dst:  planes.FormatYUV420P,
	}
	if !c.scaler.Matches(key) {
		s, err := planes.NewScaler(key, nil)
		if err != nil {
			return fmt.Errorf("scale %s: %w", c.spec.Path, err)
		}
		c.scaler = s
	}
	if err := c.scaler.ToYUV(c.out, raw.Data); err != nil {
		return fmt.Errorf("scale %s: %w", c.spec.Path, err)
	}
	return nil
}

// samples returns n interleaved sample frames scaled by the clip gain.
// Missing audio and early end of stream yield silence.
func (c *clipSource) samples(n int) ([]float32, error) {
	size := n * codec.Channels
	if cap(c.pcm) < size {
		c.pcm = make([]float32, size)
	}
	buf := c.pcm[:size]
	filled := 0
	for c.audio != nil && filled < size {
		got, err := c.audio.ReadSamples(buf[filled:])
		filled += got
		if errors.Is(err, io.EOF) {
			_ = c.audio.Close()
			c.audio = nil
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode audio %s: %w", c.spec.Path, err)
		}
		if got == 0 {
			break
		}
	}
	clear(buf[filled:])
	if c.spec.Gain != 1 {
		g := float32(c.spec.Gain)
		for i := range buf[:filled] {
			buf[i] *= g
		}
	}
	return buf, nil
}

func (c *clipSource) Close() error {
	if c.audio != nil {
		_ = c.audio.Close()
		c.audio = nil
	}
	return c.reader.Close()
}
