package probe

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"time"

	"media-editor/internal/codec"
	"media-editor/internal/decoder"
	"media-editor/internal/logging"
	"media-editor/internal/metrics"
	"media-editor/internal/planes"

	"github.com/disintegration/imaging"
)

// ThumbnailWidth is the width of generated thumbnails.
const ThumbnailWidth = 320

// ErrDurationUnknown is returned when neither the container nor any stream
// reports a duration.
var ErrDurationUnknown = errors.New("duration unknown")

var log = logging.For("probe")

// Thumbnail is the result of a one-frame decode near the start of a clip.
type Thumbnail struct {
	// Width and Height are the decoded frame's own dimensions.
	Width  int
	Height int
	Image  *image.NRGBA
	PTS    float64
}

func observe(kind string, start time.Time, err error) {
	metrics.ProbeDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.ProbesTotal.WithLabelValues(kind, status).Inc()
}

// Duration returns the source duration in seconds. The container duration
// is preferred; the first video or audio stream duration is the fallback.
func Duration(ctx context.Context, backend codec.Backend, path string) (d float64, err error) {
	start := time.Now()
	defer func() { observe("duration", start, err) }()

	info, err := backend.Open(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("probe duration: %w", err)
	}
	if info.Duration > 0 {
		return info.Duration, nil
	}
	for _, s := range info.Streams {
		if (s.Kind == codec.StreamVideo || s.Kind == codec.StreamAudio) && s.Duration > 0 {
			return s.Duration, nil
		}
	}
	return 0, fmt.Errorf("probe duration of %s: %w", path, ErrDurationUnknown)
}

// ThumbnailTime is where the thumbnail frame is taken: 10% into the clip
// but at least one second in, or the first frame for clips of two seconds
// or less.
func ThumbnailTime(duration float64) float64 {
	if duration <= 2 {
		return 0
	}
	return max(duration*0.1, 1.0)
}

// ThumbnailSize returns the thumbnail dimensions for a w x h source.
func ThumbnailSize(w, h int) (int, int) {
	if w <= 0 || h <= 0 {
		return ThumbnailWidth, 2
	}
	th := ThumbnailWidth * h / w
	return ThumbnailWidth, planes.Even(max(th, 2))
}

// VideoThumbnail seeks near ThumbnailTime(duration) and converts the first
// frame that decodes.
func VideoThumbnail(ctx context.Context, backend codec.Backend, path string, duration float64) (thumb *Thumbnail, err error) {
	start := time.Now()
	defer func() { observe("thumbnail", start, err) }()

	r, err := backend.OpenVideo(ctx, path, codec.VideoOptions{Threads: 1})
	if err != nil {
		return nil, fmt.Errorf("probe thumbnail: %w", err)
	}
	defer r.Close()

	decoder.SeekTo(r, ThumbnailTime(duration), "probe")

	var raw codec.RawFrame
	if err := r.ReadFrame(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("probe thumbnail of %s: %w", path, decoder.ErrNoFrame)
		}
		return nil, fmt.Errorf("probe thumbnail of %s: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Built here, from the decoded frame, never from the stream metadata.
	scaler, err := planes.NewScaler(planes.Key{
		SrcW: raw.Width, SrcH: raw.Height,
		DstW: raw.Width, DstH: raw.Height,
		Dst: planes.FormatRGBA,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("probe thumbnail of %s: %w", path, err)
	}
	full := image.NewRGBA(image.Rect(0, 0, raw.Width, raw.Height))
	if err := scaler.ToRGBA(full, raw.Data); err != nil {
		return nil, fmt.Errorf("probe thumbnail of %s: %w", path, err)
	}

	tw, th := ThumbnailSize(raw.Width, raw.Height)
	log.Debug("thumbnail %s at %.2fs: %dx%d -> %dx%d", path, raw.PTS, raw.Width, raw.Height, tw, th)
	return &Thumbnail{
		Width:  raw.Width,
		Height: raw.Height,
		Image:  imaging.Resize(full, tw, th, imaging.Lanczos),
		PTS:    raw.PTS,
	}, nil
}
