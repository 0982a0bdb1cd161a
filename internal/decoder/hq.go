package decoder

import (
	"context"
	"errors"
	"fmt"
	"io"

	"media-editor/internal/codec"
)

// DecodeFrameAt returns one frame at the source's native size, for saving
// stills. Frames more than one 60 fps tick before t are skipped; when the
// stream ends first, the last decoded frame is used.
func DecodeFrameAt(ctx context.Context, backend codec.Backend, path string, t float64) (*Frame, error) {
	d, err := Open(ctx, backend, path, Options{Mode: "hq"}, nil)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	if _, err := d.Seek(t); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	frame, err := d.AdvanceTo(t - 1.0/60)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoFrame
		}
		return nil, fmt.Errorf("decode frame at %.3fs in %s: %w", t, path, err)
	}
	return frame, nil
}
