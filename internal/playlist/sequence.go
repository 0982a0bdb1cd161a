package playlist

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"media-editor/internal/codec"
	"media-editor/internal/encoder"
	"media-editor/internal/transitions"
)

// DefaultFPS is used when neither the options nor the first clip give a
// frame rate.
const DefaultFPS = 30

// SequenceOptions shape the export built from a playlist. Zero values are
// taken from the first clip.
type SequenceOptions struct {
	Output     string
	Width      int
	Height     int
	FPS        int
	Transition transitions.Kind
	// TransitionDuration of zero selects the kind's default.
	TransitionDuration float64
}

// Sequence builds an export job that plays every entry back to back, each
// at its full length.
func (p *Playlist) Sequence(ctx context.Context, backend codec.Backend, opts SequenceOptions) (*encoder.Job, error) {
	if missing := p.Missing(); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, m := range missing {
			names[i] = m.OrigPath
		}
		return nil, fmt.Errorf("playlist %s: %d entries not found: %s", p.Name, len(missing), strings.Join(names, ", "))
	}
	if len(p.Items) == 0 {
		return nil, fmt.Errorf("playlist %s is empty", p.Name)
	}

	job := &encoder.Job{
		ID:     p.Name,
		Output: opts.Output,
		Width:  opts.Width,
		Height: opts.Height,
		FPS:    opts.FPS,
	}
	if job.Output == "" {
		job.Output = filepath.Join(filepath.Dir(p.Path), p.Name+".mp4")
	}

	var errs []error
	for _, it := range p.Items {
		info, err := backend.Open(ctx, it.Path)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", it.Name, err))
			continue
		}
		v, ok := info.Video()
		if !ok {
			errs = append(errs, fmt.Errorf("%s: no video stream", it.Name))
			continue
		}
		if info.Duration <= 0 {
			errs = append(errs, fmt.Errorf("%s: unknown duration", it.Name))
			continue
		}
		if job.Width == 0 || job.Height == 0 {
			job.Width, job.Height = v.Width&^1, v.Height&^1
		}
		if job.FPS == 0 && v.FrameRate.Valid() {
			job.FPS = int(math.Round(v.FrameRate.Float()))
		}
		_, hasAudio := info.Audio()
		job.Clips = append(job.Clips, encoder.ClipSpec{
			Path:      it.Path,
			Duration:  info.Duration,
			Gain:      1,
			SkipAudio: !hasAudio,
		})
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if job.FPS == 0 {
		job.FPS = DefaultFPS
	}

	if opts.Transition != "" && opts.Transition != transitions.KindCut {
		for i := 0; i < len(job.Clips)-1; i++ {
			job.Transitions = append(job.Transitions, encoder.TransitionSpec{
				AfterClip: i,
				Kind:      opts.Transition,
				Duration:  opts.TransitionDuration,
			})
		}
	}
	return job, job.Validate(nil)
}
