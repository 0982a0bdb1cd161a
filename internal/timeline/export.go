package timeline

import (
	"errors"
	"fmt"
	"math"

	"media-editor/internal/encoder"
)

// Export defaults.
const (
	DefaultExportHeight = 1080
	DefaultExportFPS    = 30
)

// ErrEmptyTrack is returned by BuildJob when the export track has no clips.
var ErrEmptyTrack = errors.New("timeline: nothing on the export track")

// ExportOptions control BuildJob.
type ExportOptions struct {
	Output string
	// Track is the video track exported. Zero is V1.
	Track int
	// Short is the length of the shorter output side.
	Short  int
	FPS    int
	CRF    int
	Preset string
}

// BuildJob turns the clips of one video track into an export job, in
// timeline order with gaps closed. A clip whose audio was extracted keeps
// its sound at the linked clip's volume as long as the pair is still
// aligned; otherwise its audio is skipped.
func (t *Timeline) BuildJob(opts ExportOptions) (*encoder.Job, error) {
	if opts.Short <= 0 {
		opts.Short = DefaultExportHeight
	}
	if opts.FPS <= 0 {
		opts.FPS = DefaultExportFPS
	}

	clips := t.Track(opts.Track)
	if len(clips) == 0 {
		return nil, ErrEmptyTrack
	}

	w, h := t.Aspect.OutputSize(opts.Short)
	job := &encoder.Job{
		Width:  w,
		Height: h,
		FPS:    opts.FPS,
		Output: opts.Output,
		CRF:    opts.CRF,
		Preset: opts.Preset,
	}

	for i, c := range clips {
		m, ok := t.Media(c.MediaID)
		if !ok {
			return nil, fmt.Errorf("clip %s refers to missing media %s", c.ID, c.MediaID)
		}
		spec := encoder.ClipSpec{
			Path:     m.Path,
			Start:    c.Offset,
			Duration: c.Duration,
			Gain:     c.Volume,
		}
		if c.AudioMuted {
			spec.Gain = 0
			if a, ok := t.Linked(c.ID); ok && aligned(c, *a) {
				spec.Gain = a.Volume
			}
		}
		spec.SkipAudio = spec.Gain == 0
		job.Clips = append(job.Clips, spec)

		if i == len(clips)-1 {
			continue
		}
		if tr, ok := t.TransitionAfter(c.ID); ok {
			job.Transitions = append(job.Transitions, encoder.TransitionSpec{
				AfterClip: i,
				Kind:      tr.Kind,
				Duration:  tr.Duration,
			})
		}
	}

	if err := job.Validate(nil); err != nil {
		return nil, err
	}
	return job, nil
}

func aligned(a, b Clip) bool {
	const eps = 1e-6
	return math.Abs(a.Start-b.Start) < eps &&
		math.Abs(a.Offset-b.Offset) < eps &&
		math.Abs(a.Duration-b.Duration) < eps
}
