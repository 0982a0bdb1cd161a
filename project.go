package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"text/tabwriter"

	"github.com/google/uuid"

	"media-editor/internal/codec"
	"media-editor/internal/mediatypes"
	"media-editor/internal/timeline"
)

// runProject appends media files to the end of a project's tracks,
// creating the project file when it does not exist.
func runProject(ctx context.Context, args []string, out io.Writer) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: project takes a project file and at least one media file", errUsage)
	}
	path, files := args[0], args[1:]

	t, err := timeline.Load(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		t = timeline.New()
	case err != nil:
		return err
	}

	_, backend, release, err := openBackend()
	if err != nil {
		return err
	}
	defer release()

	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return err
		}
		if !mediatypes.IsImportable(abs) {
			return fmt.Errorf("%s: not a video or audio file", f)
		}
		id := t.AddMedia(abs)
		if err := probeInto(ctx, backend, t, id, abs); err != nil {
			return err
		}
		row := timeline.TrackV1
		if mediatypes.KindOf(abs) == mediatypes.KindAudio {
			row = timeline.TrackA1
		}
		t.Place(id, trackEnd(t, row), row)
	}

	if err := t.Save(path); err != nil {
		return err
	}
	return printProject(out, path, t)
}

// runRender exports V1 of a saved project.
func runRender(ctx context.Context, args []string, out io.Writer) error {
	fset := flag.NewFlagSet("render", flag.ContinueOnError)
	fset.SetOutput(io.Discard)
	output := fset.String("o", "", "output file")
	fps := fset.Int("fps", timeline.DefaultExportFPS, "output frame rate")
	short := fset.Int("height", timeline.DefaultExportHeight, "length of the shorter output side")
	if err := fset.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fset.NArg() != 1 {
		return fmt.Errorf("%w: render takes one project file", errUsage)
	}
	path := fset.Arg(0)

	t, err := timeline.Load(path)
	if err != nil {
		return err
	}

	config, backend, release, err := openBackend()
	if err != nil {
		return err
	}
	defer release()

	// Media imported before probing finished still carries a placeholder length.
	for _, m := range t.Library {
		if !m.Probed {
			if err := probeInto(ctx, backend, t, m.ID, m.Path); err != nil {
				return err
			}
		}
	}

	dst := *output
	if dst == "" {
		dst = path[:len(path)-len(filepath.Ext(path))] + ".mp4"
	}
	job, err := t.BuildJob(timeline.ExportOptions{
		Output: dst,
		Short:  *short,
		FPS:    *fps,
		CRF:    config.EncodeCRF,
		Preset: config.EncodePreset,
	})
	if err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	if err := job.Validate(nil); err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	return encodeJob(ctx, config, backend, job, out)
}

// probeInto records the duration and size of path on the library entry id.
func probeInto(ctx context.Context, backend codec.Backend, t *timeline.Timeline, id uuid.UUID, path string) error {
	info, err := backend.Open(ctx, path)
	if err != nil {
		return fmt.Errorf("probe %s: %w", path, err)
	}
	w, h := 0, 0
	if v, ok := info.Video(); ok {
		w, h = v.Width, v.Height
	}
	t.SetProbe(id, info.Duration, w, h)
	return nil
}

func trackEnd(t *timeline.Timeline, row int) float64 {
	end := 0.0
	for _, c := range t.Track(row) {
		end = max(end, c.End())
	}
	return end
}

func printProject(out io.Writer, path string, t *timeline.Timeline) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Project:\t%s\n", path)
	fmt.Fprintf(tw, "Aspect:\t%s\n", t.Aspect)
	fmt.Fprintf(tw, "Media:\t%d\n", len(t.Library))
	fmt.Fprintf(tw, "Length:\t%s\n", timeline.FormatDuration(t.TotalDuration()))
	for _, row := range []int{timeline.TrackV1, timeline.TrackA1, timeline.TrackV2, timeline.TrackA2} {
		if clips := t.Track(row); len(clips) > 0 {
			fmt.Fprintf(tw, "%s:\t%d clips, ends %s\n", trackName(row), len(clips), timeline.FormatTime(trackEnd(t, row)))
		}
	}
	return tw.Flush()
}

func trackName(row int) string {
	switch row {
	case timeline.TrackV1:
		return "V1"
	case timeline.TrackA1:
		return "A1"
	case timeline.TrackV2:
		return "V2"
	default:
		return "A2"
	}
}
