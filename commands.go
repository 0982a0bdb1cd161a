package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"media-editor/internal/codec"
	"media-editor/internal/database"
	"media-editor/internal/decoder"
	"media-editor/internal/encoder"
	"media-editor/internal/indexer"
	"media-editor/internal/logging"
	"media-editor/internal/media"
	"media-editor/internal/playlist"
	"media-editor/internal/probe"
	"media-editor/internal/startup"
	"media-editor/internal/transitions"
	"media-editor/internal/workers"
)

func printVersion(out io.Writer) error {
	info := startup.GetBuildInfo()
	tw := tabwriter.NewWriter(out, 0, 4, 1, ' ', 0)
	fmt.Fprintf(tw, "Version:\t%s\n", info.Version)
	fmt.Fprintf(tw, "Commit:\t%s\n", info.Commit)
	fmt.Fprintf(tw, "Built:\t%s\n", info.BuildTime)
	fmt.Fprintf(tw, "Go:\t%s %s/%s\n", info.GoVersion, info.OS, info.Arch)
	return tw.Flush()
}

// openBackend loads settings and builds the backend for a one-shot command.
// The returned func releases it.
func openBackend() (*startup.Config, codec.Backend, func(), error) {
	config, err := startup.LoadSettings()
	if err != nil {
		return nil, nil, nil, err
	}
	backend, trans := newBackend(config)
	release := func() {}
	if trans != nil {
		release = trans.Cleanup
	}
	return config, backend, release, nil
}

// probeOutput is the -json form of the probe command.
type probeOutput struct {
	Path     string        `json:"path"`
	Format   string        `json:"format"`
	Duration float64       `json:"duration"`
	Width    int           `json:"width,omitempty"`
	Height   int           `json:"height,omitempty"`
	FPS      float64       `json:"fps,omitempty"`
	HasAudio bool          `json:"hasAudio"`
	Streams  []probeStream `json:"streams"`
}

type probeStream struct {
	Index      int    `json:"index"`
	Kind       string `json:"kind"`
	Codec      string `json:"codec"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	FrameRate  string `json:"frameRate,omitempty"`
	SampleRate int    `json:"sampleRate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
}

func runProbe(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: probe takes one file", errUsage)
	}
	path := fs.Arg(0)

	_, backend, release, err := openBackend()
	if err != nil {
		return err
	}
	defer release()

	info, err := backend.Open(ctx, path)
	if err != nil {
		return fmt.Errorf("probe %s: %w", path, err)
	}

	res := probeOutput{Path: info.Path, Format: info.Format, Duration: info.Duration}
	if v, ok := info.Video(); ok {
		res.Width, res.Height, res.FPS = v.Width, v.Height, v.FrameRate.Float()
	}
	_, res.HasAudio = info.Audio()
	for _, s := range info.Streams {
		ps := probeStream{
			Index:      s.Index,
			Kind:       s.Kind.String(),
			Codec:      s.Codec,
			Width:      s.Width,
			Height:     s.Height,
			SampleRate: s.SampleRate,
			Channels:   s.Channels,
		}
		if s.FrameRate.Valid() {
			ps.FrameRate = s.FrameRate.String()
		}
		res.Streams = append(res.Streams, ps)
	}

	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "File:\t%s\n", res.Path)
	fmt.Fprintf(tw, "Format:\t%s\n", res.Format)
	fmt.Fprintf(tw, "Duration:\t%.3fs\n", res.Duration)
	if res.Width > 0 {
		fmt.Fprintf(tw, "Size:\t%dx%d @ %.3f fps\n", res.Width, res.Height, res.FPS)
	}
	fmt.Fprintf(tw, "Audio:\t%v\n", res.HasAudio)
	for _, s := range res.Streams {
		switch s.Kind {
		case "video":
			fmt.Fprintf(tw, "  #%d\t%s %s %dx%d %s\n", s.Index, s.Kind, s.Codec, s.Width, s.Height, s.FrameRate)
		case "audio":
			fmt.Fprintf(tw, "  #%d\t%s %s %d Hz %d ch\n", s.Index, s.Kind, s.Codec, s.SampleRate, s.Channels)
		default:
			fmt.Fprintf(tw, "  #%d\t%s %s\n", s.Index, s.Kind, s.Codec)
		}
	}
	return tw.Flush()
}

func runFrame(ctx context.Context, args []string, out io.Writer) error {
	if len(args) != 3 {
		return fmt.Errorf("%w: frame takes <file> <seconds> <out>", errUsage)
	}
	path, dest := args[0], args[2]
	ts, err := strconv.ParseFloat(args[1], 64)
	if err != nil || ts < 0 {
		return fmt.Errorf("%w: invalid time %q", errUsage, args[1])
	}
	if _, err := media.FormatOf(dest); err != nil {
		return err
	}

	_, backend, release, err := openBackend()
	if err != nil {
		return err
	}
	defer release()

	if err := media.InitVips(); err != nil {
		logging.Debug("libvips unavailable, using imaging: %v", err)
	} else {
		defer media.ShutdownVips()
	}

	frame, err := decoder.DecodeFrameAt(ctx, backend, path, ts)
	if err != nil {
		return fmt.Errorf("decode %s at %.3fs: %w", path, ts, err)
	}
	if err := media.SaveFrame(dest, frame.Image); err != nil {
		return err
	}
	b := frame.Image.Bounds()
	_, err = fmt.Fprintf(out, "Saved %dx%d frame at %.3fs to %s\n", b.Dx(), b.Dy(), frame.PTS, dest)
	return err
}

func runWaveform(ctx context.Context, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: waveform takes one file", errUsage)
	}
	_, backend, release, err := openBackend()
	if err != nil {
		return err
	}
	defer release()

	peaks, err := probe.Waveform(ctx, backend, args[0])
	if err != nil {
		return fmt.Errorf("waveform %s: %w", args[0], err)
	}
	return json.NewEncoder(out).Encode(map[string]any{"path": args[0], "peaks": peaks})
}

func runExport(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	output := fs.String("o", "", "output file (playlists only)")
	transition := fs.String("transition", "", "transition between playlist entries")
	transitionDur := fs.Float64("transition-duration", 0, "transition length in seconds")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: export takes one job or playlist file", errUsage)
	}
	src := fs.Arg(0)

	config, backend, release, err := openBackend()
	if err != nil {
		return err
	}
	defer release()

	var job *encoder.Job
	if playlist.IsPlaylist(src) {
		list, err := playlist.Load(src, config.MediaDir)
		if err != nil {
			return fmt.Errorf("load playlist: %w", err)
		}
		job, err = list.Sequence(ctx, backend, playlist.SequenceOptions{
			Output:             *output,
			Transition:         transitions.Kind(*transition),
			TransitionDuration: *transitionDur,
		})
		if err != nil {
			return err
		}
	} else {
		if job, err = encoder.LoadJob(src); err != nil {
			return err
		}
		if *output != "" {
			job.Output = *output
		}
		if err := job.Validate(nil); err != nil {
			return fmt.Errorf("invalid job %s: %w", src, err)
		}
	}

	return encodeJob(ctx, config, backend, job, out)
}

// encodeJob runs job to completion, reporting progress on out.
func encodeJob(ctx context.Context, config *startup.Config, backend codec.Backend, job *encoder.Job, out io.Writer) error {
	// Interrupts go through the cancel flag so the muxer is closed cleanly.
	cancel := new(atomic.Bool)
	stop := context.AfterFunc(ctx, func() { cancel.Store(true) })
	defer stop()

	total := job.TotalFrames(nil)
	report := newExportProgress(out, total)
	pipeline := encoder.New(backend, nil).WithQuality(config.EncodeCRF, config.EncodePreset)
	res, err := pipeline.Run(context.WithoutCancel(ctx), job, cancel, report.update)
	report.finish()
	if errors.Is(err, encoder.ErrCancelled) {
		fmt.Fprintf(out, "Export cancelled after %d of %d frames\n", report.last, total)
		return err
	}
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	_, err = fmt.Fprintf(out, "Wrote %s: %d frames, %.2fs in %s\n",
		res.Output, res.Frames, res.Duration, res.Elapsed.Round(time.Millisecond))
	return err
}

// exportProgress draws a bar on a terminal and logs every tenth otherwise.
type exportProgress struct {
	bar     *progressbar.ProgressBar
	out     io.Writer
	total   int
	last    int
	nextLog int
}

func newExportProgress(out io.Writer, total int) *exportProgress {
	p := &exportProgress{out: out, total: total, nextLog: 10}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(f),
			progressbar.OptionSetDescription("Encoding"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("frames"),
			progressbar.OptionSetWidth(50),
			progressbar.OptionSetRenderBlankState(true),
		)
	}
	return p
}

func (p *exportProgress) update(frame, total int) {
	p.last = frame
	if p.bar != nil {
		_ = p.bar.Set(frame)
		return
	}
	if total <= 0 {
		return
	}
	if pct := frame * 100 / total; pct >= p.nextLog {
		fmt.Fprintf(p.out, "Encoded %d/%d frames (%d%%)\n", frame, total, pct)
		for p.nextLog <= pct {
			p.nextLog += 10
		}
	}
}

func (p *exportProgress) finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
		fmt.Fprintln(p.out)
	}
}

func runIndex(ctx context.Context, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: index takes one directory", errUsage)
	}
	dir, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	config, backend, release, err := openBackend()
	if err != nil {
		return err
	}
	defer release()

	if err := os.MkdirAll(config.DatabaseDir, 0o755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	db, err := database.New(ctx, filepath.Join(config.DatabaseDir, startup.DatabaseFile))
	if err != nil {
		return err
	}
	defer db.Close()

	idx := indexer.New(db, backend, workers.NewGate(config.ProbeConcurrency), dir, 0)
	res, err := idx.Index(ctx)
	if err != nil {
		return fmt.Errorf("index %s: %w", dir, err)
	}
	_, err = fmt.Fprintf(out, "Indexed %s: %d found, %d probed, %d unchanged, %d failed, %d removed in %s\n",
		dir, res.Found, res.Probed, res.Skipped, res.Failed, res.Removed, res.Duration.Round(time.Millisecond))
	return err
}
