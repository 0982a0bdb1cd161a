package encoder

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"media-editor/internal/codec"
	"media-editor/internal/logging"
	"media-editor/internal/metrics"
	"media-editor/internal/planes"
	"media-editor/internal/transitions"
)

// ProgressInterval is how often, in encoded frames, progress is reported.
const ProgressInterval = 15

// ErrCancelled is returned when a job's cancel flag was set.
var ErrCancelled = errors.New("cancelled")

var log = logging.For("encode")

// ProgressFunc receives the number of frames written and the job total.
type ProgressFunc func(frame, total int)

// Result describes a finished export.
type Result struct {
	Output   string
	Frames   int
	Duration float64
	Elapsed  time.Duration
}

// Pipeline encodes jobs against a codec backend.
type Pipeline struct {
	backend     codec.Backend
	transitions *transitions.Registry
	crf         int
	preset      string
}

// New creates a pipeline. A nil registry uses transitions.Default().
func New(backend codec.Backend, reg *transitions.Registry) *Pipeline {
	if reg == nil {
		reg = transitions.Default()
	}
	return &Pipeline{backend: backend, transitions: reg, crf: DefaultCRF, preset: DefaultPreset}
}

// WithQuality sets the default CRF and preset for jobs that do not carry
// their own.
func (p *Pipeline) WithQuality(crf int, preset string) *Pipeline {
	if crf > 0 {
		p.crf = crf
	}
	if preset != "" {
		p.preset = preset
	}
	return p
}

// run holds the state of one encode.
type run struct {
	p        *Pipeline
	job      *Job
	plan     *Plan
	mux      codec.Muxer
	audioTB  codec.Rational
	cancel   *atomic.Bool
	ctx      context.Context
	progress ProgressFunc

	frame   int
	blended []byte

	fifo      []float32
	mixed     []float32
	sampleIdx int64
}

// Run encodes job. cancel may be nil. It blocks until the output is
// finalized, the job fails, or cancel is set, in which case the partial
// output is aborted and ErrCancelled returned.
func (p *Pipeline) Run(ctx context.Context, job *Job, cancel *atomic.Bool, progress ProgressFunc) (res *Result, err error) {
	start := time.Now()
	if err := job.Validate(p.transitions); err != nil {
		return nil, err
	}
	if cancel == nil {
		cancel = new(atomic.Bool)
	}
	if progress == nil {
		progress = func(int, int) {}
	}

	crf, preset := job.CRF, job.Preset
	if crf <= 0 {
		crf = p.crf
	}
	if preset == "" {
		preset = p.preset
	}

	r := &run{
		p:        p,
		job:      job,
		plan:     job.Plan(p.transitions),
		cancel:   cancel,
		ctx:      ctx,
		progress: progress,
		blended:  make([]byte, planes.PackedLen(job.Width, job.Height)),
	}

	// Parameter sets must be in the header for MP4-family outputs to reopen.
	mux, err := p.backend.NewMuxer(ctx, codec.MuxerOptions{
		Path:         job.Output,
		Width:        job.Width,
		Height:       job.Height,
		FPS:          job.FPS,
		GOP:          job.FPS,
		CRF:          crf,
		Preset:       preset,
		Audio:        true,
		SampleRate:   codec.SampleRate,
		Channels:     codec.Channels,
		GlobalHeader: codec.RequiresGlobalHeader(job.Output),
	})
	if err != nil {
		return nil, fmt.Errorf("could not open output %s: %w", job.Output, err)
	}
	r.mux = mux
	defer func() {
		if err != nil {
			if aerr := mux.Abort(); aerr != nil {
				log.Warn("abort %s: %v", job.Output, aerr)
			}
		}
	}()

	if err := mux.WriteHeader(); err != nil {
		return nil, fmt.Errorf("write output header: %w", err)
	}
	// The muxer may adjust time bases while writing the header.
	if r.audioTB, err = mux.AudioTimeBase(); err != nil {
		return nil, fmt.Errorf("audio time base: %w", err)
	}

	log.Info("encoding %s: %d clips, %d frames at %dx%d@%d", job.Output, len(job.Clips), r.plan.Total, job.Width, job.Height, job.FPS)
	if err := r.encode(); err != nil {
		return nil, err
	}
	if err := r.flushAudio(); err != nil {
		return nil, err
	}
	if err := mux.Close(); err != nil {
		return nil, fmt.Errorf("write trailer: %w", err)
	}

	res = &Result{
		Output:   job.Output,
		Frames:   r.frame,
		Duration: float64(r.frame) / float64(job.FPS),
		Elapsed:  time.Since(start),
	}
	metrics.EncodeDuration.Observe(res.Elapsed.Seconds())
	log.Info("encoded %s: %d frames (%.2fs) in %v", job.Output, res.Frames, res.Duration, res.Elapsed.Round(time.Millisecond))
	return res, nil
}

func (r *run) encode() error {
	segs := r.plan.Segments
	var next *clipSource
	defer func() {
		if next != nil {
			_ = next.Close()
		}
	}()

	for i := range segs {
		seg := &segs[i]
		cur := next
		next = nil
		if cur == nil {
			var err error
			if cur, err = r.open(seg.Clip); err != nil {
				return err
			}
		}
		err := r.encodeSegment(cur, seg, i, &next)
		_ = cur.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// encodeSegment writes the frames clip i owns alone, then the overlap with
// clip i+1, leaving clip i+1 open in *next.
func (r *run) encodeSegment(cur *clipSource, seg *Segment, i int, next **clipSource) error {
	for j := seg.In; j < seg.Frames-seg.Out; j++ {
		frame, err := cur.frame(j)
		if err != nil {
			return err
		}
		pcm, err := cur.samples(r.samplesFor(r.frame))
		if err != nil {
			return err
		}
		if err := r.write(frame, pcm); err != nil {
			return err
		}
	}
	if seg.Out == 0 {
		return nil
	}

	in, err := r.open(r.plan.Segments[i+1].Clip)
	if err != nil {
		return err
	}
	*next = in
	impl, _ := r.p.transitions.Lookup(seg.Transition.Kind)
	base := seg.Frames - seg.Out
	for k := 0; k < seg.Out; k++ {
		a, err := cur.frame(base + k)
		if err != nil {
			return err
		}
		b, err := in.frame(k)
		if err != nil {
			return err
		}
		w := float64(k) / float64(seg.Out)
		impl.Apply(r.blended, a, b, r.job.Width, r.job.Height, w)

		n := r.samplesFor(r.frame)
		pa, err := cur.samples(n)
		if err != nil {
			return err
		}
		pb, err := in.samples(n)
		if err != nil {
			return err
		}
		if err := r.write(r.blended, mixAudio(r.mixBuffer(len(pa)), pa, pb, w)); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) open(spec ClipSpec) (*clipSource, error) {
	return openClip(r.ctx, r.p.backend, spec, r.job.FPS, r.job.Width, r.job.Height)
}

// samplesFor is the number of audio sample frames belonging to output
// frame g.
func (r *run) samplesFor(g int) int {
	fps := int64(r.job.FPS)
	at := func(f int) int64 { return int64(f) * codec.SampleRate / fps }
	return int(at(g+1) - at(g))
}

func (r *run) mixBuffer(n int) []float32 {
	if cap(r.mixed) < n {
		r.mixed = make([]float32, n)
	}
	return r.mixed[:n]
}

func mixAudio(dst, a, b []float32, w float64) []float32 {
	wa, wb := float32(1-w), float32(w)
	for i := range dst {
		dst[i] = a[i]*wa + b[i]*wb
	}
	return dst
}

// write encodes one output frame and its audio, then checks for
// cancellation and reports progress.
func (r *run) write(frame []byte, pcm []float32) error {
	if err := r.mux.WriteVideo(frame, int64(r.frame)); err != nil {
		return fmt.Errorf("write video frame %d: %w", r.frame, err)
	}
	r.frame++
	metrics.EncodeFramesTotal.Inc()

	r.fifo = append(r.fifo, pcm...)
	if err := r.drainAudio(false); err != nil {
		return err
	}

	if r.cancel.Load() || r.ctx.Err() != nil {
		return ErrCancelled
	}
	if r.frame%ProgressInterval == 0 {
		r.progress(r.frame, r.plan.Total)
	}
	return nil
}

// drainAudio writes every full packet in the FIFO. With flush set, the
// remainder is zero padded into one final packet.
func (r *run) drainAudio(flush bool) error {
	packet := codec.AudioFrameSize * codec.Channels
	for len(r.fifo) >= packet || (flush && len(r.fifo) > 0) {
		if len(r.fifo) < packet {
			r.fifo = append(r.fifo, make([]float32, packet-len(r.fifo))...)
		}
		pts := r.audioTB.Rescale(float64(r.sampleIdx) / codec.SampleRate)
		if err := r.mux.WriteAudio(r.fifo[:packet], pts); err != nil {
			return fmt.Errorf("write audio packet: %w", err)
		}
		r.sampleIdx += codec.AudioFrameSize
		r.fifo = append(r.fifo[:0], r.fifo[packet:]...)
	}
	return nil
}

func (r *run) flushAudio() error {
	return r.drainAudio(true)
}
