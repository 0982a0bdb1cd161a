package orchestrator

import (
	"errors"

	"media-editor/internal/codec"
	"media-editor/internal/metrics"
	"media-editor/internal/probe"
)

// Probe reports duration, video size, thumbnail, waveform and extracted
// audio for path, in that order, as separate results. At most
// ProbeConcurrency probes hold the codec at once; the waveform and audio
// steps run after the permit is returned.
func (o *Orchestrator) Probe(clip, path string) error {
	if !o.spawn(func() { o.probe(clip, path) }) {
		return ErrShutdown
	}
	return nil
}

func (o *Orchestrator) probe(clip, path string) {
	duration, ok := o.probeWithPermit(clip, path)
	if !ok || o.closing.Load() {
		return
	}

	peaks, err := probe.Waveform(o.ctx, o.backend, path)
	switch {
	case errors.Is(err, codec.ErrNoStream):
		log.Debug("No audio in %s", path)
		return
	case err != nil:
		o.fail("probe", clip, err)
	default:
		o.emit(Result{Kind: ResultWaveform, Clip: clip, Peaks: peaks})
	}

	if duration <= 0 || o.closing.Load() {
		return
	}
	o.extractAudio(clip, path)
}

// probeWithPermit holds a probe permit for the duration of probeGated.
func (o *Orchestrator) probeWithPermit(clip, path string) (float64, bool) {
	release, err := o.gate.Acquire(o.ctx)
	if err != nil {
		return 0, false
	}
	defer func() {
		release()
		metrics.ProbeGateInUse.Set(float64(o.gate.InUse()))
	}()
	metrics.ProbeGateInUse.Set(float64(o.gate.InUse()))
	return o.probeGated(clip, path)
}

// probeGated runs the steps that need the probe permit. It reports false
// when the source is unusable.
func (o *Orchestrator) probeGated(clip, path string) (float64, bool) {
	rec, cached := ProbeRecord{}, false
	if o.cfg.Cache != nil {
		rec, cached = o.cfg.Cache.Lookup(path)
	}

	duration := rec.Duration
	if !cached || duration <= 0 {
		d, err := probe.Duration(o.ctx, o.backend, path)
		if err != nil {
			o.fail("probe", clip, err)
			return 0, false
		}
		duration = d
	}
	o.emit(Result{Kind: ResultDuration, Clip: clip, Duration: duration})

	if o.closing.Load() {
		return duration, false
	}

	thumb, err := probe.VideoThumbnail(o.ctx, o.backend, path, duration)
	switch {
	case errors.Is(err, codec.ErrNoStream):
		log.Debug("No video in %s", path)
	case err != nil:
		o.fail("probe", clip, err)
	default:
		o.emit(Result{Kind: ResultVideoSize, Clip: clip, Width: thumb.Width, Height: thumb.Height})
		o.emit(Result{
			Kind:      ResultThumbnail,
			Clip:      clip,
			Width:     thumb.Image.Bounds().Dx(),
			Height:    thumb.Image.Bounds().Dy(),
			Thumbnail: thumb.Image,
		})
		rec.Width, rec.Height = thumb.Width, thumb.Height
	}

	if o.cfg.Cache != nil {
		rec.Duration = duration
		o.cfg.Cache.Store(path, rec)
	}
	return duration, true
}
