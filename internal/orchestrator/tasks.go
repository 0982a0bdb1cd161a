package orchestrator

import (
	"errors"

	"media-editor/internal/codec"
	"media-editor/internal/decoder"
	"media-editor/internal/probe"
)

// ExtractAudio writes the audio of path to a WAV file in the temp
// directory and reports its location.
func (o *Orchestrator) ExtractAudio(clip, path string) error {
	if !o.spawn(func() { o.extractAudio(clip, path) }) {
		return ErrShutdown
	}
	return nil
}

func (o *Orchestrator) extractAudio(clip, path string) {
	dest := probe.AudioPath(o.cfg.TempDir, clip)
	err := probe.ExtractAudio(o.ctx, o.backend, path, dest)
	switch {
	case errors.Is(err, codec.ErrNoStream):
		log.Debug("No audio to extract from %s", path)
	case err != nil:
		o.fail("audio", clip, err)
	default:
		o.emit(Result{Kind: ResultAudioPath, Clip: clip, Path: dest})
	}
}

// SaveFrame decodes the frame of path at ts at full resolution and writes
// it to dest.
func (o *Orchestrator) SaveFrame(clip, path string, ts float64, dest string) error {
	if !o.spawn(func() { o.saveFrame(clip, path, ts, dest) }) {
		return ErrShutdown
	}
	return nil
}

func (o *Orchestrator) saveFrame(clip, path string, ts float64, dest string) {
	frame, err := decoder.DecodeFrameAt(o.ctx, o.backend, path, ts)
	if err != nil {
		o.fail("frame", clip, err)
		return
	}
	if err := o.cfg.SaveFrame(dest, frame.Image); err != nil {
		o.fail("frame", clip, err)
		return
	}
	o.emit(Result{Kind: ResultFrameSaved, Clip: clip, Path: dest, Time: frame.PTS})
}
