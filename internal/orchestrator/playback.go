package orchestrator

import (
	"errors"
	"io"

	"media-editor/internal/decoder"
	"media-editor/internal/metrics"
	"media-editor/internal/planes"
)

type playCommand struct {
	start   bool
	clip    string
	path    string
	ts      float64
	session uint64
}

// StartPlayback begins decoding path from ts and returns the session every
// frame of this playback carries. Frames of earlier sessions still buffered
// are discarded.
func (o *Orchestrator) StartPlayback(clip, path string, ts float64) (uint64, error) {
	session := o.session.Add(1)
	if err := o.command(playCommand{start: true, clip: clip, path: path, ts: ts, session: session}); err != nil {
		return 0, err
	}
	o.drainPlayback(session)
	return session, nil
}

// StopPlayback ends the current session and discards its buffered frames.
func (o *Orchestrator) StopPlayback() error {
	if err := o.command(playCommand{}); err != nil {
		return err
	}
	o.drainPlayback(0)
	return nil
}

// Session returns the newest playback session number.
func (o *Orchestrator) Session() uint64 {
	return o.session.Load()
}

func (o *Orchestrator) command(cmd playCommand) error {
	if o.closing.Load() {
		return ErrShutdown
	}
	select {
	case o.playCmds <- cmd:
		return nil
	case <-o.ctx.Done():
		return ErrShutdown
	}
}

// drainPlayback empties the frame channel. A frame already belonging to
// keep is held back for the next poll.
func (o *Orchestrator) drainPlayback(keep uint64) {
	o.stashMu.Lock()
	defer o.stashMu.Unlock()
	if o.stash != nil && (keep == 0 || o.stash.Session != keep) {
		o.stash = nil
		metrics.PlaybackFramesDrained.Inc()
	}
	for {
		select {
		case f := <-o.playOut:
			if keep != 0 && f.Session == keep {
				if o.stash == nil {
					o.stash = &f
				}
				return
			}
			metrics.PlaybackFramesDrained.Inc()
		default:
			return
		}
	}
}

// player is the state of the playback goroutine.
type player struct {
	o      *Orchestrator
	dec    *decoder.Decoder
	scaler *planes.Scaler
	cur    playCommand
}

func (o *Orchestrator) playbackLoop() {
	defer o.wg.Done()
	p := &player{o: o}
	defer p.stop()

	for {
		if p.dec == nil {
			select {
			case cmd := <-o.playCmds:
				p.handle(cmd)
			case <-o.ctx.Done():
				return
			}
			continue
		}

		select {
		case cmd := <-o.playCmds:
			p.handle(cmd)
			continue
		case <-o.ctx.Done():
			return
		default:
		}

		frame, err := p.dec.NextFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				o.fail("playback", p.cur.clip, err)
			} else {
				log.Debug("Playback of %s reached end of stream", p.cur.path)
			}
			p.stop()
			p.end(p.cur)
			continue
		}

		out := PlaybackFrame{Clip: p.cur.clip, Session: p.cur.session, Frame: frame}
		select {
		case o.playOut <- out:
		case cmd := <-o.playCmds:
			p.handle(cmd)
		case <-o.ctx.Done():
			return
		}
	}
}

func (p *player) handle(cmd playCommand) {
	p.stop()
	if !cmd.start {
		return
	}
	o := p.o
	dec, err := decoder.Open(o.ctx, o.backend, cmd.path, decoder.Options{MaxWidth: o.cfg.PreviewWidth, Mode: "playback"}, p.scaler)
	if err != nil {
		o.fail("playback", cmd.clip, err)
		p.end(cmd)
		return
	}
	if _, err := dec.Seek(cmd.ts); err != nil {
		dec.Close()
		o.fail("playback", cmd.clip, err)
		p.end(cmd)
		return
	}
	if err := dec.BurnTo(cmd.ts); err != nil {
		dec.Close()
		if !errors.Is(err, io.EOF) {
			o.fail("playback", cmd.clip, err)
		}
		p.end(cmd)
		return
	}
	metrics.PlaybackSessionsTotal.Inc()
	p.dec, p.cur = dec, cmd
}

// end tells the consumer that session cmd will send no more frames.
func (p *player) end(cmd playCommand) {
	select {
	case p.o.playOut <- PlaybackFrame{Clip: cmd.clip, Session: cmd.session, End: true}:
	case <-p.o.ctx.Done():
	}
}

func (p *player) stop() {
	if p.dec == nil {
		return
	}
	p.scaler = p.dec.Scaler()
	p.dec.Close()
	p.dec = nil
}
