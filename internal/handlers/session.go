package handlers

import (
	"context"
	"errors"
	"time"

	"media-editor/internal/orchestrator"
	"media-editor/internal/preview"
)

// DefaultTickRate is how often a Session ticks its preview.
const DefaultTickRate = 60

// ErrSessionStopped is returned for commands sent after Run returned.
var ErrSessionStopped = errors.New("preview session stopped")

// Session owns a preview.Preview on a single goroutine, the way an editor
// UI thread would, and publishes every shared result to the hub.
type Session struct {
	p     *preview.Preview
	hub   *Hub
	cmds  chan func()
	done  chan struct{}
	every time.Duration

	// Playhead of the playing clip, only touched on the Run goroutine.
	playFrom  float64
	playStart time.Time
}

// NewSession wraps p. Results p applies are handed to hub.Publish.
func NewSession(p *preview.Preview, hub *Hub) *Session {
	return &Session{
		p:     p,
		hub:   hub,
		cmds:  make(chan func()),
		done:  make(chan struct{}),
		every: time.Second / DefaultTickRate,
	}
}

// Run ticks the preview until ctx is done.
func (s *Session) Run(ctx context.Context) {
	defer close(s.done)
	s.p.OnResult(func(r orchestrator.Result) { s.hub.Publish(ctx, r) })

	ticker := time.NewTicker(s.every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if s.p.Playing() {
				_ = s.p.Stop()
			}
			return
		case fn := <-s.cmds:
			fn()
		case <-ticker.C:
			s.p.Tick(s.playhead())
		}
	}
}

func (s *Session) playhead() (float64, bool) {
	if !s.p.Playing() {
		return 0, false
	}
	return s.playFrom + time.Since(s.playStart).Seconds(), true
}

// do runs fn on the session goroutine and waits for it.
func (s *Session) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	select {
	case s.cmds <- func() { fn(); close(finished) }:
	case <-s.done:
		return ErrSessionStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// Scrub shows clip at ts, reporting whether the frame came from the cache.
func (s *Session) Scrub(ctx context.Context, clip, path string, ts float64) (cached bool, err error) {
	err = s.do(ctx, func() { cached = s.p.Scrub(clip, path, ts) })
	return cached, err
}

// Play starts playback of clip from ts, stopping any earlier session.
func (s *Session) Play(ctx context.Context, clip, path string, ts float64) error {
	var perr error
	if err := s.do(ctx, func() {
		if perr = s.p.Play(clip, path, ts); perr == nil {
			s.playFrom, s.playStart = ts, time.Now()
		}
	}); err != nil {
		return err
	}
	return perr
}

// Stop ends playback.
func (s *Session) Stop(ctx context.Context) error {
	var perr error
	if err := s.do(ctx, func() { perr = s.p.Stop() }); err != nil {
		return err
	}
	return perr
}

// Current returns the frame on screen for clip.
func (s *Session) Current(ctx context.Context, clip string) (img *frameImage, ok bool, err error) {
	err = s.do(ctx, func() {
		f, found := s.p.Frame(clip)
		if !found || f.Image == nil {
			return
		}
		img = &frameImage{Image: f.Image, PTS: f.PTS, Playing: s.p.Playing()}
		ok = true
	})
	return img, ok, err
}

// Clip returns what probing has reported for clip.
func (s *Session) Clip(clip string) (preview.ClipState, bool) {
	return s.p.Clip(clip)
}

// CacheStats returns frame cache statistics.
func (s *Session) CacheStats(ctx context.Context) (st cacheStats, err error) {
	err = s.do(ctx, func() {
		c := s.p.Cache()
		st = cacheStats{Entries: c.Len(), Bytes: c.Bytes(), Budget: c.Budget()}
	})
	return st, err
}
