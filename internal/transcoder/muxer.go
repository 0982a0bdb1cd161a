package transcoder

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"sync"

	"media-editor/internal/codec"
	"media-editor/internal/planes"
)

// Queue depths of the input pipes. Audio packets are small and must never
// hold up video while ffmpeg waits on the other input.
const (
	videoQueue = 4
	audioQueue = 256
)

var errMuxerFinished = errors.New("transcoder: muxer finished")

// NewMuxer validates opts. The encoding process starts at WriteHeader.
func (t *Transcoder) NewMuxer(ctx context.Context, opts codec.MuxerOptions) (codec.Muxer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.Path == "" {
		return nil, errors.New("transcoder: muxer needs an output path")
	}
	if opts.Width < 2 || opts.Height < 2 || opts.Width%2 != 0 || opts.Height%2 != 0 {
		return nil, fmt.Errorf("transcoder: invalid output size %dx%d", opts.Width, opts.Height)
	}
	if opts.FPS <= 0 {
		return nil, fmt.Errorf("transcoder: invalid frame rate %d", opts.FPS)
	}
	opts = muxDefaults(opts)
	return &muxer{
		t:        t,
		ctx:      ctx,
		opts:     opts,
		frameLen: planes.PackedLen(opts.Width, opts.Height),
		stderr:   newTail(8),
	}, nil
}

type muxer struct {
	t        *Transcoder
	ctx      context.Context
	opts     codec.MuxerOptions
	frameLen int
	stderr   *tailBuffer

	cmd     *exec.Cmd
	release func()
	video   *pipeWriter
	audio   *pipeWriter

	header    bool
	finished  bool
	nextVideo int64
	nextAudio int64
	last      []byte
}

func (m *muxer) WriteHeader() error {
	if m.header {
		return errors.New("transcoder: header already written")
	}
	if m.finished {
		return errMuxerFinished
	}

	cmd := exec.CommandContext(m.ctx, m.t.ffmpeg, MuxArgs(m.opts)...)
	cmd.Stderr = m.stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	var audioR, audioW *os.File
	if m.opts.Audio {
		if audioR, audioW, err = os.Pipe(); err != nil {
			return fmt.Errorf("failed to create audio pipe: %w", err)
		}
		cmd.ExtraFiles = []*os.File{audioR}
	}

	release, err := m.t.start("mux", m.opts.Path, cmd)
	if audioR != nil {
		_ = audioR.Close()
	}
	if err != nil {
		if audioW != nil {
			_ = audioW.Close()
		}
		return err
	}

	m.cmd, m.release = cmd, release
	m.video = newPipeWriter(stdin, videoQueue)
	if audioW != nil {
		m.audio = newPipeWriter(audioW, audioQueue)
	}
	m.header = true
	return nil
}

func (m *muxer) AudioTimeBase() (codec.Rational, error) {
	if !m.header {
		return codec.Rational{}, codec.ErrHeaderNotWritten
	}
	if !m.opts.Audio {
		return codec.Rational{}, codec.ErrNoStream
	}
	return codec.Rational{Num: 1, Den: m.opts.SampleRate}, nil
}

// WriteVideo queues one frame. Missing PTS values repeat the previous frame
// since the raw input runs at a constant rate.
func (m *muxer) WriteVideo(frame []byte, pts int64) error {
	if err := m.writable(); err != nil {
		return err
	}
	if len(frame) != m.frameLen {
		return fmt.Errorf("transcoder: frame is %d bytes, expected %d", len(frame), m.frameLen)
	}
	if pts < m.nextVideo {
		return fmt.Errorf("transcoder: non-monotonic video pts %d, expected at least %d", pts, m.nextVideo)
	}
	buf := append([]byte(nil), frame...)
	for ; m.nextVideo < pts; m.nextVideo++ {
		fill := m.last
		if fill == nil {
			fill = buf
		}
		if err := m.video.send(fill); err != nil {
			return m.writeError("video", err)
		}
	}
	if err := m.video.send(buf); err != nil {
		return m.writeError("video", err)
	}
	m.last = buf
	m.nextVideo = pts + 1
	return nil
}

// WriteAudio queues interleaved samples. Gaps are filled with silence and
// overlaps are dropped.
func (m *muxer) WriteAudio(samples []float32, pts int64) error {
	if err := m.writable(); err != nil {
		return err
	}
	if !m.opts.Audio {
		return codec.ErrNoStream
	}
	ch := int64(m.opts.Channels)
	if int64(len(samples))%ch != 0 {
		return fmt.Errorf("transcoder: %d samples is not a multiple of %d channels", len(samples), ch)
	}
	if pts < m.nextAudio {
		skip := (m.nextAudio - pts) * ch
		if skip >= int64(len(samples)) {
			return nil
		}
		samples = samples[skip:]
		pts = m.nextAudio
	}
	if gap := pts - m.nextAudio; gap > 0 {
		if err := m.audio.send(make([]byte, gap*ch*4)); err != nil {
			return m.writeError("audio", err)
		}
	}

	buf := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
	}
	if err := m.audio.send(buf); err != nil {
		return m.writeError("audio", err)
	}
	m.nextAudio = pts + int64(len(samples))/ch
	return nil
}

func (m *muxer) writable() error {
	switch {
	case !m.header:
		return codec.ErrHeaderNotWritten
	case m.finished:
		return errMuxerFinished
	}
	return nil
}

func (m *muxer) writeError(stream string, err error) error {
	if m.ctx.Err() != nil {
		return m.ctx.Err()
	}
	return fmt.Errorf("write %s to %s: %w - %s", stream, m.opts.Path, err, m.stderr.String())
}

// Close flushes both inputs and waits for ffmpeg to finalize the file.
func (m *muxer) Close() error {
	if err := m.writable(); err != nil {
		return err
	}
	m.finished = true

	videoErr := m.video.close()
	var audioErr error
	if m.audio != nil {
		audioErr = m.audio.close()
	}
	waitErr := m.cmd.Wait()
	m.release()

	switch {
	case waitErr != nil:
		return exitError(m.ctx, fmt.Sprintf("encode %s", m.opts.Path), waitErr, m.stderr)
	case videoErr != nil:
		return m.writeError("video", videoErr)
	case audioErr != nil:
		return m.writeError("audio", audioErr)
	}
	log.Debug("Finished encoding %s (%d frames)", m.opts.Path, m.nextVideo)
	return nil
}

// Abort kills ffmpeg and removes the partial output.
func (m *muxer) Abort() error {
	if m.finished {
		return errMuxerFinished
	}
	m.finished = true
	if !m.header {
		return nil
	}

	_ = m.cmd.Process.Kill()
	_ = m.video.close()
	if m.audio != nil {
		_ = m.audio.close()
	}
	_ = m.cmd.Wait()
	m.release()

	if err := os.Remove(m.opts.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove partial output: %w", err)
	}
	return nil
}

// pipeWriter drains a queue of buffers into one input pipe of ffmpeg. After
// the first failed write it keeps draining so senders never block.
type pipeWriter struct {
	w     io.WriteCloser
	queue chan []byte
	done  chan struct{}

	mu  sync.Mutex
	err error
}

func newPipeWriter(w io.WriteCloser, depth int) *pipeWriter {
	p := &pipeWriter{
		w:     w,
		queue: make(chan []byte, depth),
		done:  make(chan struct{}),
	}
	go p.loop()
	return p
}

func (p *pipeWriter) loop() {
	defer close(p.done)
	for buf := range p.queue {
		if p.failed() != nil {
			continue
		}
		if _, err := p.w.Write(buf); err != nil {
			p.setErr(err)
		}
	}
	if err := p.w.Close(); err != nil {
		p.setErr(err)
	}
}

func (p *pipeWriter) send(buf []byte) error {
	if err := p.failed(); err != nil {
		return err
	}
	p.queue <- buf
	return nil
}

func (p *pipeWriter) close() error {
	close(p.queue)
	<-p.done
	return p.failed()
}

func (p *pipeWriter) failed() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *pipeWriter) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err == nil {
		p.err = err
	}
}
