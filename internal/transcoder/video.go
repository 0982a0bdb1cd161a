package transcoder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"

	"media-editor/internal/codec"
	"media-editor/internal/planes"
)

// OpenVideo opens the first video stream of path.
func (t *Transcoder) OpenVideo(ctx context.Context, path string, opts codec.VideoOptions) (codec.VideoReader, error) {
	info, err := t.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	stream, ok := info.Video()
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, codec.ErrNoStream)
	}
	if stream.Width < 2 || stream.Height < 2 {
		return nil, fmt.Errorf("%s: invalid video size %dx%d", path, stream.Width, stream.Height)
	}

	threads := opts.Threads
	if threads <= 0 {
		threads = t.threads
	}
	r := &videoReader{
		t:       t,
		ctx:     ctx,
		path:    path,
		srcW:    stream.Width,
		srcH:    stream.Height,
		offset:  info.StartTime,
		threads: threads,
	}
	stream.Width &^= 1
	stream.Height &^= 1
	r.stream = stream
	r.size = planes.PackedLen(stream.Width, stream.Height)
	return r, nil
}

// videoReader decodes by running one ffmpeg per seek. The process starts
// lazily on the first read after a seek.
type videoReader struct {
	t       *Transcoder
	ctx     context.Context
	path    string
	stream  codec.StreamInfo
	srcW    int
	srcH    int
	offset  float64
	threads int
	size    int

	start  float64
	proc   *videoProcess
	buf    []byte
	count  int
	closed bool
}

type videoProcess struct {
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	pts     chan float64
	stderr  *tailBuffer
	release func()
}

func (r *videoReader) Stream() codec.StreamInfo {
	return r.stream
}

func (r *videoReader) Seek(ts float64) error {
	if r.closed {
		return errors.New("transcoder: video reader closed")
	}
	r.stop()
	r.start = max(ts, 0)
	return nil
}

func (r *videoReader) ReadFrame(dst *codec.RawFrame) error {
	if r.closed {
		return errors.New("transcoder: video reader closed")
	}
	if r.proc == nil {
		if err := r.launch(); err != nil {
			return err
		}
	}

	if cap(r.buf) < r.size {
		r.buf = make([]byte, r.size)
	}
	r.buf = r.buf[:r.size]
	if _, err := io.ReadFull(r.proc.stdout, r.buf); err != nil {
		return r.finish(err)
	}

	pts, ok := <-r.proc.pts
	if !ok {
		// stderr ended early; assume constant frame rate from the seek point.
		pts = r.start + float64(r.count)/max(r.stream.FrameRate.Float(), 1)
	} else {
		pts -= r.offset
	}
	r.count++

	dst.Reset(r.stream.Width, r.stream.Height, r.size)
	copy(dst.Data, r.buf)
	dst.PTS = pts
	return nil
}

func (r *videoReader) launch() error {
	args := VideoArgs(r.path, r.start+r.offset, r.threads, r.srcW, r.srcH)
	cmd := exec.CommandContext(r.ctx, r.t.ffmpeg, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	release, err := r.t.start("video", r.path, cmd)
	if err != nil {
		return err
	}
	p := &videoProcess{
		cmd:     cmd,
		stdout:  stdout,
		pts:     make(chan float64, 64),
		stderr:  newTail(8),
		release: release,
	}
	go scanShowinfo(stderr, p.pts, p.stderr)

	r.proc = p
	r.count = 0
	return nil
}

// scanShowinfo forwards frame times to pts and keeps other lines for error
// reporting. The channel closes when ffmpeg closes stderr.
func scanShowinfo(stderr io.Reader, pts chan<- float64, tail *tailBuffer) {
	defer close(pts)
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if ts, ok := ParseShowinfo(line); ok {
			pts <- ts
			continue
		}
		tail.add(line)
	}
}

// finish reaps the process after a short read.
func (r *videoReader) finish(readErr error) error {
	p := r.proc
	r.proc = nil
	if errors.Is(readErr, io.ErrUnexpectedEOF) {
		_ = p.cmd.Process.Kill()
	}
	for range p.pts {
	}
	waitErr := p.cmd.Wait()
	p.release()

	switch {
	case r.ctx.Err() != nil:
		return r.ctx.Err()
	case waitErr != nil && !errors.Is(readErr, io.ErrUnexpectedEOF):
		return exitError(r.ctx, fmt.Sprintf("decode %s", r.path), waitErr, p.stderr)
	case errors.Is(readErr, io.EOF):
		return io.EOF
	case errors.Is(readErr, io.ErrUnexpectedEOF):
		return fmt.Errorf("decode %s: truncated frame", r.path)
	default:
		return fmt.Errorf("decode %s: %w", r.path, readErr)
	}
}

// stop kills the running process, if any.
func (r *videoReader) stop() {
	p := r.proc
	if p == nil {
		return
	}
	r.proc = nil
	_ = p.cmd.Process.Kill()
	_ = p.stdout.Close()
	for range p.pts {
	}
	_ = p.cmd.Wait()
	p.release()
}

func (r *videoReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.stop()
	return nil
}
