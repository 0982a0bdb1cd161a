package transcoder

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"

	"media-editor/internal/codec"
)

// OpenAudio opens the first audio stream of path resampled to opts.
func (t *Transcoder) OpenAudio(ctx context.Context, path string, opts codec.AudioOptions) (codec.AudioReader, error) {
	info, err := t.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	if _, ok := info.Audio(); !ok {
		return nil, fmt.Errorf("%s: %w", path, codec.ErrNoStream)
	}
	opts = opts.WithDefaults()

	cmd := exec.CommandContext(ctx, t.ffmpeg, AudioArgs(path, opts)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr := newTail(8)
	cmd.Stderr = stderr

	release, err := t.start("audio", path, cmd)
	if err != nil {
		return nil, err
	}
	return &audioReader{
		ctx:     ctx,
		path:    path,
		opts:    opts,
		cmd:     cmd,
		stdout:  stdout,
		stderr:  stderr,
		release: release,
	}, nil
}

type audioReader struct {
	ctx     context.Context
	path    string
	opts    codec.AudioOptions
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	stderr  *tailBuffer
	release func()

	buf  []byte
	done bool
	err  error
}

func (r *audioReader) SampleRate() int { return r.opts.SampleRate }
func (r *audioReader) Channels() int   { return r.opts.Channels }

func (r *audioReader) ReadSamples(dst []float32) (int, error) {
	if r.done {
		return 0, r.err
	}
	if len(dst) == 0 {
		return 0, nil
	}
	if cap(r.buf) < len(dst)*4 {
		r.buf = make([]byte, len(dst)*4)
	}
	buf := r.buf[:len(dst)*4]

	n, err := io.ReadFull(r.stdout, buf)
	whole := n / 4
	for i := 0; i < whole; i++ {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	if err == nil {
		return whole, nil
	}
	if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		r.stop(fmt.Errorf("read audio %s: %w", r.path, err))
		return whole, nil
	}

	r.wait()
	if whole > 0 {
		return whole, nil
	}
	return 0, r.err
}

// wait reaps ffmpeg after stdout ended and records the terminal error.
func (r *audioReader) wait() {
	if r.done {
		return
	}
	r.done = true
	err := r.cmd.Wait()
	r.release()
	switch {
	case r.ctx.Err() != nil:
		r.err = r.ctx.Err()
	case err != nil:
		r.err = exitError(r.ctx, fmt.Sprintf("decode audio %s", r.path), err, r.stderr)
	default:
		r.err = io.EOF
	}
}

func (r *audioReader) stop(err error) {
	if r.done {
		return
	}
	r.done = true
	_ = r.cmd.Process.Kill()
	_ = r.cmd.Wait()
	r.release()
	r.err = err
}

func (r *audioReader) Close() error {
	r.stop(errors.New("transcoder: audio reader closed"))
	return nil
}
