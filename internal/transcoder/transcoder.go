package transcoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"media-editor/internal/codec"
	"media-editor/internal/logging"
	"media-editor/internal/metrics"
)

var log = logging.For("transcoder")

// ErrFFmpegNotFound is returned when the ffmpeg or ffprobe binary cannot be
// started.
var ErrFFmpegNotFound = errors.New("transcoder: ffmpeg not found")

// Options locates the binaries.
type Options struct {
	FFmpeg  string
	FFprobe string
	// Threads is passed to decoders that do not ask for a count themselves.
	Threads int
}

// Transcoder implements codec.Backend on top of ffmpeg.
type Transcoder struct {
	ffmpeg  string
	ffprobe string
	threads int

	processes map[uint64]*tracked
	processMu sync.Mutex
	seq       uint64
}

type tracked struct {
	kind string
	path string
	cmd  *exec.Cmd
}

var _ codec.Backend = (*Transcoder)(nil)

// New creates a Transcoder. Empty binary names default to "ffmpeg" and
// "ffprobe" looked up on PATH.
func New(opts Options) *Transcoder {
	if opts.FFmpeg == "" {
		opts.FFmpeg = "ffmpeg"
	}
	if opts.FFprobe == "" {
		opts.FFprobe = "ffprobe"
	}
	return &Transcoder{
		ffmpeg:    opts.FFmpeg,
		ffprobe:   opts.FFprobe,
		threads:   opts.Threads,
		processes: make(map[uint64]*tracked),
	}
}

// Available reports whether both binaries can be found.
func (t *Transcoder) Available() error {
	for _, bin := range []string{t.ffmpeg, t.ffprobe} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%w: %s", ErrFFmpegNotFound, bin)
		}
	}
	return nil
}

// start launches cmd and tracks it until the returned release func runs.
func (t *Transcoder) start(kind, path string, cmd *exec.Cmd) (func(), error) {
	metrics.FFmpegProcessesTotal.WithLabelValues(kind).Inc()
	if err := cmd.Start(); err != nil {
		return nil, startError(cmd.Path, err)
	}

	t.processMu.Lock()
	t.seq++
	id := t.seq
	t.processes[id] = &tracked{kind: kind, path: path, cmd: cmd}
	t.processMu.Unlock()
	metrics.FFmpegProcessesActive.Inc()
	log.Debug("Started %s process for %s (pid %d)", kind, path, cmd.Process.Pid)

	var once sync.Once
	return func() {
		once.Do(func() {
			t.processMu.Lock()
			delete(t.processes, id)
			t.processMu.Unlock()
			metrics.FFmpegProcessesActive.Dec()
		})
	}, nil
}

// Active returns how many child processes are running.
func (t *Transcoder) Active() int {
	t.processMu.Lock()
	defer t.processMu.Unlock()
	return len(t.processes)
}

// Cleanup kills every running child process.
func (t *Transcoder) Cleanup() {
	t.processMu.Lock()
	defer t.processMu.Unlock()

	for _, p := range t.processes {
		if p.cmd.Process != nil {
			log.Info("Killing %s process for: %s", p.kind, p.path)
			if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				log.Warn("failed to kill %s process for %s: %v", p.kind, p.path, err)
			}
		}
	}
}

func startError(bin string, err error) error {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrFFmpegNotFound, bin)
	}
	return fmt.Errorf("failed to start %s: %w", bin, err)
}

// tailBuffer keeps the last lines written to it for error messages.
type tailBuffer struct {
	mu    sync.Mutex
	lines []string
	max   int
}

func newTail(n int) *tailBuffer {
	return &tailBuffer{max: n}
}

func (b *tailBuffer) add(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, line)
	if len(b.lines) > b.max {
		b.lines = b.lines[len(b.lines)-b.max:]
	}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	for _, line := range bytes.Split(p, []byte{'\n'}) {
		b.add(string(line))
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.lines, "; ")
}

// exitError describes a failed child process.
func exitError(ctx context.Context, what string, err error, stderr *tailBuffer) error {
	if ctx != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if msg := stderr.String(); msg != "" {
		return fmt.Errorf("%s: %w - %s", what, err, msg)
	}
	return fmt.Errorf("%s: %w", what, err)
}
