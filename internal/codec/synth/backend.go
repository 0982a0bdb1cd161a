package synth

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"sync/atomic"

	"media-editor/internal/codec"
)

// ErrUnreadable is returned when opening an MP4-family output that was
// written without global headers.
var ErrUnreadable = errors.New("synth: container header is missing codec parameters")

// Backend implements codec.Backend over registered sources.
type Backend struct {
	mu         sync.RWMutex
	sources    map[string]*Source
	recordings map[string]*Recording

	openReaders atomic.Int64
	opens       atomic.Int64
	// ReadDelay, when set, is called before every decoded video frame.
	ReadDelay func()
}

// New returns an empty backend.
func New() *Backend {
	return &Backend{
		sources:    make(map[string]*Source),
		recordings: make(map[string]*Recording),
	}
}

// Add registers a source under path, replacing any previous one.
func (b *Backend) Add(path string, src Source) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sources[path] = src.withDefaults()
}

// Remove unregisters path.
func (b *Backend) Remove(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sources, path)
}

// Recording returns what a muxer wrote to path.
func (b *Backend) Recording(path string) (*Recording, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.recordings[path]
	return r, ok
}

// OpenReaders returns the number of readers not yet closed.
func (b *Backend) OpenReaders() int {
	return int(b.openReaders.Load())
}

// Opens returns the number of readers opened over the backend's lifetime.
func (b *Backend) Opens() int {
	return int(b.opens.Load())
}

func (b *Backend) lookup(path string) (*Source, error) {
	b.mu.RLock()
	src, ok := b.sources[path]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("synth: open %s: %w", path, fs.ErrNotExist)
	}
	if src.unreadable {
		return nil, fmt.Errorf("synth: open %s: %w", path, ErrUnreadable)
	}
	return src, nil
}

// Open implements codec.Backend.
func (b *Backend) Open(ctx context.Context, path string) (*codec.ContainerInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := b.lookup(path)
	if err != nil {
		return nil, err
	}
	return src.info(path), nil
}

// OpenVideo implements codec.Backend.
func (b *Backend) OpenVideo(ctx context.Context, path string, _ codec.VideoOptions) (codec.VideoReader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := b.lookup(path)
	if err != nil {
		return nil, err
	}
	info := src.info(path)
	stream, _ := info.Video()
	b.openReaders.Add(1)
	b.opens.Add(1)
	return &videoReader{backend: b, src: src, stream: stream}, nil
}

// OpenAudio implements codec.Backend.
func (b *Backend) OpenAudio(ctx context.Context, path string, opts codec.AudioOptions) (codec.AudioReader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := b.lookup(path)
	if err != nil {
		return nil, err
	}
	if !src.Audio {
		return nil, fmt.Errorf("synth: %s: %w", path, codec.ErrNoStream)
	}
	opts = opts.WithDefaults()
	b.openReaders.Add(1)
	b.opens.Add(1)
	return newAudioReader(b, src, opts), nil
}

// NewMuxer implements codec.Backend.
func (b *Backend) NewMuxer(ctx context.Context, opts codec.MuxerOptions) (codec.Muxer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.Width <= 0 || opts.Height <= 0 || opts.FPS <= 0 {
		return nil, fmt.Errorf("synth: invalid output %dx%d@%d", opts.Width, opts.Height, opts.FPS)
	}
	if opts.Audio {
		if opts.SampleRate <= 0 {
			opts.SampleRate = codec.SampleRate
		}
		if opts.Channels <= 0 {
			opts.Channels = codec.Channels
		}
	}
	rec := &Recording{Options: opts}
	b.mu.Lock()
	b.recordings[opts.Path] = rec
	b.mu.Unlock()
	return &muxer{backend: b, rec: rec}, nil
}

// Cleanup is a no-op kept for parity with the process backend.
func (b *Backend) Cleanup() {}
