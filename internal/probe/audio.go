package probe

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"media-editor/internal/codec"
)

const (
	audioFilePrefix = "media_editor_audio_"
	audioFileSuffix = ".wav"
	wavHeaderSize   = 44
	wavFormatFloat  = 3
)

// AudioPath is where the extracted audio of a clip lives.
func AudioPath(dir, clipID string) string {
	return filepath.Join(dir, audioFilePrefix+clipID+audioFileSuffix)
}

// IsAudioFile reports whether path names an extracted audio file directly
// inside dir.
func IsAudioFile(dir, path string) bool {
	if filepath.Clean(filepath.Dir(path)) != filepath.Clean(dir) {
		return false
	}
	name := filepath.Base(path)
	return strings.HasPrefix(name, audioFilePrefix) && strings.HasSuffix(name, audioFileSuffix)
}

// ExtractAudio decodes the audio track of path to a 32-bit float WAV at the
// export sample rate and channel layout. A partial file is removed on
// failure.
func ExtractAudio(ctx context.Context, backend codec.Backend, path, dest string) (err error) {
	start := time.Now()
	defer func() { observe("audio", start, err) }()

	r, err := backend.OpenAudio(ctx, path, codec.AudioOptions{SampleRate: codec.SampleRate, Channels: codec.Channels})
	if err != nil {
		return fmt.Errorf("extract audio: %w", err)
	}
	defer r.Close()

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("extract audio: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(dest)
		}
	}()

	w := bufio.NewWriterSize(f, 64*1024)
	if _, err := w.Write(make([]byte, wavHeaderSize)); err != nil {
		return err
	}

	var dataBytes uint32
	buf := make([]float32, codec.AudioFrameSize*r.Channels())
	raw := make([]byte, 4*len(buf))
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, rerr := r.ReadSamples(buf)
		for i, s := range buf[:n] {
			binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(s))
		}
		if _, err := w.Write(raw[:4*n]); err != nil {
			return err
		}
		dataBytes += uint32(4 * n)
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return fmt.Errorf("extract audio of %s: %w", path, rerr)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := f.Write(WAVHeader(r.SampleRate(), r.Channels(), dataBytes)); err != nil {
		return err
	}
	log.Info("extracted audio %s (%d bytes) <- %s", dest, dataBytes+wavHeaderSize, path)
	return nil
}

// WAVHeader returns the 44-byte RIFF header of an IEEE float WAV holding
// dataBytes of 32-bit samples.
func WAVHeader(sampleRate, channels int, dataBytes uint32) []byte {
	h := make([]byte, wavHeaderSize)
	le := binary.LittleEndian
	copy(h[0:], "RIFF")
	le.PutUint32(h[4:], 36+dataBytes)
	copy(h[8:], "WAVE")
	copy(h[12:], "fmt ")
	le.PutUint32(h[16:], 16)
	le.PutUint16(h[20:], wavFormatFloat)
	le.PutUint16(h[22:], uint16(channels))
	le.PutUint32(h[24:], uint32(sampleRate))
	le.PutUint32(h[28:], uint32(sampleRate*channels*4))
	le.PutUint16(h[32:], uint16(channels*4))
	le.PutUint16(h[34:], 32)
	copy(h[36:], "data")
	le.PutUint32(h[40:], dataBytes)
	return h
}

// RemoveAudioFile deletes path if it is an extracted audio file in dir and
// reports whether it did.
func RemoveAudioFile(dir, path string) bool {
	if !IsAudioFile(dir, path) {
		return false
	}
	if err := os.Remove(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn("failed to remove %s: %v", path, err)
		}
		return false
	}
	log.Debug("cleaned up %s", path)
	return true
}

// CleanupAudioFiles removes every extracted audio file left in dir and
// returns how many were deleted.
func CleanupAudioFiles(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if RemoveAudioFile(dir, filepath.Join(dir, e.Name())) {
			removed++
		}
	}
	return removed, nil
}
