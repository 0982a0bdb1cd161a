package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"media-editor/internal/logging"

	"github.com/disintegration/imaging"
)

// Format is a still image file format.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatWebP Format = "webp"
)

// DefaultQuality is used for lossy formats.
const DefaultQuality = 92

// ErrUnsupportedFormat is returned for destinations that cannot be written.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return FormatPNG, nil
	case ".jpg", ".jpeg":
		return FormatJPEG, nil
	case ".webp":
		return FormatWebP, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
}

// Encode writes img to w in format.
func Encode(w io.Writer, img image.Image, format Format, quality int) error {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	switch format {
	case FormatPNG:
		return imaging.Encode(w, img, imaging.PNG)
	case FormatJPEG:
		if IsVipsAvailable() {
			data, err := encodeWithVips(img, format, quality)
			if err == nil {
				_, err = w.Write(data)
				return err
			}
			logging.Debug("vips JPEG export failed, falling back to imaging: %v", err)
		}
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
	case FormatWebP:
		if !IsVipsAvailable() {
			return fmt.Errorf("%w: webp needs libvips", ErrUnsupportedFormat)
		}
		data, err := encodeWithVips(img, format, quality)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// SaveFrame writes img to dest, choosing the format from its extension. The
// file appears complete or not at all.
func SaveFrame(dest string, img image.Image) error {
	format, err := FormatOf(dest)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := Encode(&buf, img, format, DefaultQuality); err != nil {
		return fmt.Errorf("failed to encode %s: %w", dest, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".frame-*"+filepath.Ext(dest))
	if err != nil {
		return fmt.Errorf("failed to create frame file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write frame: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write frame: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to move frame into place: %w", err)
	}

	logging.Debug("Saved %dx%d frame to %s", img.Bounds().Dx(), img.Bounds().Dy(), dest)
	return nil
}

// Fit scales img down to fit within maxW x maxH, keeping its aspect ratio.
// Images that already fit are returned unchanged.
func Fit(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	if (maxW <= 0 || b.Dx() <= maxW) && (maxH <= 0 || b.Dy() <= maxH) {
		return img
	}
	if maxW <= 0 {
		maxW = b.Dx()
	}
	if maxH <= 0 {
		maxH = b.Dy()
	}
	return imaging.Fit(img, maxW, maxH, imaging.Lanczos)
}
