package mediatypes

import (
	"path/filepath"
	"strings"
)

// Kind is what the editor can do with a file.
type Kind string

const (
	// KindVideo is a file with a video stream, placed on video tracks.
	KindVideo Kind = "video"
	// KindAudio is an audio-only file, placed on audio tracks.
	KindAudio Kind = "audio"
	// KindImage is a still image format frames can be saved as.
	KindImage Kind = "image"
	// KindOther is anything else.
	KindOther Kind = "other"
)

// VideoExtensions maps file extensions to whether they are importable video.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
	".m4v":  true,
	".mpeg": true,
	".mpg":  true,
	".3gp":  true,
	".ts":   true,
}

// AudioExtensions maps file extensions to whether they are importable audio.
var AudioExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".aac":  true,
	".m4a":  true,
	".flac": true,
	".ogg":  true,
	".opus": true,
}

// ImageExtensions maps file extensions to the still formats SaveFrame writes.
var ImageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".webm": "video/webm",
	".m4v":  "video/x-m4v",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".3gp":  "video/3gpp",
	".ts":   "video/mp2t",

	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".aac":  "audio/aac",
	".m4a":  "audio/mp4",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",

	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
}

// Ext returns the lowercase extension of path including the dot.
func Ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// KindOf classifies a path by extension.
func KindOf(path string) Kind {
	ext := Ext(path)
	switch {
	case VideoExtensions[ext]:
		return KindVideo
	case AudioExtensions[ext]:
		return KindAudio
	case ImageExtensions[ext]:
		return KindImage
	}
	return KindOther
}

// GetMimeType returns the MIME type for path, or
// "application/octet-stream" if the extension is not recognized.
func GetMimeType(path string) string {
	if mime, ok := MimeTypes[Ext(path)]; ok {
		return mime
	}
	return "application/octet-stream"
}

// IsImportable reports whether path can be placed on the timeline.
func IsImportable(path string) bool {
	k := KindOf(path)
	return k == KindVideo || k == KindAudio
}
