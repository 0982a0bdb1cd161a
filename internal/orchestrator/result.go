package orchestrator

import (
	"image"

	"media-editor/internal/decoder"
)

// CancelledMessage is the Message of an encode error caused by
// cancellation rather than failure.
const CancelledMessage = "cancelled"

// ResultKind identifies the payload of a Result.
type ResultKind int

const (
	ResultAudioPath ResultKind = iota
	ResultDuration
	ResultThumbnail
	ResultWaveform
	ResultVideoSize
	ResultFrameSaved
	ResultFrame
	ResultError
	ResultEncodeProgress
	ResultEncodeDone
	ResultEncodeError
)

var kindNames = [...]string{
	ResultAudioPath:      "audio_path",
	ResultDuration:       "duration",
	ResultThumbnail:      "thumbnail",
	ResultWaveform:       "waveform",
	ResultVideoSize:      "video_size",
	ResultFrameSaved:     "frame_saved",
	ResultFrame:          "frame",
	ResultError:          "error",
	ResultEncodeProgress: "encode_progress",
	ResultEncodeDone:     "encode_done",
	ResultEncodeError:    "encode_error",
}

func (k ResultKind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// MarshalText lets results travel as JSON with readable kinds.
func (k ResultKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Result is one message on the result stream. Which fields are set depends
// on Kind.
type Result struct {
	Kind ResultKind `json:"kind"`
	Clip string     `json:"clip,omitempty"`
	Job  string     `json:"job,omitempty"`

	Path     string    `json:"path,omitempty"`
	Duration float64   `json:"duration,omitempty"`
	Width    int       `json:"width,omitempty"`
	Height   int       `json:"height,omitempty"`
	Peaks    []float32 `json:"peaks,omitempty"`

	// Time is the requested position of a scrub frame.
	Time float64 `json:"time,omitempty"`

	FrameIndex int `json:"frame,omitempty"`
	Total      int `json:"total,omitempty"`

	Message string `json:"message,omitempty"`

	Thumbnail *image.NRGBA   `json:"-"`
	Frame     *decoder.Frame `json:"-"`
}

// Cancelled reports whether r is the error result of a cancelled encode.
func (r Result) Cancelled() bool {
	return r.Kind == ResultEncodeError && r.Message == CancelledMessage
}

// IsError reports whether r carries a failure.
func (r Result) IsError() bool {
	return r.Kind == ResultError || r.Kind == ResultEncodeError
}

// PlaybackFrame is one decoded frame of a playback session. The last
// message of a session that ran out of frames or failed has End set and no
// Frame.
type PlaybackFrame struct {
	Clip    string
	Session uint64
	Frame   *decoder.Frame
	End     bool
}
