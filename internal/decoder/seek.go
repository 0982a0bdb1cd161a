package decoder

import (
	"media-editor/internal/codec"
	"media-editor/internal/logging"
	"media-editor/internal/metrics"
)

var log = logging.For("decoder")

// SeekTo positions r at or before target seconds. A target at or before the
// start of the stream is not sent to the reader at all, since the reader
// already starts there and some demuxers reject seeking a fresh stream to
// its own start. A rejected seek is logged and reported as false; the
// caller keeps decoding from the current position and its timestamp filter
// discards the unwanted leading frames.
func SeekTo(r codec.VideoReader, target float64, label string) bool {
	if target <= 0 {
		metrics.DecoderSeeksTotal.WithLabelValues("skipped").Inc()
		return true
	}
	if err := r.Seek(target); err != nil {
		metrics.DecoderSeeksTotal.WithLabelValues("failed").Inc()
		log.Warn("seek soft-fail in %s at %.3fs: %v (decoding from current position)", label, target, err)
		return false
	}
	metrics.DecoderSeeksTotal.WithLabelValues("ok").Inc()
	return true
}
