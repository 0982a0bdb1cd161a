// Package mediatypes classifies files by extension.
//
// It has no dependencies beyond the standard library so the indexer, the
// CLI and the HTTP handlers can share it without import cycles.
//
//	switch mediatypes.KindOf(path) {
//	case mediatypes.KindVideo:
//	    // probe dimensions and thumbnail
//	case mediatypes.KindAudio:
//	    // probe duration and waveform only
//	}
//
// ImageExtensions lists the formats media.SaveFrame can write.
package mediatypes
