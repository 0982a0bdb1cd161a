// Package probe extracts the metadata a timeline needs from a source file:
// duration, video dimensions with a small thumbnail, a waveform of audio
// peaks, and a WAV copy of the audio track for playback.
//
// Each function runs synchronously against a codec.Backend. Concurrency
// limits are the caller's concern; the orchestrator runs duration and
// thumbnail under its probe gate and the audio work after releasing it.
//
// The thumbnail's conversion context is built from the first frame that
// actually decodes, not from container metadata, which for some encodings
// reports no pixel format or the coded rather than display size.
package probe
