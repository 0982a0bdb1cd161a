// Package orchestrator owns every background goroutine of the media core.
//
// Consumers talk to it through a small command surface and read results
// back with non-blocking polls:
//
//	Probe           gated probe: duration, size, thumbnail, then waveform and audio
//	RequestScrub    latest-wins single slot served by one scrub goroutine
//	StartPlayback   sequential decode on a bounded channel, tagged by session
//	StopPlayback
//	StartEncode     one goroutine per job, cancelled through its flag
//	CancelEncode
//	ExtractAudio
//	SaveFrame
//	Shutdown        sets every flag, wakes the scrub goroutine, waits for all
//
// Scrub frames arrive on their own small channel so that a burst of probe or
// encode results can never delay them. Everything else shares one buffered
// result channel. Workers never block forever on a full channel: once
// Shutdown starts, undeliverable results are dropped.
package orchestrator
