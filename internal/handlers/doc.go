// Package handlers provides the HTTP control surface of the editor's media
// core.
//
// It includes handlers for:
//   - Health, liveness and readiness checks
//   - Version and Prometheus metrics
//   - Export jobs: submit, list, inspect and cancel
//   - Probe lookups and thumbnails backed by the probe cache
//   - Manual media re-index
//   - A websocket stream of orchestrator results
//
// The Hub owns the orchestrator's result stream while the server runs. It
// keeps export history in the database current and forwards every result
// to websocket subscribers.
package handlers
