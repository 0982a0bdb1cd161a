// Package logging provides a simple leveled logging interface for the
// media editor.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information (per-frame decode and seek traces)
//   - INFO: General operational messages
//   - WARN: Warning conditions, including soft seek failures
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable, or
// forced to debug by DEBUG=true. Worker components log through For, which
// tags each line with the component name:
//
//	var log = logging.For("encoder")
//	log.Info("job %s: %d frames", id, total)
package logging
