// Package database provides the SQLite store of the media editor.
//
// It holds:
//   - the probe cache: duration and frame size of every source seen, keyed
//     by path and invalidated by size or modification time
//   - export history: one row per encode job with its final status
//   - small key/value metadata such as the last index run
//
// The database uses WAL mode for concurrent readers and creates its schema
// on open.
package database
