// Package playlist turns playlist files into export timelines.
//
// Supported formats:
//   - WPL (Windows Playlist): XML-based playlist format used by Windows Media Player
//   - M3U and M3U8: one path per line, comments and #EXTINF ignored
//
// Entries are resolved relative to the playlist file first and then by file
// name inside the media directory, so playlists written on another machine
// (drive letters, UNC paths, backslashes) still find their clips when the
// files exist locally.
//
// Sequence probes every entry and returns an encoder.Job that plays them
// back to back, optionally joined by one transition kind.
package playlist
