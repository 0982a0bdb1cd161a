/*
Package filesystem wraps stat, open and readdir with retries for NFS stale
file handle errors (ESTALE).

Media directories are often network mounts. A source that is probed,
decoded and re-probed over a long editing session can hit ESTALE when the
server side changes. These helpers retry only that error, with exponential
backoff, and pass every other error through unchanged.

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())

Retry metrics are labelled with the operation and a volume name ("media",
"cache", "database") resolved by longest-prefix match through a
[VolumeResolver] registered at startup with [SetDefaultVolumeResolver].
*/
package filesystem
