/*
Package streaming sends large files, such as finished exports, to HTTP
clients without letting a stalled client hold a handler forever.

Each chunk is written under its own write deadline set through
http.ResponseController and flushed before the next one. A canceled request
context ends the copy with ErrClientGone; a missed deadline or an exceeded
MaxDuration ends it with ErrWriteTimeout.

	func (h *Handlers) DownloadExport(w http.ResponseWriter, r *http.Request) {
		err := streaming.ServeFile(r.Context(), w, rec.Output, "video/mp4", streaming.DefaultConfig())
		if err != nil && !errors.Is(err, streaming.ErrClientGone) {
			log.Warn("download %s: %v", rec.ID, err)
		}
	}

ServeFile writes the status line before copying, so errors after that point
can only be logged.
*/
package streaming
