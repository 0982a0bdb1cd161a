package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, file := range []string{"main", "wal", "shm"} {
		DBSizeBytes.WithLabelValues(file)
	}

	for _, op := range []string{"initialize_schema", "get_probe", "put_probe", "delete_probe",
		"count_probes", "create_export", "update_export", "list_exports", "export_counts"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, status := range []string{"queued", "running", "done", "error", "cancelled"} {
		ExportHistoryTotal.WithLabelValues(status)
	}

	for _, s := range []string{"reused", "new"} {
		DecoderOpensTotal.WithLabelValues(s)
	}
	for _, mode := range []string{"playback", "scrub", "hq", "probe"} {
		DecoderFramesTotal.WithLabelValues(mode, "true")
		DecoderFramesTotal.WithLabelValues(mode, "false")
	}
	for _, r := range []string{"ok", "skipped", "failed"} {
		DecoderSeeksTotal.WithLabelValues(r)
	}
	for _, r := range []string{"new_file", "backward", "jump"} {
		ScrubDecoderResets.WithLabelValues(r)
	}
	for _, w := range []string{"probe", "scrub", "playback", "encode", "audio", "frame"} {
		WorkerErrorsTotal.WithLabelValues(w)
	}

	for _, kind := range []string{"duration", "thumbnail", "waveform", "audio"} {
		ProbesTotal.WithLabelValues(kind, "success")
		ProbesTotal.WithLabelValues(kind, "error")
		ProbeDuration.WithLabelValues(kind)
	}

	for _, status := range []string{"done", "error", "cancelled"} {
		EncodeJobsTotal.WithLabelValues(status)
	}

	for _, op := range []string{"stat", "open", "readdir"} {
		for _, vol := range []string{"media", "cache", "database"} {
			FilesystemRetryDuration.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
		}
	}

	FrameCacheLookupsTotal.WithLabelValues("hit")
	FrameCacheLookupsTotal.WithLabelValues("miss")
}
