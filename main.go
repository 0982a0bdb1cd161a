package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"media-editor/internal/codec"
	"media-editor/internal/codec/synth"
	"media-editor/internal/database"
	"media-editor/internal/encoder"
	"media-editor/internal/filesystem"
	"media-editor/internal/framecache"
	"media-editor/internal/handlers"
	"media-editor/internal/indexer"
	"media-editor/internal/logging"
	"media-editor/internal/media"
	"media-editor/internal/memory"
	"media-editor/internal/metrics"
	"media-editor/internal/middleware"
	"media-editor/internal/orchestrator"
	"media-editor/internal/preview"
	"media-editor/internal/probe"
	"media-editor/internal/startup"
	"media-editor/internal/transcoder"
	"media-editor/internal/workers"
)

const usage = `usage: media-editor <command> [arguments]

commands:
  probe <file>                   print duration, size and streams
  frame <file> <seconds> <out>   save one full-resolution frame (png, jpg, webp)
  waveform <file>                print audio peaks as JSON
  export [-o out] <job|playlist> encode a job file, or a .wpl/.m3u playlist
                                 back to back (-transition crossfade)
  project <file> <media>...      append media to a project, creating it if needed
  render [-o out] <project>      export track V1 of a project (-fps, -height)
  index <dir>                    probe every media file under dir into the cache
  serve                          run the HTTP control surface
  version                        print build information
`

var errUsage = errors.New("invalid arguments")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		logging.Error("%v", err)
		os.Exit(1)
	}
}

// run dispatches one command.
func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "serve":
		return serve()
	case "version":
		return printVersion(out)
	case "probe":
		return runProbe(ctx, rest, out)
	case "frame":
		return runFrame(ctx, rest, out)
	case "waveform":
		return runWaveform(ctx, rest, out)
	case "export":
		return runExport(ctx, rest, out)
	case "project":
		return runProject(ctx, rest, out)
	case "render":
		return runRender(ctx, rest, out)
	case "index":
		return runIndex(ctx, rest, out)
	case "help", "-h", "--help":
		_, err := fmt.Fprint(out, usage)
		return err
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}

// newBackend builds the configured codec backend. The transcoder is nil for
// the synthetic backend.
func newBackend(config *startup.Config) (codec.Backend, *transcoder.Transcoder) {
	if config.Backend == startup.BackendSynth {
		return synth.New(), nil
	}
	t := transcoder.New(transcoder.Options{
		FFmpeg:  config.FFmpegPath,
		FFprobe: config.FFprobePath,
	})
	return t, t
}

// services are the long-running components stopped on shutdown.
type services struct {
	srv          *http.Server
	indexer      *indexer.Indexer
	orchestrator *orchestrator.Orchestrator
	transcoder   *transcoder.Transcoder
	stopSession  context.CancelFunc
	hub          *handlers.Hub
}

func serve() error {
	startTime := time.Now()

	memResult := memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	if err := media.InitVips(); err != nil {
		logging.Warn("libvips unavailable, frames are exported with imaging: %v", err)
	}
	defer media.ShutdownVips()

	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"media":    config.MediaDir,
		"cache":    config.CacheDir,
		"database": config.DatabaseDir,
	}))

	// Initialize database
	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	if err := startup.LogBackendInit(config); err != nil {
		startup.LogFatal("Codec backend unavailable: %v", err)
	}
	backend, trans := newBackend(config)

	if n, err := probe.CleanupAudioFiles(config.AudioDir); err != nil {
		logging.Warn("Failed to clean audio cache: %v", err)
	} else if n > 0 {
		logging.Info("Removed %d leftover audio files", n)
	}

	budget := memory.FrameCacheBudget(config.FrameCacheBytes)
	startup.LogMemoryConfig(memResult, budget)
	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()
	defer monitor.Stop()

	// The indexer and the orchestrator share one probe limit.
	probeGate := workers.NewGate(config.ProbeConcurrency)
	orch := orchestrator.New(orchestrator.Config{
		Backend:          backend,
		ProbeConcurrency: config.ProbeConcurrency,
		ProbeGate:        probeGate,
		PreviewWidth:     config.PreviewWidth,
		TempDir:          config.AudioDir,
		Encoder:          encoder.New(backend, nil).WithQuality(config.EncodeCRF, config.EncodePreset),
		Cache:            database.NewProbeCache(db),
	})

	observer := metrics.NewFrameCacheObserver()
	pv := preview.New(orch, framecache.New(budget, framecache.WithObserver(observer)), observer)
	pv.WatchMemory(monitor)
	hub := handlers.NewHub(db)
	session := handlers.NewSession(pv, hub)
	sessionCtx, stopSession := context.WithCancel(context.Background())
	go session.Run(sessionCtx)

	var idx *indexer.Indexer
	if config.IndexerEnabled {
		startup.LogIndexerInit(config.MediaDir, config.IndexInterval)
		idx = indexer.New(db, backend, probeGate, config.MediaDir, config.IndexInterval)
		idx.Start()
		startup.LogIndexerStarted()
	} else {
		logging.Info("Indexer disabled: MEDIA_DIR is not set or not readable")
	}

	metrics.InitializeMetrics()
	build := startup.GetBuildInfo()
	metrics.AppInfo.WithLabelValues(build.Version, build.Commit, build.GoVersion, config.Backend).Set(1)
	collector := metrics.NewCollector(db, time.Minute)
	collector.Start()
	defer collector.Stop()

	deps := handlers.Deps{
		DB:           db,
		Orchestrator: orch,
		Backend:      backend,
		Indexer:      idx,
		Hub:          hub,
		Session:      session,
		Config:       config,
	}
	if trans != nil {
		deps.Processes = trans
	}
	h := handlers.New(deps)

	router := setupRouter(h, config)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	loggedHandler := middleware.Logger(loggingConfig)(router)
	handler := middleware.Compression(middleware.DefaultCompressionConfig())(loggedHandler)

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		handleShutdown(services{
			srv:          srv,
			indexer:      idx,
			orchestrator: orch,
			transcoder:   trans,
			stopSession:  stopSession,
			hub:          hub,
		})
	}()

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
	<-shutdownDone
	return nil
}

func setupRouter(h *handlers.Handlers, config *startup.Config) *mux.Router {
	r := mux.NewRouter()
	if config.MetricsEnabled {
		r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
		r.Handle("/metrics", h.MetricsHandler()).Methods("GET")
	}

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Export jobs
	api.HandleFunc("/jobs", h.ListJobs).Methods("GET")
	api.HandleFunc("/jobs", h.CreateJob).Methods("POST")
	api.HandleFunc("/jobs/{id}", h.GetJob).Methods("GET")
	api.HandleFunc("/jobs/{id}", h.CancelJob).Methods("DELETE")
	api.HandleFunc("/jobs/{id}/output", h.DownloadExport).Methods("GET")

	// Media files
	api.HandleFunc("/probe", h.ProbeFile).Methods("GET")
	api.HandleFunc("/thumbnail", h.Thumbnail).Methods("GET")
	api.HandleFunc("/index", h.TriggerIndex).Methods("POST")

	// Clips
	api.HandleFunc("/clips/{clip}", h.GetClip).Methods("GET")
	api.HandleFunc("/clips/{clip}/probe", h.ProbeClip).Methods("POST")
	api.HandleFunc("/clips/{clip}/audio", h.ExtractClipAudio).Methods("POST")
	api.HandleFunc("/clips/{clip}/save", h.SaveClipFrame).Methods("POST")
	api.HandleFunc("/clips/{clip}/scrub", h.ScrubClip).Methods("POST")
	api.HandleFunc("/clips/{clip}/play", h.PlayClip).Methods("POST")
	api.HandleFunc("/clips/{clip}/frame", h.CurrentFrame).Methods("GET")
	api.HandleFunc("/playback/stop", h.StopPlayback).Methods("POST")
	api.HandleFunc("/cache", h.FrameCacheStats).Methods("GET")

	// Result stream
	r.HandleFunc("/ws/events", h.ServeEvents).Methods("GET")

	return r
}

func handleShutdown(s services) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := s.srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if s.indexer != nil {
		startup.LogShutdownStep("Stopping indexer")
		s.indexer.Stop()
		startup.LogShutdownStepComplete("Indexer stopped")
	}

	startup.LogShutdownStep("Stopping preview session")
	s.stopSession()
	s.hub.Close()
	startup.LogShutdownStepComplete("Preview session stopped")

	startup.LogShutdownStep("Stopping workers")
	s.orchestrator.Shutdown()
	startup.LogShutdownStepComplete("Workers stopped")

	if s.transcoder != nil {
		startup.LogShutdownStep("Cleaning up transcoder")
		s.transcoder.Cleanup()
		startup.LogShutdownStepComplete("Transcoder cleanup complete")
	}

	startup.LogShutdownComplete()
}
