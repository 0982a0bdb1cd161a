package startup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"media-editor/internal/logging"
	"media-editor/internal/memory"

	"github.com/gorilla/mux"
	"gopkg.in/yaml.v3"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Codec backends selectable with BACKEND.
const (
	BackendFFmpeg = "ffmpeg"
	BackendSynth  = "synth"
)

// DatabaseFile is the name of the SQLite file inside DatabaseDir.
const DatabaseFile = "media-editor.db"

// Config holds all application configuration. Values come from an optional
// YAML file named by CONFIG_FILE, overridden by environment variables.
type Config struct {
	CacheDir         string        `yaml:"cache_dir"`
	DatabaseDir      string        `yaml:"database_dir"`
	MediaDir         string        `yaml:"media_dir"`
	Port             string        `yaml:"port"`
	MetricsEnabled   bool          `yaml:"metrics_enabled"`
	LogHealthChecks  bool          `yaml:"log_health_checks"`
	Backend          string        `yaml:"backend"`
	FFmpegPath       string        `yaml:"ffmpeg_path"`
	FFprobePath      string        `yaml:"ffprobe_path"`
	ProbeConcurrency int           `yaml:"probe_concurrency"`
	PreviewWidth     int           `yaml:"preview_width"`
	FrameCacheBytes  int64         `yaml:"frame_cache_bytes"`
	IndexInterval    time.Duration `yaml:"index_interval"`
	EncodeCRF        int           `yaml:"encode_crf"`
	EncodePreset     string        `yaml:"encode_preset"`

	// Derived paths
	DatabasePath string `yaml:"-"`
	AudioDir     string `yaml:"-"`
	FrameDir     string `yaml:"-"`

	// IndexerEnabled is set when MediaDir names a readable directory.
	IndexerEnabled bool `yaml:"-"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		CacheDir:         "./cache",
		DatabaseDir:      "./data",
		Port:             "8080",
		MetricsEnabled:   true,
		LogHealthChecks:  false,
		Backend:          BackendFFmpeg,
		FFmpegPath:       "ffmpeg",
		FFprobePath:      "ffprobe",
		ProbeConcurrency: 4,
		PreviewWidth:     640,
		IndexInterval:    30 * time.Minute,
		EncodeCRF:        18,
		EncodePreset:     "fast",
	}
}

// LoadConfig prints the banner, loads configuration and prepares the cache
// and database directories.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()
	return loadConfig()
}

func loadConfig() (*Config, error) {
	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	loaded, err := LoadSettings()
	if err != nil {
		return nil, err
	}
	config := *loaded
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		logging.Info("  CONFIG_FILE:         %s", path)
	}

	logging.Info("  CACHE_DIR:           %s", config.CacheDir)
	logging.Info("  DATABASE_DIR:        %s", config.DatabaseDir)
	logging.Info("  MEDIA_DIR:           %s", config.MediaDir)
	logging.Info("  PORT:                %s", config.Port)
	logging.Info("  METRICS_ENABLED:     %v", config.MetricsEnabled)
	logging.Info("  BACKEND:             %s", config.Backend)
	logging.Info("  PROBE_CONCURRENCY:   %d", config.ProbeConcurrency)
	logging.Info("  PREVIEW_WIDTH:       %d", config.PreviewWidth)
	if config.FrameCacheBytes > 0 {
		logging.Info("  FRAME_CACHE_BYTES:   %s", memory.FormatBytes(config.FrameCacheBytes))
	} else {
		logging.Info("  FRAME_CACHE_BYTES:   auto")
	}
	logging.Info("  INDEX_INTERVAL:      %s", config.IndexInterval)
	logging.Info("  ENCODE_CRF:          %d", config.EncodeCRF)
	logging.Info("  ENCODE_PRESET:       %s", config.EncodePreset)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", config.LogHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	if config.CacheDir, err = filepath.Abs(config.CacheDir); err != nil {
		return nil, fmt.Errorf("failed to resolve cache directory path: %w", err)
	}
	logging.Info("  Cache directory (absolute): %s", config.CacheDir)

	if config.DatabaseDir, err = filepath.Abs(config.DatabaseDir); err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	logging.Info("  Database directory (absolute): %s", config.DatabaseDir)

	if err := ensureDirectory(config.DatabaseDir, "database"); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}
	logging.Debug("  Testing database directory write access...")
	if err := testWriteAccess(config.DatabaseDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable (required for database): %w", err)
	}
	logging.Info("  [OK] Database directory is writable")
	config.DatabasePath = filepath.Join(config.DatabaseDir, DatabaseFile)

	config.AudioDir = filepath.Join(config.CacheDir, "audio")
	config.FrameDir = filepath.Join(config.CacheDir, "frames")
	for _, dir := range []struct{ path, name string }{{config.AudioDir, "audio"}, {config.FrameDir, "frames"}} {
		if !setupDir(dir.path, dir.name) {
			return nil, fmt.Errorf("%s cache directory %s is not writable", dir.name, dir.path)
		}
	}

	if config.MediaDir != "" {
		if config.MediaDir, err = filepath.Abs(config.MediaDir); err != nil {
			return nil, fmt.Errorf("failed to resolve media directory path: %w", err)
		}
		if err := ensureDirectory(config.MediaDir, "media"); err != nil {
			logging.Warn("  Media directory issue: %v", err)
		} else {
			config.IndexerEnabled = true
		}
	}

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Database:    ENABLED (required)")
	logging.Info("    Indexer:     %s", enabledString(config.IndexerEnabled))
	logging.Info("    Metrics:     %s", enabledString(config.MetricsEnabled))

	return &config, nil
}

// LoadSettings reads CONFIG_FILE and the environment and validates the
// result. Unlike LoadConfig it neither logs nor touches any directory.
func LoadSettings() (*Config, error) {
	config := DefaultConfig()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := readConfigFile(path, &config); err != nil {
			return nil, err
		}
	}
	applyEnv(&config)
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// readConfigFile merges the YAML file at path into config. Keys absent from
// the file keep their current values.
func readConfigFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(c *Config) {
	c.CacheDir = getEnv("CACHE_DIR", c.CacheDir)
	c.DatabaseDir = getEnv("DATABASE_DIR", c.DatabaseDir)
	c.MediaDir = getEnv("MEDIA_DIR", c.MediaDir)
	c.Port = getEnv("PORT", c.Port)
	c.MetricsEnabled = getEnvBool("METRICS_ENABLED", c.MetricsEnabled)
	c.LogHealthChecks = getEnvBool("LOG_HEALTH_CHECKS", c.LogHealthChecks)
	c.Backend = strings.ToLower(getEnv("BACKEND", c.Backend))
	c.FFmpegPath = getEnv("FFMPEG_PATH", c.FFmpegPath)
	c.FFprobePath = getEnv("FFPROBE_PATH", c.FFprobePath)
	c.ProbeConcurrency = getEnvInt("PROBE_CONCURRENCY", c.ProbeConcurrency)
	c.PreviewWidth = getEnvInt("PREVIEW_WIDTH", c.PreviewWidth)
	c.FrameCacheBytes = int64(getEnvInt("FRAME_CACHE_BYTES", int(c.FrameCacheBytes)))
	c.EncodeCRF = getEnvInt("ENCODE_CRF", c.EncodeCRF)
	c.EncodePreset = getEnv("ENCODE_PRESET", c.EncodePreset)

	if s := os.Getenv("INDEX_INTERVAL"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			logging.Warn("  Invalid INDEX_INTERVAL %q, using %v", s, c.IndexInterval)
		} else {
			c.IndexInterval = d
		}
	}
}

func (c *Config) validate() error {
	var errs []error
	if c.Backend != BackendFFmpeg && c.Backend != BackendSynth {
		errs = append(errs, fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendFFmpeg, BackendSynth))
	}
	if c.ProbeConcurrency < 1 {
		errs = append(errs, fmt.Errorf("probe concurrency must be at least 1, got %d", c.ProbeConcurrency))
	}
	if c.PreviewWidth < 2 {
		errs = append(errs, fmt.Errorf("preview width must be at least 2, got %d", c.PreviewWidth))
	}
	if c.EncodeCRF < 0 || c.EncodeCRF > 51 {
		errs = append(errs, fmt.Errorf("encode CRF must be within 0-51, got %d", c.EncodeCRF))
	}
	if c.FrameCacheBytes < 0 {
		errs = append(errs, fmt.Errorf("frame cache bytes must not be negative"))
	}
	return errors.Join(errs...)
}

func setupDir(path, name string) bool {
	logging.Debug("  Setting up %s directory: %s", name, path)

	if err := os.MkdirAll(path, 0o755); err != nil {
		logging.Warn("    Failed to create %s directory: %v", name, err)
		return false
	}
	if err := testWriteAccess(path); err != nil {
		logging.Warn("    %s directory is not writable: %v", name, err)
		return false
	}

	logging.Debug("    [OK] %s directory ready", name)
	return true
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogMemoryConfig logs the GOMEMLIMIT setup and the frame cache budget.
func LogMemoryConfig(result memory.ConfigResult, frameCacheBytes int64) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("MEMORY")
	logging.Info("------------------------------------------------------------")
	switch result.Source {
	case "GOMEMLIMIT", "MEMORY_LIMIT":
		logging.Info("  GOMEMLIMIT:      %s (from %s)", memory.FormatBytes(result.GoMemLimit), result.Source)
	default:
		logging.Info("  GOMEMLIMIT:      not configured")
	}
	logging.Info("  Frame cache:     %s", memory.FormatBytes(frameCacheBytes))
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogBackendInit logs the selected codec backend and checks FFmpeg when it
// is needed.
func LogBackendInit(config *Config) error {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("CODEC BACKEND")
	logging.Info("------------------------------------------------------------")

	if config.Backend == BackendSynth {
		logging.Warn("  Using synthetic backend: media files are not read from disk")
		return nil
	}
	for _, bin := range []string{config.FFmpegPath, config.FFprobePath} {
		if err := checkBinary(bin); err != nil {
			logging.Error("  %s check failed: %v", bin, err)
			return err
		}
	}
	logging.Info("  [OK] FFmpeg and FFprobe are available")
	return nil
}

// LogIndexerInit logs indexer initialization
func LogIndexerInit(mediaDir string, interval time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("INDEXER INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Media directory: %s", mediaDir)
	logging.Info("  Index interval:  %v", interval)
	logging.Info("  Starting indexer...")
}

// LogIndexerStarted logs successful indexer start
func LogIndexerStarted() {
	logging.Info("  [OK] Indexer started")
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes at debug level.
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))
		logging.Debug("")

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}
			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
			logging.Debug("")
		}
	}

	logging.Info("  HTTP logging enabled")
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if (first == "api" || first == "ws") && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return first + "/" + subParts[0]
	}
	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    API:           http://0.0.0.0:%s/api/jobs", config.Port)
	logging.Info("    Events:        ws://0.0.0.0:%s/ws/events", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.Port)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
    __  ___         ___         ______    ___ __
   /  |/  /__  ____/ (_)___ _  / ____/___/ (_) /_____  _____
  / /|_/ / _ \/ __  / / __ '/ / __/ / __  / / __/ __ \/ ___/
 / /  / /  __/ /_/ / / /_/ / / /___/ /_/ / / /_/ /_/ / /
/_/  /_/\___/\__,_/_/\__,_/ /_____/\__,_/_/\__/\____/_/

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		logging.Debug("  Goroutines:      %d", runtime.NumGoroutine())
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		if name == "media" {
			return fmt.Errorf("directory does not exist: %s", path)
		}
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func checkBinary(bin string) error {
	path, err := exec.LookPath(bin)
	if err != nil {
		return fmt.Errorf("%s not found in PATH", bin)
	}
	logging.Debug("  %s path: %s", bin, path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return fmt.Errorf("failed to get %s version: %w", bin, err)
	}
	if first, _, _ := strings.Cut(string(output), "\n"); first != "" {
		logging.Debug("  %s version: %s", bin, strings.TrimSpace(first))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
