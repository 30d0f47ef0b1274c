package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"photosort/internal/logging"
	"photosort/internal/pipeline"
	"photosort/internal/preview"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// Config holds all pipeline configuration. Everything is a
// construction-time parameter sourced from the environment; nothing is
// persisted.
type Config struct {
	ThumbSize        int
	ThumbnailWorkers int
	PreviewWorkers   int
	QueueDepth       int
	CacheCapacity    int
	DebounceInterval time.Duration
	MinReloadDelta   int
	RecursiveScan    bool
	Pairing          bool

	IndexPath    string
	IndexEnabled bool

	StatusAddr    string
	StatusEnabled bool
}

// LoadConfig loads and validates configuration from environment
// variables, logging each effective value.
func LoadConfig() (*Config, error) {
	logging.Info("photosort %s (commit %s, built %s, %s %s/%s)",
		Version, Commit, BuildTime, GoVersion, runtime.GOOS, runtime.GOARCH)

	cfg := &Config{
		ThumbSize:        getEnvInt("THUMB_SIZE", 160),
		ThumbnailWorkers: getEnvInt("THUMBNAIL_WORKERS", pipeline.DefaultThumbnailWorkers()),
		PreviewWorkers:   getEnvInt("PREVIEW_WORKERS", pipeline.DefaultPreviewWorkers),
		QueueDepth:       getEnvInt("QUEUE_DEPTH", 1024),
		CacheCapacity:    getEnvInt("CACHE_CAPACITY", preview.DefaultCapacity),
		DebounceInterval: getEnvDuration("DEBOUNCE_INTERVAL", pipeline.DefaultDebounceInterval),
		MinReloadDelta:   getEnvInt("MIN_RELOAD_DELTA", pipeline.DefaultMinReloadDelta),
		RecursiveScan:    getEnvBool("RECURSIVE_SCAN", false),
		Pairing:          getEnvBool("PAIR_RAW_JPEG", false),
		IndexPath:        getEnv("INDEX_PATH", ""),
		StatusAddr:       ":" + getEnv("STATUS_PORT", "9090"),
		StatusEnabled:    getEnvBool("STATUS_ENABLED", false),
	}
	cfg.IndexEnabled = cfg.IndexPath != ""

	if cfg.ThumbSize <= 0 {
		return nil, fmt.Errorf("THUMB_SIZE must be positive")
	}
	if cfg.CacheCapacity <= 0 {
		return nil, fmt.Errorf("CACHE_CAPACITY must be positive")
	}
	if cfg.IndexEnabled {
		abs, err := filepath.Abs(cfg.IndexPath)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve index path: %w", err)
		}
		cfg.IndexPath = abs
	}

	logging.Info("  THUMB_SIZE:         %d", cfg.ThumbSize)
	logging.Info("  THUMBNAIL_WORKERS:  %d", cfg.ThumbnailWorkers)
	logging.Info("  PREVIEW_WORKERS:    %d", cfg.PreviewWorkers)
	logging.Info("  CACHE_CAPACITY:     %d", cfg.CacheCapacity)
	logging.Info("  DEBOUNCE_INTERVAL:  %s", cfg.DebounceInterval)
	logging.Info("  MIN_RELOAD_DELTA:   %d", cfg.MinReloadDelta)
	logging.Info("  RECURSIVE_SCAN:     %v", cfg.RecursiveScan)
	logging.Info("  PAIR_RAW_JPEG:      %v", cfg.Pairing)
	logging.Info("  INDEX_PATH:         %s", cfg.IndexPath)
	logging.Info("  STATUS_ENABLED:     %v (%s)", cfg.StatusEnabled, cfg.StatusAddr)
	logging.Info("  LOG_LEVEL:          %s", logging.GetLevel())

	return cfg, nil
}

// LogFatal logs a fatal startup error and exits.
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
		logging.Warn("  Invalid %s=%q, using default %d", key, value, fallback)
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
		logging.Warn("  Invalid %s=%q, using default %v", key, value, fallback)
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		logging.Warn("  Invalid %s=%q, using default %s", key, value, fallback)
	}
	return fallback
}
