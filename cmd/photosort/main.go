package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"photosort/internal/decode"
	"photosort/internal/index"
	"photosort/internal/logging"
	"photosort/internal/scanner"
	"photosort/internal/session"
	"photosort/internal/startup"
	"photosort/internal/status"
)

func main() {
	startTime := time.Now()

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <folder>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Decodes every supported image in <folder> at the configured\n")
		fmt.Fprintf(os.Stderr, "thumbnail size and reports the outcome per file.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	folder := flag.Arg(0)

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	if err := decode.InitVips(); err != nil {
		logging.Warn("libvips unavailable, RAW/HEIF decode degraded: %v", err)
	}
	defer decode.ShutdownVips()

	ctx := context.Background()

	var store *index.Store
	if config.IndexEnabled {
		store, err = index.Open(ctx, config.IndexPath)
		if err != nil {
			startup.LogFatal("Failed to open scan index: %v", err)
		}
		defer store.Close()
	}

	coord := newWarmCoordinator()
	sess, err := session.New(session.Config{
		ThumbnailWorkers: config.ThumbnailWorkers,
		PreviewWorkers:   config.PreviewWorkers,
		QueueDepth:       config.QueueDepth,
		CacheCapacity:    config.CacheCapacity,
		DebounceInterval: config.DebounceInterval,
		MinReloadDelta:   config.MinReloadDelta,
		ThumbSize:        config.ThumbSize,
		Pairing:          config.Pairing,
		Scan: scanner.Config{
			NumWorkers:    3,
			ChannelBuffer: 256,
			Recursive:     config.RecursiveScan,
			SkipHidden:    true,
		},
		Store: store,
	}, coord)
	if err != nil {
		startup.LogFatal("Failed to build session: %v", err)
	}

	var statusSrv *status.Server
	if config.StatusEnabled {
		statusSrv = status.NewServer(sess, config.StatusAddr)
		go func() {
			if err := statusSrv.Start(); err != nil {
				logging.Error("Status server error: %v", err)
			}
		}()
	}

	entries, err := sess.OpenFolder(ctx, folder)
	if err != nil {
		sess.Close()
		startup.LogFatal("Failed to open folder: %v", err)
	}
	expected := len(entries)
	if config.Pairing {
		expected = len(scanner.GroupPairs(entries))
	}
	coord.expect(expected)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-coord.done:
		ok, failed := coord.counts()
		logging.Info("Warm complete: %d decoded, %d failed in %v",
			ok, failed, time.Since(startTime).Round(time.Millisecond))
	case sig := <-sigChan:
		logging.Info("Received %s, shutting down", sig)
	}

	if statusSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := statusSrv.Shutdown(shutdownCtx); err != nil {
			logging.Warn("Status server shutdown error: %v", err)
		}
		cancel()
	}
	sess.Close()

	if _, failed := coord.counts(); failed > 0 {
		os.Exit(1)
	}
}

// warmCoordinator is the headless presentation collaborator: it records
// every applied result and signals when each visible file has resolved
// to either pixels or an error.
type warmCoordinator struct {
	mu       sync.Mutex
	expected int
	applied  int
	failed   int
	armed    bool
	done     chan struct{}
}

func newWarmCoordinator() *warmCoordinator {
	return &warmCoordinator{done: make(chan struct{})}
}

func (c *warmCoordinator) expect(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expected = n
	c.armed = true
	c.maybeFinish()
}

func (c *warmCoordinator) ApplyThumbnail(path string, _ uint64, handle *decode.ImageHandle, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applied++
	if err != nil {
		c.failed++
		logging.Warn("FAILED %s: %v", path, err)
	} else {
		logging.Debug("decoded %s (%dx%d)", path, handle.Width(), handle.Height())
	}
	c.maybeFinish()
}

func (c *warmCoordinator) ApplyPreview(string, uint64, *decode.ImageHandle, error) {
	// The warm run never requests previews.
}

func (c *warmCoordinator) counts() (ok, failed int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applied - c.failed, c.failed
}

func (c *warmCoordinator) maybeFinish() {
	if c.armed && c.applied >= c.expected {
		select {
		case <-c.done:
		default:
			close(c.done)
		}
	}
}
