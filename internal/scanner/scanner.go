package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"photosort/internal/formats"
	"photosort/internal/logging"
	"photosort/internal/metrics"
)

// Entry is one supported image file discovered in a folder.
type Entry struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
	Kind    formats.Kind
}

// Group is one grid slot in pairing mode: a representative file plus the
// sibling files sharing its stem. When a RAW sibling exists it is the
// representative.
type Group struct {
	Representative Entry
	Siblings       []Entry
}

// Config configures a folder scan.
type Config struct {
	// NumWorkers is the number of parallel stat workers (0 = 3, safe for
	// network filesystems).
	NumWorkers int
	// ChannelBuffer is the size of the work channel buffer (0 = 256).
	ChannelBuffer int
	// Recursive descends into subdirectories.
	Recursive bool
	// SkipHidden skips files and directories starting with ".".
	SkipHidden bool
}

// DefaultConfig returns the defaults used by interactive sessions.
func DefaultConfig() Config {
	return Config{
		NumWorkers:    3,
		ChannelBuffer: 256,
		Recursive:     false,
		SkipHidden:    true,
	}
}

// Scanner walks a folder in parallel and returns the supported image
// files it contains, sorted by name.
type Scanner struct {
	config Config

	jobs    chan string
	results chan Entry

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	filesFound  atomic.Int64
	errorsCount atomic.Int64
}

// New creates a scanner.
func New(config Config) *Scanner {
	if config.NumWorkers <= 0 {
		config.NumWorkers = 3
	}
	if config.ChannelBuffer <= 0 {
		config.ChannelBuffer = 256
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scanner{
		config:  config,
		jobs:    make(chan string, config.ChannelBuffer),
		results: make(chan Entry, config.ChannelBuffer),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Scan walks folder and returns its supported image files sorted by
// name. Unsupported extensions are filtered here, before anything
// reaches the decode pipeline. Per-file errors are counted and skipped;
// only a failure to read the folder itself is returned.
func (s *Scanner) Scan(folder string) ([]Entry, error) {
	// A scanner is one-shot; releasing the context here frees its
	// resources without waiting for garbage collection.
	defer s.cancel()

	folder, err := filepath.Abs(folder)
	if err != nil {
		return nil, err
	}

	logging.Info("Scanning %s with %d workers", folder, s.config.NumWorkers)
	startTime := time.Now()

	for i := 0; i < s.config.NumWorkers; i++ {
		s.wg.Add(1)
		go s.worker()
	}

	var entries []Entry
	var collectorWg sync.WaitGroup
	collectorWg.Add(1)
	go func() {
		defer collectorWg.Done()
		for entry := range s.results {
			entries = append(entries, entry)
		}
	}()

	walkErr := s.walkAndEnqueue(folder)

	close(s.jobs)
	s.wg.Wait()
	close(s.results)
	collectorWg.Wait()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})

	logging.Info("Scan complete: %d files in %v (errors: %d)",
		s.filesFound.Load(), time.Since(startTime), s.errorsCount.Load())

	if walkErr != nil {
		return entries, walkErr
	}
	return entries, nil
}

// Stop cancels an in-progress scan.
func (s *Scanner) Stop() {
	s.cancel()
}

// Stats returns counters for the current or completed scan.
func (s *Scanner) Stats() (files, errors int64) {
	return s.filesFound.Load(), s.errorsCount.Load()
}

func (s *Scanner) walkAndEnqueue(folder string) error {
	return filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-s.ctx.Done():
			return fs.SkipAll
		default:
		}

		if err != nil {
			if path == folder {
				return err
			}
			logging.Warn("Error accessing %s: %v", path, err)
			s.errorsCount.Add(1)
			metrics.ScanErrors.Inc()
			return nil
		}

		if s.config.SkipHidden && strings.HasPrefix(d.Name(), ".") && path != folder {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path == folder || s.config.Recursive {
				return nil
			}
			return filepath.SkipDir
		}

		if !formats.IsSupported(filepath.Ext(d.Name())) {
			return nil
		}

		select {
		case s.jobs <- path:
		case <-s.ctx.Done():
			return fs.SkipAll
		}
		return nil
	})
}

func (s *Scanner) worker() {
	defer s.wg.Done()

	for path := range s.jobs {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		info, err := os.Stat(path)
		if err != nil {
			s.errorsCount.Add(1)
			metrics.ScanErrors.Inc()
			logging.Debug("stat failed for %s: %v", path, err)
			continue
		}

		entry := Entry{
			Path:    path,
			Name:    info.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Kind:    formats.DetectPath(path),
		}
		s.filesFound.Add(1)
		metrics.FilesScanned.Inc()

		select {
		case s.results <- entry:
		case <-s.ctx.Done():
			return
		}
	}
}

// GroupPairs groups entries sharing a filename stem for pairing mode.
// Each group's representative is its RAW member when one exists,
// otherwise the first member; groups are sorted by representative name.
func GroupPairs(entries []Entry) []Group {
	stems := make(map[string][]Entry)
	order := make([]string, 0, len(entries))
	for _, e := range entries {
		stem := strings.TrimSuffix(e.Name, filepath.Ext(e.Name))
		key := filepath.Join(filepath.Dir(e.Path), stem)
		if _, seen := stems[key]; !seen {
			order = append(order, key)
		}
		stems[key] = append(stems[key], e)
	}

	groups := make([]Group, 0, len(order))
	for _, key := range order {
		members := stems[key]
		rep := members[0]
		for _, m := range members {
			if m.Kind == formats.KindRAW {
				rep = m
				break
			}
		}
		var siblings []Entry
		for _, m := range members {
			if m.Path != rep.Path {
				siblings = append(siblings, m)
			}
		}
		groups = append(groups, Group{Representative: rep, Siblings: siblings})
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Representative.Name < groups[j].Representative.Name
	})
	return groups
}
