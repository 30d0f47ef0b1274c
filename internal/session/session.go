package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"photosort/internal/decode"
	"photosort/internal/index"
	"photosort/internal/logging"
	"photosort/internal/metrics"
	"photosort/internal/pipeline"
	"photosort/internal/preview"
	"photosort/internal/scanner"
)

// metaLastFolder is the scan-index key remembering the last opened folder.
const metaLastFolder = "last_folder"

// Coordinator is the presentation collaborator boundary. The pipeline
// delivers (path, generation, handle | error) and nothing else; all
// presentation state lives on the other side. Both methods are invoked
// from the session's single dispatch goroutine, so implementations need
// no locking of their own as long as they confine their state there.
type Coordinator interface {
	ApplyThumbnail(path string, generation uint64, handle *decode.ImageHandle, err error)
	ApplyPreview(path string, generation uint64, handle *decode.ImageHandle, err error)
}

// Config configures a session. Zero values select the reference
// behavior.
type Config struct {
	ThumbnailWorkers int
	PreviewWorkers   int
	QueueDepth       int
	CacheCapacity    int
	DebounceInterval time.Duration
	MinReloadDelta   int
	// ThumbSize is the initial thumbnail target dimension (0 = 160).
	ThumbSize int
	// Pairing enables RAW+JPEG pairing mode from the start.
	Pairing bool
	// Scan configures folder scanning.
	Scan scanner.Config
	// Decode overrides the decode call; nil uses the real decoder.
	Decode pipeline.DecodeFunc
	// Store optionally persists scan results between runs.
	Store *index.Store
}

// Session owns one open-folder browsing session: the scheduler, the
// preview cache, the resize debouncer and the current file list. It is
// the only writer of pipeline state; the Coordinator only ever receives
// generation-checked results.
type Session struct {
	coord Coordinator
	sched *pipeline.Scheduler
	cache *preview.Cache
	deb   *pipeline.ResizeDebouncer
	store *index.Store

	scanConfig scanner.Config

	mu        sync.Mutex
	folder    string
	files     []scanner.Entry
	thumbSize int
	pairing   bool

	// hits carries cache-hit previews to the dispatch goroutine so the
	// Coordinator is only ever invoked from there.
	hits         chan pipeline.Result
	dispatchDone chan struct{}
}

// New builds a session delivering results to coord.
func New(cfg Config, coord Coordinator) (*Session, error) {
	if coord == nil {
		return nil, fmt.Errorf("session: coordinator is required")
	}
	decodeFn := cfg.Decode
	if decodeFn == nil {
		dec := decode.NewDecoder()
		decodeFn = dec.Decode
	}
	if cfg.ThumbSize <= 0 {
		cfg.ThumbSize = 160
	}
	if cfg.Scan.NumWorkers == 0 && cfg.Scan.ChannelBuffer == 0 {
		cfg.Scan = scanner.DefaultConfig()
	}

	sched, err := pipeline.NewScheduler(pipeline.Config{
		ThumbnailWorkers: cfg.ThumbnailWorkers,
		PreviewWorkers:   cfg.PreviewWorkers,
		QueueDepth:       cfg.QueueDepth,
		Decode:           decodeFn,
	})
	if err != nil {
		return nil, err
	}

	s := &Session{
		coord:        coord,
		sched:        sched,
		cache:        preview.NewCache(cfg.CacheCapacity),
		store:        cfg.Store,
		scanConfig:   cfg.Scan,
		thumbSize:    cfg.ThumbSize,
		pairing:      cfg.Pairing,
		hits:         make(chan pipeline.Result, 16),
		dispatchDone: make(chan struct{}),
	}
	s.deb = pipeline.NewResizeDebouncer(cfg.DebounceInterval, cfg.MinReloadDelta,
		cfg.ThumbSize, s.reloadThumbnails)

	go s.dispatch()
	return s, nil
}

// dispatch is the single consumer of scheduler results and cache hits:
// the surrogate for the interactive thread. The generation check happens
// here, after the marshal, so a bump between worker delivery and
// application still suppresses the result.
func (s *Session) dispatch() {
	defer close(s.dispatchDone)

	results := s.sched.Results()
	for {
		select {
		case res, ok := <-results:
			if !ok {
				return
			}
			s.apply(res)
		case res := <-s.hits:
			s.apply(res)
		}
	}
}

func (s *Session) apply(res pipeline.Result) {
	if res.Generation != s.sched.Generation() {
		metrics.StaleResultsTotal.Inc()
		return
	}
	switch res.Class {
	case pipeline.ClassPreview:
		if res.Err == nil {
			s.cache.Put(res.Path, res.Handle)
		}
		s.coord.ApplyPreview(res.Path, res.Generation, res.Handle, res.Err)
	default:
		s.coord.ApplyThumbnail(res.Path, res.Generation, res.Handle, res.Err)
	}
}

// OpenFolder scans folder, replaces the visible file set and submits a
// thumbnail decode for every file at the current thumbnail size. The
// generation bump makes any still-in-flight results from the previous
// folder self-discard. Returns the files that will populate the grid.
func (s *Session) OpenFolder(ctx context.Context, folder string) ([]scanner.Entry, error) {
	entries, err := scanner.New(s.scanConfig).Scan(folder)
	if err != nil {
		return nil, fmt.Errorf("open folder %s: %w", folder, err)
	}

	if s.store != nil {
		if err := s.store.ReplaceFolder(ctx, folder, entries); err != nil {
			logging.Warn("failed to persist scan for %s: %v", folder, err)
		}
		if err := s.store.SetMeta(ctx, metaLastFolder, folder); err != nil {
			logging.Warn("failed to persist last folder: %v", err)
		}
	}

	s.mu.Lock()
	s.folder = folder
	s.files = entries
	size := s.thumbSize
	s.mu.Unlock()

	gen := s.sched.BumpGeneration()
	logging.Info("Opened %s: %d files (generation %d)", folder, len(entries), gen)

	s.submitAll(size)
	return entries, nil
}

// SetPairing toggles RAW+JPEG pairing mode. The visible file set changes
// materially, so the generation is bumped and thumbnails resubmitted.
func (s *Session) SetPairing(enabled bool) {
	s.mu.Lock()
	if s.pairing == enabled {
		s.mu.Unlock()
		return
	}
	s.pairing = enabled
	size := s.thumbSize
	s.mu.Unlock()

	s.sched.BumpGeneration()
	s.submitAll(size)
}

// visible returns the paths currently populating the grid: group
// representatives in pairing mode, every file otherwise.
func (s *Session) visible() []string {
	s.mu.Lock()
	files := s.files
	pairing := s.pairing
	s.mu.Unlock()

	if !pairing {
		paths := make([]string, len(files))
		for i, e := range files {
			paths[i] = e.Path
		}
		return paths
	}
	groups := scanner.GroupPairs(files)
	paths := make([]string, len(groups))
	for i, g := range groups {
		paths[i] = g.Representative.Path
	}
	return paths
}

func (s *Session) submitAll(size int) {
	for _, path := range s.visible() {
		if _, err := s.sched.Submit(path, size, pipeline.ClassThumbnail); err != nil {
			logging.Warn("submit failed for %s: %v", path, err)
			return
		}
	}
}

// RequestPreview requests a full-resolution preview for path. A cache
// hit skips the decode but is still marshalled through the dispatch
// goroutine like any other result; a miss goes through the reserved
// preview pool.
func (s *Session) RequestPreview(path string) {
	if handle, ok := s.cache.Get(path); ok {
		res := pipeline.Result{
			Path:       path,
			Generation: s.sched.Generation(),
			Class:      pipeline.ClassPreview,
			Handle:     handle,
		}
		select {
		case s.hits <- res:
		case <-s.dispatchDone:
		}
		return
	}
	if _, err := s.sched.Submit(path, 0, pipeline.ClassPreview); err != nil {
		logging.Warn("preview submit failed for %s: %v", path, err)
	}
}

// NotifyThumbSize reports a thumbnail-size change from the grid. Bursts
// are debounced; at most one reload fires per gesture, and only when the
// final size is a material increase.
func (s *Session) NotifyThumbSize(size int) {
	s.deb.Notify(size)
}

// reloadThumbnails is the debouncer's reload callback.
func (s *Session) reloadThumbnails(size int) {
	s.mu.Lock()
	s.thumbSize = size
	s.mu.Unlock()

	gen := s.sched.BumpGeneration()
	logging.Info("Reloading thumbnails at %dpx (generation %d)", size, gen)
	s.submitAll(size)
}

// Generation returns the current generation.
func (s *Session) Generation() uint64 {
	return s.sched.Generation()
}

// Stats is a point-in-time snapshot for the status endpoint.
type Stats struct {
	Folder        string `json:"folder"`
	Files         int    `json:"files"`
	Generation    uint64 `json:"generation"`
	ThumbSize     int    `json:"thumbSize"`
	Pairing       bool   `json:"pairing"`
	CacheEntries  int    `json:"cacheEntries"`
	CacheCapacity int    `json:"cacheCapacity"`
}

// Snapshot returns current session statistics.
func (s *Session) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Folder:        s.folder,
		Files:         len(s.files),
		Generation:    s.sched.Generation(),
		ThumbSize:     s.thumbSize,
		Pairing:       s.pairing,
		CacheEntries:  s.cache.Len(),
		CacheCapacity: s.cache.Capacity(),
	}
}

// Close stops the debouncer, drains the scheduler and waits for the
// dispatch goroutine to exit. In-flight decodes run to completion.
func (s *Session) Close() {
	s.deb.Stop()
	s.sched.Close()
	<-s.dispatchDone
}
