package pipeline

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"photosort/internal/decode"
	"photosort/internal/logging"
	"photosort/internal/metrics"
)

// PriorityClass selects which worker pool executes a request.
type PriorityClass string

const (
	// ClassThumbnail routes through the larger thumbnail pool.
	ClassThumbnail PriorityClass = "thumbnail"
	// ClassPreview routes through the small reserved preview pool, so a
	// full-resolution preview is never queued behind thumbnail backlog.
	ClassPreview PriorityClass = "preview"
)

// maxThumbnailWorkers caps the thumbnail pool so decode work cannot
// saturate disk I/O and starve the interactive thread on many-core
// machines.
const maxThumbnailWorkers = 8

// DefaultThumbnailWorkers returns min(GOMAXPROCS, 8), overridable with
// the THUMBNAIL_WORKERS environment variable. GOMAXPROCS respects
// container CPU limits on Go 1.19+.
func DefaultThumbnailWorkers() int {
	if override := os.Getenv("THUMBNAIL_WORKERS"); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if count > maxThumbnailWorkers {
				return maxThumbnailWorkers
			}
			return count
		}
	}
	workers := runtime.GOMAXPROCS(0)
	if workers > maxThumbnailWorkers {
		workers = maxThumbnailWorkers
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}

// DefaultPreviewWorkers is the reserved preview pool size.
const DefaultPreviewWorkers = 2

// DecodeFunc is the blocking decode call executed inside a worker.
type DecodeFunc func(path string, targetMax int) (*decode.ImageHandle, error)

// Request is an immutable decode request. Generation is stamped by
// Submit with the generation active at submit time.
type Request struct {
	Path      string
	TargetMax int
	Class     PriorityClass

	generation uint64
}

// Generation returns the generation the request was stamped with.
func (r Request) Generation() uint64 { return r.generation }

// Result is the outcome of one request, delivered exactly once unless
// its generation went stale while in flight.
type Result struct {
	Path       string
	Generation uint64
	Class      PriorityClass
	Handle     *decode.ImageHandle
	Err        error
}

// Config configures a Scheduler.
type Config struct {
	// ThumbnailWorkers is the thumbnail pool size (0 = DefaultThumbnailWorkers()).
	ThumbnailWorkers int
	// PreviewWorkers is the preview pool size (0 = DefaultPreviewWorkers).
	PreviewWorkers int
	// QueueDepth is the buffer size of each job channel and of the
	// results channel (0 = 1024).
	QueueDepth int
	// Decode is the decode call executed by workers. Required.
	Decode DecodeFunc
}

// Scheduler owns the two decode worker pools and the generation counter
// for one pipeline instance. Multiple schedulers are fully independent;
// nothing here is package-global.
type Scheduler struct {
	decode DecodeFunc

	generation atomic.Uint64

	thumbJobs   chan Request
	previewJobs chan Request
	results     chan Result

	wg sync.WaitGroup

	// mu is held shared across an enqueue and exclusively by Close, so
	// Close never closes a channel with a send in flight and a blocked
	// submit on one pool never delays a submit on the other.
	mu     sync.RWMutex
	closed bool
}

// NewScheduler starts the worker pools and returns the scheduler.
func NewScheduler(cfg Config) (*Scheduler, error) {
	if cfg.Decode == nil {
		return nil, fmt.Errorf("scheduler: Decode function is required")
	}
	if cfg.ThumbnailWorkers <= 0 {
		cfg.ThumbnailWorkers = DefaultThumbnailWorkers()
	}
	if cfg.PreviewWorkers <= 0 {
		cfg.PreviewWorkers = DefaultPreviewWorkers
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 1024
	}

	s := &Scheduler{
		decode:      cfg.Decode,
		thumbJobs:   make(chan Request, cfg.QueueDepth),
		previewJobs: make(chan Request, cfg.QueueDepth),
		results:     make(chan Result, cfg.QueueDepth),
	}

	logging.Info("Scheduler: %d thumbnail workers, %d preview workers",
		cfg.ThumbnailWorkers, cfg.PreviewWorkers)

	for i := 0; i < cfg.ThumbnailWorkers; i++ {
		s.wg.Add(1)
		go s.worker(s.thumbJobs, ClassThumbnail)
	}
	for i := 0; i < cfg.PreviewWorkers; i++ {
		s.wg.Add(1)
		go s.worker(s.previewJobs, ClassPreview)
	}

	return s, nil
}

// Generation returns the current generation.
func (s *Scheduler) Generation() uint64 {
	return s.generation.Load()
}

// BumpGeneration invalidates all pending and in-flight results and
// returns the new generation. In-flight decodes are not interrupted;
// their output self-discards on the generation check.
func (s *Scheduler) BumpGeneration() uint64 {
	gen := s.generation.Add(1)
	logging.Debug("Scheduler: generation bumped to %d", gen)
	return gen
}

// Submit enqueues a decode request, stamping it with the current
// generation, and returns the stamped request. It blocks if the target
// pool's queue is full. Submitting on a closed scheduler returns an
// error.
func (s *Scheduler) Submit(path string, targetMax int, class PriorityClass) (Request, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return Request{}, fmt.Errorf("scheduler: closed")
	}
	req := Request{
		Path:       path,
		TargetMax:  targetMax,
		Class:      class,
		generation: s.generation.Load(),
	}

	jobs := s.thumbJobs
	if class == ClassPreview {
		jobs = s.previewJobs
	}
	// The read lock is held across the send: concurrent submitters do not
	// serialize each other, so a thumbnail submit stalled on a full queue
	// cannot delay a preview submit, and Close (which takes the write
	// lock) cannot close the channel mid-send.
	jobs <- req
	s.mu.RUnlock()

	metrics.QueueDepth.WithLabelValues(string(class)).Set(float64(len(jobs)))
	return req, nil
}

// Results returns the delivery channel. It is closed after Close once
// all workers have drained. The single consumer must re-check the
// generation of each result before applying it.
func (s *Scheduler) Results() <-chan Result {
	return s.results
}

// Close stops accepting work, waits for in-flight decodes to finish and
// closes the results channel. It waits for any submits already past the
// closed check to land before closing the job channels.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.thumbJobs)
	close(s.previewJobs)
	s.mu.Unlock()

	s.wg.Wait()
	close(s.results)
}

// worker executes decode requests from one pool. A request whose
// generation went stale is skipped before decoding when possible, and
// its result is discarded after decoding otherwise; stale work never
// reaches the consumer.
func (s *Scheduler) worker(jobs <-chan Request, class PriorityClass) {
	defer s.wg.Done()

	for req := range jobs {
		metrics.QueueDepth.WithLabelValues(string(class)).Set(float64(len(jobs)))

		if req.generation != s.generation.Load() {
			metrics.StaleResultsTotal.Inc()
			continue
		}

		start := time.Now()
		handle, err := s.safeDecode(req)
		metrics.DecodeDuration.WithLabelValues(string(class)).Observe(time.Since(start).Seconds())

		if req.generation != s.generation.Load() {
			metrics.StaleResultsTotal.Inc()
			logging.Debug("Scheduler: dropping stale result for %s (gen %d)",
				req.Path, req.generation)
			continue
		}

		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.DecodesTotal.WithLabelValues(string(class), status).Inc()

		s.results <- Result{
			Path:       req.Path,
			Generation: req.generation,
			Class:      class,
			Handle:     handle,
			Err:        err,
		}
	}
}

// safeDecode isolates one task's fault: a panicking decode library marks
// that request failed without taking down the worker or any other
// in-flight request.
func (s *Scheduler) safeDecode(req Request) (handle *decode.ImageHandle, err error) {
	defer func() {
		if r := recover(); r != nil {
			handle = nil
			err = fmt.Errorf("decode panic for %s: %v", req.Path, r)
			logging.Error("Scheduler: %v", err)
		}
	}()
	return s.decode(req.Path, req.TargetMax)
}
