package pipeline

import (
	"sync"
	"time"

	"photosort/internal/logging"
	"photosort/internal/metrics"
)

// DefaultDebounceInterval is the quiet window after the last size change
// before a reload is considered.
const DefaultDebounceInterval = 250 * time.Millisecond

// DefaultMinReloadDelta is the smallest size increase worth re-decoding
// a whole folder for.
const DefaultMinReloadDelta = 50

// ResizeDebouncer coalesces a burst of thumbnail-size changes (a zoom
// gesture) into at most one reload, fired with the final requested size.
// Shrinking never reloads: existing higher-resolution buffers downscale
// client-side for free.
type ResizeDebouncer struct {
	interval time.Duration
	minDelta int
	reload   func(size int)

	mu          sync.Mutex
	timer       *time.Timer
	armSeq      uint64
	lastApplied int
	pending     int
	hasPending  bool
	stopped     bool
}

// NewResizeDebouncer creates a debouncer. initialSize is the size the
// grid is currently loaded at; reload is invoked (on the timer
// goroutine) with the new size when a reload is warranted.
func NewResizeDebouncer(interval time.Duration, minDelta, initialSize int, reload func(size int)) *ResizeDebouncer {
	if interval <= 0 {
		interval = DefaultDebounceInterval
	}
	if minDelta < 0 {
		minDelta = DefaultMinReloadDelta
	}
	return &ResizeDebouncer{
		interval:    interval,
		minDelta:    minDelta,
		reload:      reload,
		lastApplied: initialSize,
	}
}

// Notify records a requested size and arms a fresh single-shot delay
// timer, superseding any earlier arm. Only the most recent size survives
// a burst.
func (d *ResizeDebouncer) Notify(size int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.pending = size
	d.hasPending = true

	// A new timer per Notify rather than Reset: a timer that has already
	// fired and is waiting on the mutex carries a superseded sequence
	// number and returns without reloading, so every arm gets its full
	// quiet window.
	d.armSeq++
	seq := d.armSeq
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() { d.fire(seq) })
}

// fire runs when a timer expires. Fires from superseded arms are ignored;
// a reload is triggered only when the pending size is strictly larger
// than the last applied size and the increase exceeds the minimum delta.
func (d *ResizeDebouncer) fire(seq uint64) {
	d.mu.Lock()
	if d.stopped || seq != d.armSeq || !d.hasPending {
		d.mu.Unlock()
		return
	}
	size := d.pending
	d.hasPending = false
	d.timer = nil

	if size <= d.lastApplied || size-d.lastApplied <= d.minDelta {
		logging.Debug("ResizeDebouncer: ignoring size %d (last applied %d)", size, d.lastApplied)
		d.mu.Unlock()
		return
	}
	d.lastApplied = size
	reload := d.reload
	d.mu.Unlock()

	logging.Debug("ResizeDebouncer: reloading at size %d", size)
	metrics.ReloadsTriggered.Inc()
	if reload != nil {
		reload(size)
	}
}

// LastApplied returns the size of the last reload that actually fired
// (or the initial size).
func (d *ResizeDebouncer) LastApplied() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastApplied
}

// Stop cancels any pending reload. Subsequent Notify calls are no-ops.
func (d *ResizeDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.hasPending = false
}
