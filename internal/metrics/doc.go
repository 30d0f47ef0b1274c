// Package metrics provides Prometheus instrumentation for the photosort
// pipeline. All metrics are prefixed with "photosort_" and registered
// with the default registry via promauto; expose them by mounting
// Handler() on the status server's /metrics route.
//
// Categories:
//   - decode: attempt counts by class and status, duration histograms,
//     stale-result discards, per-pool queue depth
//   - preview cache: hits, misses, evictions, current entry count
//   - scanner: files discovered, scan errors, debounced reloads fired
package metrics
