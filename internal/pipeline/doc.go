// Package pipeline schedules decode work off the interactive thread.
//
// A Scheduler owns two independent worker pools: a bounded thumbnail
// pool and a small pool reserved for full-resolution preview decodes.
// Every submitted request is stamped with the generation active at
// submit time; bumping the generation invalidates pending and in-flight
// work without interrupting it — stale results are discarded before they
// reach the consumer (cancellation is cooperative-by-discard, since
// decode libraries are not preemptible mid-call).
//
// The ResizeDebouncer coalesces rapid thumbnail-size changes into at
// most one reload per gesture.
package pipeline
