// Package session ties the scanner, scheduler, preview cache and resize
// debouncer into one open-folder browsing session and exposes the
// presentation boundary: a Coordinator interface receiving
// generation-checked decode results on a single dispatch goroutine.
package session
