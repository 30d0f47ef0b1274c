// Package startup loads environment-driven configuration and carries the
// build-time version variables injected via -ldflags.
package startup
