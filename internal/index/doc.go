// Package index persists folder scan results in a local SQLite database
// so a previously opened folder's file list is available without waiting
// for a rescan.
package index
