// Package scanner discovers the supported image files in a folder. It
// filters by the supported-format tables before anything reaches the
// decode pipeline and implements the RAW+JPEG pairing used by the grid's
// pairing toggle.
package scanner
