// Package formats holds the supported-format tables and the static
// extension-to-strategy lookup used by the decoder and the folder scanner.
package formats
