// Package decode turns arbitrary image files into display-ready pixel
// buffers.
//
// Dispatch is by lowercase file extension into three strategy families:
//
//   - HEIF/HEIC containers, decoded through libvips
//   - camera RAW containers, tried as an ordered cascade: embedded
//     preview extraction, then a libvips develop (shrink-on-load when the
//     target size allows), then the generic/standard fallbacks
//   - standard raster formats (JPEG, PNG, GIF, TIFF, BMP, WebP), decoded
//     with full materialization so corrupt files fail immediately
//
// After any successful decode, EXIF orientation is applied and the image
// is downscaled to the requested target dimension, Lanczos for
// preview-sized targets and bilinear for small thumbnails. Decoding is a
// pure function of (file bytes, target size); the package keeps no state
// beyond the libvips lifecycle and needs no synchronization.
package decode
