// Package preview holds the bounded LRU cache of recently viewed
// full-resolution images. Thumbnails are never cached here; they are too
// numerous and too size-varying to cache effectively.
package preview
