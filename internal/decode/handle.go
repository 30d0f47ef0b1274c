package decode

import (
	"image"

	"github.com/disintegration/imaging"
)

// PixelFormat identifies the channel layout of a handle's byte buffer.
type PixelFormat int

const (
	// FormatRGB is a 3-channel interleaved byte layout.
	FormatRGB PixelFormat = 3
	// FormatRGBA is a 4-channel interleaved byte layout.
	FormatRGBA PixelFormat = 4
)

// ImageHandle is an owned, immutable decoded image in display-ready
// orientation. It is created by the decoder and never mutated afterwards,
// so a single handle may be shared read-only between the preview cache and
// whatever currently displays it.
type ImageHandle struct {
	width  int
	height int
	format PixelFormat
	pix    []byte
}

// NewHandle wraps a decoded image into a handle. The image is normalized
// to a tightly-packed NRGBA buffer so consumers never deal with strides
// or sub-images.
func NewHandle(img image.Image) *ImageHandle {
	nrgba := imaging.Clone(img)
	b := nrgba.Bounds()
	return &ImageHandle{
		width:  b.Dx(),
		height: b.Dy(),
		format: FormatRGBA,
		pix:    nrgba.Pix,
	}
}

// Width returns the image width in pixels.
func (h *ImageHandle) Width() int { return h.width }

// Height returns the image height in pixels.
func (h *ImageHandle) Height() int { return h.height }

// Format returns the channel layout of Pix.
func (h *ImageHandle) Format() PixelFormat { return h.format }

// Pix returns the interleaved pixel buffer. Callers must treat it as
// read-only.
func (h *ImageHandle) Pix() []byte { return h.pix }

// LargestDim returns the larger of width and height.
func (h *ImageHandle) LargestDim() int {
	if h.width > h.height {
		return h.width
	}
	return h.height
}

// Image reconstructs an image.Image view over the handle's buffer.
// The returned image shares the underlying pixels.
func (h *ImageHandle) Image() *image.NRGBA {
	return &image.NRGBA{
		Pix:    h.pix,
		Stride: h.width * int(h.format),
		Rect:   image.Rect(0, 0, h.width, h.height),
	}
}
