package decode

import (
	"image"
	"os"
	"path/filepath"
	"strings"

	"photosort/internal/formats"
	"photosort/internal/logging"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // BMP format support
	_ "golang.org/x/image/tiff" // TIFF format support
	_ "golang.org/x/image/webp" // WebP format support
)

// thumbnailFilterLimit is the largest target for which the cheaper
// bilinear filter is used when downscaling. Preview-sized targets above
// it get Lanczos.
const thumbnailFilterLimit = 512

// Decoder turns an image file on disk into an ImageHandle. It holds no
// mutable state and is safe for concurrent use from any number of
// workers.
type Decoder struct{}

// NewDecoder returns a Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode reads path and produces a display-ready handle. When targetMax
// is positive the result's larger dimension never exceeds it; aspect
// ratio is preserved. Every failure is returned as a *DecodeError; no
// library fault escapes uncaught.
func (d *Decoder) Decode(path string, targetMax int) (*ImageHandle, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, newError(path, MissingFile, err)
		}
		return nil, newError(path, CorruptOrUnreadable, err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	kind := formats.Detect(ext)

	var img image.Image
	var err error

	switch kind {
	case formats.KindHEIF:
		img, err = decodeHEIF(path)
	case formats.KindRAW:
		img, err = decodeRAW(path, targetMax)
	case formats.KindStandard:
		img, err = decodeStandard(path)
	default:
		// Upstream scanning filters unsupported extensions, but a direct
		// request still gets one attempt at the standard codecs before
		// failing.
		img, err = decodeStandard(path)
		if err != nil {
			return nil, newError(path, UnsupportedFormat, err)
		}
	}

	if err != nil {
		return nil, newError(path, CorruptOrUnreadable, err)
	}

	img = constrain(img, targetMax)
	return newHandleChecked(path, img)
}

// decodeStandard decodes common raster formats with full materialization
// so corrupt files fail here rather than at render time. imaging.Open
// applies EXIF orientation; the plain image.Decode fallback covers codecs
// that imaging's own open path rejects.
func decodeStandard(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err == nil {
		return img, nil
	}
	logging.Debug("imaging.Open failed for %s: %v, trying image.Decode", path, err)

	file, openErr := os.Open(path)
	if openErr != nil {
		return nil, openErr
	}
	defer file.Close()

	img, format, decErr := image.Decode(file)
	if decErr != nil {
		return nil, err
	}
	logging.Debug("decoded %s as %s via fallback", path, format)
	return img, nil
}

// decodeHEIF decodes a HEIF/HEIC container via libvips, falling back to
// the standard codecs if vips is unavailable or rejects the file.
func decodeHEIF(path string) (image.Image, error) {
	img, err := loadWithVips(path, 0)
	if err == nil {
		return img, nil
	}
	logging.Debug("HEIF %s: vips load failed: %v, trying standard decode",
		filepath.Base(path), err)
	if img, stdErr := decodeStandard(path); stdErr == nil {
		return img, nil
	}
	return nil, err
}

// constrain downscales img to fit within targetMax, preserving aspect
// ratio. Small thumbnail targets use the cheaper bilinear filter; larger
// preview targets use Lanczos.
func constrain(img image.Image, targetMax int) image.Image {
	if targetMax <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() <= targetMax && b.Dy() <= targetMax {
		return img
	}

	filter := imaging.Lanczos
	if targetMax <= thumbnailFilterLimit {
		filter = imaging.Linear
	}
	return imaging.Fit(img, targetMax, targetMax, filter)
}

// newHandleChecked wraps the image into a handle, converting an
// allocation panic from a pathological decode into ResourceExhausted.
func newHandleChecked(path string, img image.Image) (handle *ImageHandle, err error) {
	defer func() {
		if r := recover(); r != nil {
			handle = nil
			err = newError(path, ResourceExhausted, nil)
		}
	}()
	return NewHandle(img), nil
}
