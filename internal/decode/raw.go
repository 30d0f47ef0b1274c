package decode

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"photosort/internal/logging"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

// rawDevelopShrinkLimit is the largest target for which a shrink-on-load
// develop is acceptable. Typical RAW sensors are ~6000px across, so a
// reduced-resolution develop still covers targets up to ~3000px; beyond
// that a full develop is required to avoid upscaling.
const rawDevelopShrinkLimit = 3000

// extractEmbeddedPreview pulls the preview JPEG stored inside a RAW
// container's EXIF block. Fast path: no demosaic involved.
func extractEmbeddedPreview(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	meta, err := exif.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("exif parse failed: %w", err)
	}

	thumb, err := meta.JpegThumbnail()
	if err != nil {
		return nil, fmt.Errorf("no embedded preview: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(thumb), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("embedded preview decode failed: %w", err)
	}
	return img, nil
}

// embeddedPreviewSufficient reports whether an extracted preview is large
// enough for the requested target. An undersized preview is rejected so
// the caller falls through to a full develop instead of upscaling a
// low-resolution asset.
func embeddedPreviewSufficient(width, height, targetMax int) bool {
	if targetMax <= 0 {
		return true
	}
	larger := width
	if height > larger {
		larger = height
	}
	return larger >= targetMax
}

// developShrinkTarget decides how much the develop may shrink during
// decode: targets at or under the limit get a shrink-on-load develop,
// everything else (including "no target") requires full resolution.
func developShrinkTarget(targetMax int) int {
	if targetMax > 0 && targetMax <= rawDevelopShrinkLimit {
		return targetMax
	}
	return 0
}

// decodeRAW runs the RAW strategy cascade:
//  1. embedded preview extraction, rejected if undersized for the target;
//  2. develop via libvips, shrink-on-load when the target allows it;
//  3. generic vips container load, then the standard path.
//
// Intermediate errors are swallowed; only the final failure is returned.
func decodeRAW(path string, targetMax int) (image.Image, error) {
	img, err := extractEmbeddedPreview(path)
	if err == nil {
		b := img.Bounds()
		if embeddedPreviewSufficient(b.Dx(), b.Dy(), targetMax) {
			logging.Debug("RAW %s: using embedded preview %dx%d",
				filepath.Base(path), b.Dx(), b.Dy())
			return img, nil
		}
		logging.Debug("RAW %s: embedded preview %dx%d below target %d, developing",
			filepath.Base(path), b.Dx(), b.Dy(), targetMax)
	} else {
		logging.Debug("RAW %s: embedded preview unavailable: %v", filepath.Base(path), err)
	}

	shrinkTo := developShrinkTarget(targetMax)
	img, developErr := loadWithVips(path, shrinkTo)
	if developErr == nil {
		return img, nil
	}
	logging.Debug("RAW %s: develop failed: %v", filepath.Base(path), developErr)

	// Container access failed outright; try a generic full-resolution
	// container load, then the standard codecs.
	if shrinkTo > 0 {
		if img, err := loadWithVips(path, 0); err == nil {
			return img, nil
		}
	}
	if img, err := decodeStandard(path); err == nil {
		return img, nil
	}

	return nil, fmt.Errorf("all RAW strategies failed: %w", developErr)
}
