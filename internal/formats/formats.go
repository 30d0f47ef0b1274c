package formats

import (
	"os"
	"path/filepath"
	"strings"
)

// Kind identifies which decode strategy family handles a file.
type Kind string

const (
	// KindStandard is a common raster format decodable by the stdlib/x-image codecs.
	KindStandard Kind = "standard"
	// KindRAW is a camera RAW container.
	KindRAW Kind = "raw"
	// KindHEIF is a HEIF/HEIC container.
	KindHEIF Kind = "heif"
	// KindUnsupported is anything the pipeline does not decode.
	KindUnsupported Kind = "unsupported"
)

// StandardExtensions maps extensions handled by the general-purpose codecs.
var StandardExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".tiff": true,
	".tif":  true,
}

// RawExtensions maps the supported camera RAW container extensions.
var RawExtensions = map[string]bool{
	".arw": true,
	".cr2": true,
	".cr3": true,
	".nef": true,
	".rw2": true,
	".orf": true,
	".raf": true,
	".dng": true,
	".srw": true,
}

// HeifExtensions maps the HEIF container extensions.
var HeifExtensions = map[string]bool{
	".heic": true,
	".heif": true,
}

// Detect returns the strategy kind for a file extension.
// The extension may be passed with or without the leading dot.
func Detect(ext string) Kind {
	ext = strings.ToLower(ext)
	if ext != "" && ext[0] != '.' {
		ext = "." + ext
	}
	switch {
	case StandardExtensions[ext]:
		return KindStandard
	case RawExtensions[ext]:
		return KindRAW
	case HeifExtensions[ext]:
		return KindHEIF
	default:
		return KindUnsupported
	}
}

// DetectPath returns the strategy kind for a file path.
func DetectPath(path string) Kind {
	return Detect(filepath.Ext(path))
}

// IsSupported reports whether the pipeline decodes files with this extension.
func IsSupported(ext string) bool {
	return Detect(ext) != KindUnsupported
}

// Sniff inspects the first bytes of a file and returns the detected
// container name ("jpeg", "png", ...), or "unknown". It is diagnostic
// only; dispatch is always by extension.
func Sniff(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	header := make([]byte, 32)
	n, err := file.Read(header)
	if err != nil {
		return "", err
	}
	header = header[:n]

	switch {
	case len(header) >= 3 && header[0] == 0xFF && header[1] == 0xD8 && header[2] == 0xFF:
		return "jpeg", nil

	case len(header) >= 4 && header[0] == 0x89 && header[1] == 0x50 && header[2] == 0x4E && header[3] == 0x47:
		return "png", nil

	case len(header) >= 4 && header[0] == 0x47 && header[1] == 0x49 && header[2] == 0x46 && header[3] == 0x38:
		return "gif", nil

	case len(header) >= 12 && header[0] == 0x52 && header[1] == 0x49 && header[2] == 0x46 && header[3] == 0x46 &&
		header[8] == 0x57 && header[9] == 0x45 && header[10] == 0x42 && header[11] == 0x50:
		return "webp", nil

	case len(header) >= 2 && header[0] == 0x42 && header[1] == 0x4D:
		return "bmp", nil

	case len(header) >= 4 && ((header[0] == 0x49 && header[1] == 0x49 && header[2] == 0x2A && header[3] == 0x00) ||
		(header[0] == 0x4D && header[1] == 0x4D && header[2] == 0x00 && header[3] == 0x2A)):
		return "tiff", nil

	case len(header) >= 12 && header[4] == 0x66 && header[5] == 0x74 && header[6] == 0x79 && header[7] == 0x70:
		brand := string(header[8:12])
		if brand == "heic" || brand == "heix" || brand == "hevc" || brand == "hevx" || brand == "mif1" || brand == "msf1" {
			return "heif", nil
		}
		return "isobmff", nil
	}

	return "unknown", nil
}
