// Package filetype decides whether a file is a supported image or video
// type ("drawable"). Detection is content-first via mimetype sniffing, with
// an extension fallback for files that cannot be read.
package filetype

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Supported image and video MIME types. Matching is exact on the full type,
// or by top-level family for image/* and video/* minus the exclusions below.
var (
	// Types outside image/* and video/* that the gallery still renders.
	supportedMIMETypes = map[string]bool{
		"application/x-shockwave-flash": true,
	}

	// Types under image/ or video/ that the gallery cannot render.
	excludedMIMETypes = map[string]bool{
		"image/svg+xml": true,
	}

	imageExtensions = extSet("jpg", "jpeg", "png", "gif", "bmp", "webp", "tiff", "tif", "psd", "ico", "heic")
	videoExtensions = extSet("mp4", "m4v", "mov", "avi", "mkv", "webm", "wmv", "mpg", "mpeg", "flv", "3gp")
)

func extSet(exts ...string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		set["."+e] = true
	}
	return set
}

// Detector performs media type detection. Construction can fail if the
// sniffer cannot be prepared; callers treat that as "cannot classify".
type Detector struct{}

// NewDetector creates a detector.
func NewDetector() (*Detector, error) {
	return &Detector{}, nil
}

// Detect sniffs the media type of the file at path.
func (d *Detector) Detect(path string) (string, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to detect type of %s: %w", path, err)
	}
	// mimetype returns e.g. "image/jpeg; charset=..."-free types already,
	// but normalize to be safe.
	return strings.TrimSpace(strings.Split(mt.String(), ";")[0]), nil
}

// IsDrawableMIMEType reports whether a detected MIME type is a supported
// image or video type.
func IsDrawableMIMEType(mime string) bool {
	if mime == "" {
		return false
	}
	if excludedMIMETypes[mime] {
		return false
	}
	if supportedMIMETypes[mime] {
		return true
	}
	return strings.HasPrefix(mime, "image/") || strings.HasPrefix(mime, "video/")
}

// HasDrawableExtension reports whether the file name carries a supported
// image or video extension.
func HasDrawableExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return imageExtensions[ext] || videoExtensions[ext]
}
