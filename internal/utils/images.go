// Package utils holds small helpers shared across modules.
package utils

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	// Register decoders for dimension probing.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/chai2010/webp"
)

// imageExtensions are the file types the gallery manages.
var imageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".tiff": "image/tiff",
}

// IsImageFile reports whether the path has a supported image extension.
func IsImageFile(path string) bool {
	_, ok := imageExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// MimeType returns the media type for a file path, defaulting to JPEG
// for unknown extensions (matching how the files are served).
func MimeType(path string) string {
	if mt, ok := imageExtensions[strings.ToLower(filepath.Ext(path))]; ok {
		return mt
	}
	return "image/jpeg"
}

// Dimensions probes the pixel width and height of an image file without
// decoding the full bitmap.
func Dimensions(path string) (width, height int, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read image %s: %w", path, err)
	}
	return DimensionsOf(data, MimeType(path))
}

// DimensionsOf probes dimensions from raw bytes.
func DimensionsOf(data []byte, mimeType string) (width, height int, err error) {
	if mimeType == "image/webp" {
		cfg, err := webp.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return 0, 0, fmt.Errorf("failed to decode webp config: %w", err)
		}
		return cfg.Width, cfg.Height, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode image config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
