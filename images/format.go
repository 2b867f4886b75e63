package images

import (
	"path/filepath"
	"strings"
)

// ImageFormat represents supported image formats
type ImageFormat string

const (
	FormatJPEG ImageFormat = "jpeg"
	FormatPNG  ImageFormat = "png"
	FormatBMP  ImageFormat = "bmp"
	FormatGIF  ImageFormat = "gif"
	FormatTIFF ImageFormat = "tiff"
)

// FormatFromPath returns the image format implied by the file extension.
func FormatFromPath(path string) (ImageFormat, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return FormatJPEG, true
	case ".png":
		return FormatPNG, true
	case ".bmp":
		return FormatBMP, true
	case ".gif":
		return FormatGIF, true
	case ".tif", ".tiff":
		return FormatTIFF, true
	default:
		return "", false
	}
}
