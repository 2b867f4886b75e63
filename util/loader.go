// Package util - Loading helpers for frame sequences on disk.
package util

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/nvr-ai/go-overlay/images"
	"github.com/pkg/errors"
)

// ImageFile represents an image file.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Data is the raw bytes of the image file.
	Data []byte
	// Frame is the frame number of the image file.
	Frame int
	// Format is the encoding implied by the file extension.
	Format images.ImageFormat
}

// Image returns the file as an encoded images.Image.
func (f ImageFile) Image() *images.Image {
	return &images.Image{Format: f.Format, Data: f.Data}
}

// LoadDirectoryImageFiles reads all image files from a directory.
//
// Files are expected to be named "frame-<n>.<ext>" or "<n>.<ext>" and are returned in
// ascending frame order. Files with other extensions are ignored.
//
// Arguments:
// - dir: Directory path containing image files.
//
// Returns:
// - []ImageFile: Slice of ImageFile, each containing the raw bytes of an image file.
// - error: Error if loading fails or a file name carries no frame number.
func LoadDirectoryImageFiles(dir string) ([]ImageFile, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading frame directory %s", dir)
	}

	var frames []ImageFile
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		format, ok := images.FormatFromPath(file.Name())
		if !ok {
			continue
		}

		frame, err := frameNumber(file.Name())
		if err != nil {
			return nil, err
		}

		imgPath := filepath.Join(dir, file.Name())
		data, err := os.ReadFile(imgPath)
		if err != nil {
			return nil, errors.Wrapf(err, "reading frame %s", imgPath)
		}

		frames = append(frames, ImageFile{
			Path:   imgPath,
			Data:   data,
			Frame:  frame,
			Format: format,
		})
	}

	sort.Slice(frames, func(i, j int) bool {
		return frames[i].Frame < frames[j].Frame
	})

	return frames, nil
}

func frameNumber(name string) (int, error) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.TrimPrefix(base, "frame-")

	n, err := strconv.Atoi(base)
	if err != nil {
		return 0, errors.Wrapf(err, "file %s has no frame number", name)
	}
	return n, nil
}
