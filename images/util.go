package images

import (
	"crypto/md5"
	"fmt"
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Checksum generates a deterministic checksum over the pixels of img.
//
// Arguments:
// - img: The image to compute the checksum for.
//
// Returns:
// - A hex-encoded MD5 checksum string.
//
// Example:
//
// ```go
//
//	before := Checksum(canvas)
//	// ... draw ...
//	changed := Checksum(canvas) != before
//
// ```
func Checksum(img image.Image) string {
	if Empty(img) {
		return "empty"
	}

	rgba, ok := img.(*image.RGBA)
	if !ok {
		b := img.Bounds()
		rgba = image.NewRGBA(b)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				rgba.Set(x, y, img.At(x, y))
			}
		}
	}

	hash := md5.New()
	hash.Write(rgba.Pix)
	return fmt.Sprintf("%x", hash.Sum(nil))
}

// FromMat converts a decoded OpenCV frame into an image.Image.
//
// Arguments:
// - mat: A BGR frame read from a gocv.VideoCapture.
//
// Returns:
// - image.Image: The converted frame.
// - error: An error if the Mat is empty or its type is unsupported.
func FromMat(mat gocv.Mat) (image.Image, error) {
	if mat.Empty() {
		return nil, ErrEmptyImage
	}

	img, err := mat.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "converting mat to image")
	}

	return img, nil
}
