package images

import (
	"image"
	"image/draw"

	"github.com/nfnt/resize"
)

// Stretch resizes img to exactly width x height with bilinear interpolation.
//
// The aspect ratio is not preserved and no letterbox padding is added.
//
// Arguments:
//   - img: The source image.
//   - width: The target width in pixels.
//   - height: The target height in pixels.
//
// Returns:
//   - image.Image: The stretched image, or img itself if it already has the target size.
func Stretch(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img
	}

	return resize.Resize(uint(width), uint(height), img, resize.Bilinear)
}

// StretchInto stretches src over the full bounds of dst, overwriting its prior contents.
//
// Arguments:
//   - dst: The destination canvas.
//   - src: The source frame.
func StretchInto(dst *image.RGBA, src image.Image) {
	b := dst.Bounds()
	stretched := Stretch(src, b.Dx(), b.Dy())
	draw.Draw(dst, b, stretched, stretched.Bounds().Min, draw.Src)
}
