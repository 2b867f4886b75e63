// Package images - Pixel-space geometry and frame utilities.
package images

import (
	"image"

	"github.com/chewxy/math32"
)

// Box is a corner-anchored box in pixel space.
//
// X and Y are the top-left corner. Width and Height may be zero or negative when the
// model emits a degenerate box; nothing here clamps them.
type Box struct {
	X      float32 `json:"x"`
	Y      float32 `json:"y"`
	Width  float32 `json:"width"`
	Height float32 `json:"height"`
}

// BoxFromCenter converts a normalized center-box into a pixel-space corner box.
//
// Arguments:
//   - xc, yc: The normalized box center.
//   - w, h: The normalized box width and height.
//   - canvasWidth, canvasHeight: The pixel space to scale into.
//
// Returns:
//   - Box: x = (xc - w/2) * canvasWidth, y = (yc - h/2) * canvasHeight, sizes scaled likewise.
func BoxFromCenter(xc, yc, w, h float32, canvasWidth, canvasHeight int) Box {
	cw := float32(canvasWidth)
	ch := float32(canvasHeight)

	return Box{
		X:      (xc - w/2) * cw,
		Y:      (yc - h/2) * ch,
		Width:  w * cw,
		Height: h * ch,
	}
}

// Right returns the x coordinate of the right edge.
func (b Box) Right() float32 {
	return b.X + b.Width
}

// Bottom returns the y coordinate of the bottom edge.
func (b Box) Bottom() float32 {
	return b.Y + b.Height
}

// Area returns the signed area of the box.
func (b Box) Area() float32 {
	return b.Width * b.Height
}

// Degenerate reports whether the box has no positive extent in either axis.
func (b Box) Degenerate() bool {
	return b.Width <= 0 || b.Height <= 0
}

// Finite reports whether every field is a finite number.
func (b Box) Finite() bool {
	for _, v := range [...]float32{b.X, b.Y, b.Width, b.Height} {
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Rectangle rounds the box to the nearest integer image.Rectangle.
//
// The rectangle is canonicalized, so negative sizes produce a rectangle spanning the
// same pixels in the opposite direction.
func (b Box) Rectangle() image.Rectangle {
	return image.Rect(
		int(math32.Round(b.X)),
		int(math32.Round(b.Y)),
		int(math32.Round(b.Right())),
		int(math32.Round(b.Bottom())),
	)
}
