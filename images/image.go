// Package images - Frame decoding and conversion.
package images

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// ErrEmptyImage is returned when a frame has no pixels.
var ErrEmptyImage = errors.New("image has no pixels")

// Image represents an encoded image with a format, data, width, and height.
type Image struct {
	// The format of the image.
	Format ImageFormat `json:"format" yaml:"format"`
	// The data of the image.
	Data []byte `json:"data" yaml:"data"`
	// The width of the image.
	Width int `json:"width" yaml:"width"`
	// The height of the image.
	Height int `json:"height" yaml:"height"`
}

// Decode decodes the encoded data into an image.Image, filling in Width and Height.
func (i *Image) Decode() (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(i.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s image", i.Format)
	}

	b := img.Bounds()
	if b.Empty() {
		return nil, ErrEmptyImage
	}
	i.Width, i.Height = b.Dx(), b.Dy()

	return img, nil
}

// FromRGBABuffer copies a packed RGBA frame buffer into a new image.RGBA.
//
// Video decoders reuse their frame buffer between reads, so the pixels are always
// copied.
//
// Arguments:
//   - buf: Packed RGBA bytes, 4 per pixel, row-major.
//   - width: The frame width.
//   - height: The frame height.
//
// Returns:
//   - *image.RGBA: The copied frame.
//   - error: An error if the buffer is too small for the given dimensions.
func FromRGBABuffer(buf []byte, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrEmptyImage
	}

	need := width * height * 4
	if len(buf) < need {
		return nil, errors.Errorf("frame buffer holds %d bytes, need %d for %dx%d", len(buf), need, width, height)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	copy(img.Pix, buf[:need])

	return img, nil
}

// Empty reports whether img is nil or has no pixels.
func Empty(img image.Image) bool {
	return img == nil || img.Bounds().Empty()
}

// Clone returns a deep copy of img.
func Clone(img image.Image) *image.NRGBA {
	return imaging.Clone(img)
}
