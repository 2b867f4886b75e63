package images

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	return img
}

func TestFromRGBABuffer(t *testing.T) {
	buf := []byte{
		255, 0, 0, 255, 0, 255, 0, 255,
		0, 0, 255, 255, 10, 20, 30, 255,
	}

	img, err := FromRGBABuffer(buf, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 2, 2), img.Bounds())
	assert.Equal(t, color.RGBA{10, 20, 30, 255}, img.RGBAAt(1, 1))

	// The decoder's buffer must not alias the frame.
	buf[0] = 7
	assert.Equal(t, uint8(255), img.Pix[0])

	_, err = FromRGBABuffer(buf[:8], 2, 2)
	assert.Error(t, err)

	_, err = FromRGBABuffer(buf, 0, 2)
	assert.ErrorIs(t, err, ErrEmptyImage)
}

func TestImageDecode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(4, 3, color.RGBA{1, 2, 3, 255})))

	img := &Image{Format: FormatPNG, Data: buf.Bytes()}
	decoded, err := img.Decode()
	require.NoError(t, err)
	assert.Equal(t, 4, img.Width)
	assert.Equal(t, 3, img.Height)
	r, g, b, _ := decoded.At(0, 0).RGBA()
	assert.Equal(t, []uint32{1, 2, 3}, []uint32{r >> 8, g >> 8, b >> 8})

	_, err = (&Image{Format: FormatPNG, Data: []byte("nope")}).Decode()
	assert.Error(t, err)
}

func TestStretch(t *testing.T) {
	src := solid(320, 180, color.RGBA{200, 100, 50, 255})

	out := Stretch(src, 640, 640)
	assert.Equal(t, image.Rect(0, 0, 640, 640), out.Bounds())

	r, g, b, _ := out.At(320, 320).RGBA()
	assert.InDelta(t, 200, r>>8, 1)
	assert.InDelta(t, 100, g>>8, 1)
	assert.InDelta(t, 50, b>>8, 1)

	same := solid(640, 640, color.RGBA{A: 255})
	assert.Same(t, same, Stretch(same, 640, 640).(*image.RGBA))
}

func TestStretchInto(t *testing.T) {
	dst := solid(64, 64, color.RGBA{9, 9, 9, 255})
	StretchInto(dst, solid(10, 30, color.RGBA{0, 255, 0, 255}))

	assert.Equal(t, color.RGBA{0, 255, 0, 255}, dst.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{0, 255, 0, 255}, dst.RGBAAt(63, 63))
}

func TestChecksum(t *testing.T) {
	a := solid(8, 8, color.RGBA{1, 1, 1, 255})
	b := solid(8, 8, color.RGBA{1, 1, 1, 255})
	c := solid(8, 8, color.RGBA{2, 1, 1, 255})

	assert.Equal(t, Checksum(a), Checksum(b))
	assert.NotEqual(t, Checksum(a), Checksum(c))
	assert.Equal(t, Checksum(a), Checksum(Clone(a)))
	assert.Equal(t, "empty", Checksum(nil))
}

func TestFormatFromPath(t *testing.T) {
	f, ok := FormatFromPath("/tmp/frame-1.JPG")
	assert.True(t, ok)
	assert.Equal(t, FormatJPEG, f)

	_, ok = FormatFromPath("notes.txt")
	assert.False(t, ok)
}
