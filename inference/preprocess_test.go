package inference

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPreprocessor(t *testing.T, w, h int) (*Preprocessor, *TensorPool) {
	t.Helper()

	pool, err := NewTensorPool(InputShape(image.Pt(w, h))...)
	require.NoError(t, err)

	p, err := NewPreprocessor(image.Pt(w, h), pool)
	require.NoError(t, err)
	return p, pool
}

func fill(img *image.RGBA, c color.RGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func TestNewPreprocessorValidation(t *testing.T) {
	pool, err := NewTensorPool(1, 640, 640, 3)
	require.NoError(t, err)

	_, err = NewPreprocessor(image.Pt(0, 640), pool)
	assert.ErrorIs(t, err, ErrInvalidShape)

	_, err = NewPreprocessor(image.Pt(320, 320), pool)
	assert.ErrorIs(t, err, ErrInvalidShape)

	_, err = NewPreprocessor(image.Pt(640, 640), nil)
	assert.ErrorIs(t, err, ErrInvalidShape)
}

func TestPreprocessorNormalizes(t *testing.T) {
	p, pool := newTestPreprocessor(t, 8, 8)

	frame := image.NewRGBA(image.Rect(0, 0, 8, 8))
	fill(frame, color.RGBA{255, 0, 51, 255})
	frame.SetRGBA(1, 0, color.RGBA{0, 102, 255, 255})

	tt, background, err := p.Process(frame)
	require.NoError(t, err)
	defer tt.Release()

	data := tt.Data()
	require.Len(t, data, 8*8*3)
	assert.Equal(t, []int{1, 8, 8, 3}, []int(tt.Dense().Shape()))

	// NHWC: pixel (0,0) then pixel (1,0).
	assert.InDelta(t, 1.0, data[0], 1e-6)
	assert.InDelta(t, 0.0, data[1], 1e-6)
	assert.InDelta(t, 0.2, data[2], 1e-6)
	assert.InDelta(t, 0.0, data[3], 1e-6)
	assert.InDelta(t, 0.4, data[4], 1e-6)
	assert.InDelta(t, 1.0, data[5], 1e-6)

	for _, v := range data {
		assert.True(t, v >= 0 && v <= 1)
	}

	assert.Equal(t, image.Rect(0, 0, 8, 8), background.Bounds())
	assert.Equal(t, int64(1), pool.Outstanding())
}

func TestPreprocessorStretchesWithoutLetterbox(t *testing.T) {
	p, _ := newTestPreprocessor(t, 64, 64)

	frame := image.NewRGBA(image.Rect(0, 0, 160, 90))
	fill(frame, color.RGBA{10, 200, 30, 255})

	tt, _, err := p.Process(frame)
	require.NoError(t, err)
	defer tt.Release()

	// A letterboxed frame would leave padding rows at the top and bottom.
	data := tt.Data()
	for _, i := range []int{0, (64*64 - 1) * 3, (32*64 + 32) * 3} {
		assert.InDelta(t, 10.0/255, data[i+0], 1.0/255)
		assert.InDelta(t, 200.0/255, data[i+1], 1.0/255)
		assert.InDelta(t, 30.0/255, data[i+2], 1.0/255)
	}
	assert.Equal(t, image.Pt(64, 64), p.Size())
}

func TestPreprocessorOverwritesCanvas(t *testing.T) {
	p, _ := newTestPreprocessor(t, 4, 4)

	first := image.NewRGBA(image.Rect(0, 0, 4, 4))
	fill(first, color.RGBA{255, 255, 255, 255})
	second := image.NewRGBA(image.Rect(0, 0, 4, 4))
	fill(second, color.RGBA{0, 0, 0, 255})

	t1, bg1, err := p.Process(first)
	require.NoError(t, err)
	t1.Release()

	t2, _, err := p.Process(second)
	require.NoError(t, err)
	t2.Release()

	assert.Equal(t, color.RGBA{0, 0, 0, 255}, p.Canvas().RGBAAt(2, 2))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, bg1.(*image.RGBA).RGBAAt(2, 2), "snapshots are not aliased")
}

func TestPreprocessorFrameUnavailable(t *testing.T) {
	p, pool := newTestPreprocessor(t, 4, 4)

	_, _, err := p.Process(nil)
	assert.ErrorIs(t, err, ErrFrameUnavailable)

	_, _, err = p.Process(image.NewRGBA(image.Rectangle{}))
	assert.ErrorIs(t, err, ErrFrameUnavailable)
	assert.Equal(t, int64(0), pool.Outstanding())
}
