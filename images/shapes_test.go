package images

import (
	"image"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
)

func TestBoxFromCenter(t *testing.T) {
	tests := []struct {
		name     string
		center   [4]float32
		canvas   image.Point
		expected Box
	}{
		{
			name:     "centered square",
			center:   [4]float32{0.5, 0.5, 0.2, 0.2},
			canvas:   image.Pt(640, 640),
			expected: Box{X: 256, Y: 256, Width: 128, Height: 128},
		},
		{
			name:     "non square canvas",
			center:   [4]float32{0.25, 0.5, 0.5, 0.5},
			canvas:   image.Pt(800, 400),
			expected: Box{X: 0, Y: 100, Width: 400, Height: 200},
		},
		{
			name:     "zero size",
			center:   [4]float32{0.5, 0.5, 0, 0},
			canvas:   image.Pt(640, 640),
			expected: Box{X: 320, Y: 320, Width: 0, Height: 0},
		},
		{
			name:     "negative size",
			center:   [4]float32{0.5, 0.5, -0.1, 0.1},
			canvas:   image.Pt(100, 100),
			expected: Box{X: 55, Y: 45, Width: -10, Height: 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.center
			got := BoxFromCenter(c[0], c[1], c[2], c[3], tt.canvas.X, tt.canvas.Y)
			assert.InDelta(t, tt.expected.X, got.X, 1e-3)
			assert.InDelta(t, tt.expected.Y, got.Y, 1e-3)
			assert.InDelta(t, tt.expected.Width, got.Width, 1e-3)
			assert.InDelta(t, tt.expected.Height, got.Height, 1e-3)
		})
	}
}

func TestBoxEdges(t *testing.T) {
	b := Box{X: 10, Y: 20, Width: 30, Height: 40}

	assert.Equal(t, float32(40), b.Right())
	assert.Equal(t, float32(60), b.Bottom())
	assert.Equal(t, float32(1200), b.Area())
	assert.False(t, b.Degenerate())
	assert.True(t, Box{Width: 0, Height: 10}.Degenerate())
	assert.True(t, Box{Width: 10, Height: -1}.Degenerate())
}

func TestBoxFinite(t *testing.T) {
	assert.True(t, Box{X: 1, Y: 2, Width: 3, Height: 4}.Finite())
	assert.False(t, Box{X: math32.NaN()}.Finite())
	assert.False(t, Box{Width: math32.Inf(1)}.Finite())
}

func TestBoxRectangle(t *testing.T) {
	assert.Equal(t, image.Rect(256, 256, 384, 384), Box{X: 256, Y: 256, Width: 128, Height: 128}.Rectangle())
	assert.Equal(t, image.Rect(10, 10, 20, 20), Box{X: 20, Y: 20, Width: -10, Height: -10}.Rectangle())
	assert.Equal(t, image.Rect(1, 2, 4, 6), Box{X: 1.4, Y: 1.6, Width: 2.2, Height: 4.1}.Rectangle())
}
