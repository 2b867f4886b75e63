package images

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolutionMegaPixels(t *testing.T) {
	testCases := []struct {
		name     string
		res      Resolution
		expected float64
	}{
		{name: "Full HD 1080p", res: Resolution{Width: 1920, Height: 1080}, expected: 2.07},
		{name: "4K UHD", res: Resolution{Width: 3840, Height: 2160}, expected: 8.29},
		{name: "1MP (5:4)", res: Resolution{Width: 1280, Height: 1024}, expected: 1.31},
		{name: "Zero Width", res: Resolution{Height: 1080}, expected: 0},
		{name: "Negative Height", res: Resolution{Width: 1920, Height: -1}, expected: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, tc.res.MegaPixels(), 1e-9)
		})
	}
}

func TestResolutionsOrderedByPixelCount(t *testing.T) {
	all := Resolutions()
	require.NotEmpty(t, all)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Width*all[i-1].Height, all[i].Width*all[i].Height, "%s before %s", all[i-1].Name, all[i].Name)
	}

	all[0].Width = 1
	assert.Equal(t, 640, Resolutions()[0].Width, "callers get a copy")
}

func TestLookupResolution(t *testing.T) {
	r, ok := LookupResolution(image.Pt(1920, 1080))
	require.True(t, ok)
	assert.Equal(t, ResolutionTypeFHD1080p, r.Name)
	assert.Equal(t, AspectRatio169, r.AspectRatio)
	assert.Equal(t, "Full HD 1080p (1920x1080, 2.07MP)", r.String())
	assert.Equal(t, image.Pt(1920, 1080), r.Size())

	_, ok = LookupResolution(image.Pt(640, 640))
	assert.False(t, ok)
}

func TestMaxResolution(t *testing.T) {
	largest := MaxResolution()
	assert.Equal(t, ResolutionType8KUHD, largest.Name)
	assert.False(t, largest.Experimental)
}

func TestDescribeSize(t *testing.T) {
	assert.Equal(t, "HD 720p", DescribeSize(image.Pt(1280, 720)))
	assert.Equal(t, "640x640", DescribeSize(image.Pt(640, 640)))
}
