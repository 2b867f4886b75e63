package images

import (
	"fmt"
	"image"
	"math"
)

// AspectRatio represents a camera aspect ratio by name (e.g., "16:9").
type AspectRatio string

// Common aspect ratios of surveillance and consumer video.
const (
	AspectRatio169 AspectRatio = "16:9"
	AspectRatio43  AspectRatio = "4:3"
	AspectRatio54  AspectRatio = "5:4"
	AspectRatio32  AspectRatio = "3:2"
	AspectRatio179 AspectRatio = "17:9"
)

// ResolutionType is the common name of a video resolution.
type ResolutionType string

// Named resolutions, smallest first.
const (
	ResolutionTypeNHD      ResolutionType = "nHD"
	ResolutionTypeVGA      ResolutionType = "VGA"
	ResolutionTypeFWVGA    ResolutionType = "FWVGA"
	ResolutionTypeQHD540   ResolutionType = "qHD 540p"
	ResolutionTypeHD720p   ResolutionType = "HD 720p"
	ResolutionTypeWXGA     ResolutionType = "WXGA"
	ResolutionType1MP54    ResolutionType = "1MP (5:4)"
	ResolutionTypeHDPlus   ResolutionType = "HD+"
	ResolutionType2MP43    ResolutionType = "2MP (4:3)"
	ResolutionTypeFHD1080p ResolutionType = "Full HD 1080p"
	ResolutionType3MP43    ResolutionType = "3MP (4:3)"
	ResolutionTypeQHD1440p ResolutionType = "QHD 1440p"
	ResolutionType4MP169   ResolutionType = "4MP (16:9)"
	ResolutionTypeQHDPlus  ResolutionType = "QHD+"
	ResolutionType6MP32    ResolutionType = "6MP (3:2)"
	ResolutionType4KUHD    ResolutionType = "4K UHD"
	ResolutionType12MP     ResolutionType = "12MP (4:3)"
	ResolutionType5K       ResolutionType = "5K"
	ResolutionType8KUHD    ResolutionType = "8K UHD"
	ResolutionType16KUHD   ResolutionType = "16K UHD"
)

// Resolution describes a named video resolution.
type Resolution struct {
	Name        ResolutionType `json:"name"`
	AspectRatio AspectRatio    `json:"aspect_ratio"`
	Width       int            `json:"width"`
	Height      int            `json:"height"`
	// Experimental flags resolutions not in common commercial use.
	Experimental bool `json:"experimental"`
}

// MegaPixels returns the pixel count in millions, rounded to two decimal places.
func (r Resolution) MegaPixels() float64 {
	if r.Width <= 0 || r.Height <= 0 {
		return 0
	}
	mp := float64(r.Width*r.Height) / 1_000_000.0
	return math.Round(mp*100) / 100
}

// Size returns the dimensions as a point.
func (r Resolution) Size() image.Point {
	return image.Pt(r.Width, r.Height)
}

// String returns a human-readable summary of the resolution.
func (r Resolution) String() string {
	return fmt.Sprintf("%s (%dx%d, %.2fMP)", r.Name, r.Width, r.Height, r.MegaPixels())
}

// resolutions is ordered by pixel count.
var resolutions = []Resolution{
	{Name: ResolutionTypeNHD, AspectRatio: AspectRatio169, Width: 640, Height: 360},
	{Name: ResolutionTypeVGA, AspectRatio: AspectRatio43, Width: 640, Height: 480},
	{Name: ResolutionTypeFWVGA, AspectRatio: AspectRatio169, Width: 854, Height: 480},
	{Name: ResolutionTypeQHD540, AspectRatio: AspectRatio169, Width: 960, Height: 540},
	{Name: ResolutionTypeHD720p, AspectRatio: AspectRatio169, Width: 1280, Height: 720},
	{Name: ResolutionTypeWXGA, AspectRatio: AspectRatio169, Width: 1366, Height: 768},
	{Name: ResolutionType1MP54, AspectRatio: AspectRatio54, Width: 1280, Height: 1024},
	{Name: ResolutionTypeHDPlus, AspectRatio: AspectRatio169, Width: 1600, Height: 900},
	{Name: ResolutionType2MP43, AspectRatio: AspectRatio43, Width: 1600, Height: 1200},
	{Name: ResolutionTypeFHD1080p, AspectRatio: AspectRatio169, Width: 1920, Height: 1080},
	{Name: ResolutionType3MP43, AspectRatio: AspectRatio43, Width: 2048, Height: 1536},
	{Name: ResolutionTypeQHD1440p, AspectRatio: AspectRatio169, Width: 2560, Height: 1440},
	{Name: ResolutionType4MP169, AspectRatio: AspectRatio169, Width: 2688, Height: 1520},
	{Name: ResolutionTypeQHDPlus, AspectRatio: AspectRatio179, Width: 3200, Height: 1800},
	{Name: ResolutionType6MP32, AspectRatio: AspectRatio32, Width: 3072, Height: 2048},
	{Name: ResolutionType4KUHD, AspectRatio: AspectRatio169, Width: 3840, Height: 2160},
	{Name: ResolutionType12MP, AspectRatio: AspectRatio43, Width: 4000, Height: 3000},
	{Name: ResolutionType5K, AspectRatio: AspectRatio169, Width: 5120, Height: 2880},
	{Name: ResolutionType8KUHD, AspectRatio: AspectRatio169, Width: 7680, Height: 4320},
	{Name: ResolutionType16KUHD, AspectRatio: AspectRatio169, Width: 15360, Height: 8640, Experimental: true},
}

// Resolutions returns every named resolution, smallest first.
func Resolutions() []Resolution {
	return append([]Resolution(nil), resolutions...)
}

// LookupResolution finds the named resolution with exactly the given size.
func LookupResolution(size image.Point) (Resolution, bool) {
	for _, r := range resolutions {
		if r.Width == size.X && r.Height == size.Y {
			return r, true
		}
	}
	return Resolution{}, false
}

// MaxResolution returns the largest resolution in commercial use. Frames and canvases
// beyond it in either dimension are rejected by configuration.
func MaxResolution() Resolution {
	var largest Resolution
	for _, r := range resolutions {
		if !r.Experimental {
			largest = r
		}
	}
	return largest
}

// DescribeSize names size when it matches a known resolution, or formats it as WxH.
func DescribeSize(size image.Point) string {
	if r, ok := LookupResolution(size); ok {
		return string(r.Name)
	}
	return fmt.Sprintf("%dx%d", size.X, size.Y)
}
