// Package postprocess - Converts raw detector rows into pixel-space detections.
package postprocess

import "github.com/nvr-ai/go-overlay/images"

// Offsets of the fields in a raw detection row.
const (
	OffsetXCenter = 0
	OffsetYCenter = 1
	OffsetWidth   = 2
	OffsetHeight  = 3
	OffsetScore   = 4
	OffsetClassID = 5

	// RowWidth is the minimum number of values a row must carry.
	RowWidth = 6
)

// Detection represents a single accepted detection.
type Detection struct {
	// The bounding box in canvas pixel space.
	Box images.Box `json:"box"`
	// The confidence score in [0,1].
	Score float32 `json:"score"`
	// The predicted class index.
	ClassID int `json:"class_id"`
}
