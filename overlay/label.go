package overlay

import (
	"fmt"

	"github.com/nvr-ai/go-overlay/images"
)

const (
	// LabelOffset is the gap between a label's baseline and the top of its box.
	LabelOffset = 5
	// LabelMinY is the lowest baseline used for boxes near the top edge.
	LabelMinY = 10
)

// LabelText formats a score as a percentage with one decimal, e.g. "(90.0%)".
func LabelText(score float32) string {
	return fmt.Sprintf("(%.1f%%)", float64(score)*100)
}

// LabelPosition returns the baseline origin of a box's label: just above the box, or
// clamped to LabelMinY when the box is within LabelMinY of the top edge.
func LabelPosition(box images.Box) (float64, float64) {
	x := float64(box.X)
	if box.Y > LabelMinY {
		return x, float64(box.Y) - LabelOffset
	}
	return x, LabelMinY
}
