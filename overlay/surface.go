// Package overlay - Draws detections onto a transparent layer aligned with the video.
package overlay

import (
	"image"
	"sync"

	"github.com/fogleman/gg"
	"github.com/nvr-ai/go-overlay/images"
	"github.com/pkg/errors"
)

// ErrSurfaceUnavailable is returned when a drawing surface cannot be acquired.
var ErrSurfaceUnavailable = errors.New("drawing surface unavailable")

// Surface is a 2D drawing context shared by every cycle.
//
// All drawing happens under the surface lock. Once disposed, drawing is a no-op.
type Surface struct {
	mu       sync.Mutex
	dc       *gg.Context
	disposed bool
}

// NewSurface creates a transparent surface.
//
// Arguments:
//   - width: The surface width in pixels.
//   - height: The surface height in pixels.
//
// Returns:
//   - *Surface: The surface.
//   - error: ErrSurfaceUnavailable if either dimension is not positive.
func NewSurface(width, height int) (*Surface, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Wrapf(ErrSurfaceUnavailable, "size %dx%d", width, height)
	}
	return &Surface{dc: gg.NewContext(width, height)}, nil
}

// Size returns the surface dimensions.
func (s *Surface) Size() image.Point {
	return image.Pt(s.dc.Width(), s.dc.Height())
}

// Draw runs fn with exclusive access to the drawing context.
//
// Returns:
//   - bool: False, without calling fn, if the surface has been disposed.
func (s *Surface) Draw(fn func(dc *gg.Context)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return false
	}
	fn(s.dc)
	return true
}

// Snapshot returns a copy of the current surface contents.
func (s *Surface) Snapshot() (image.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return nil, false
	}
	return images.Clone(s.dc.Image()), true
}

// Dispose releases the surface. Later draws are ignored. Calls after the first do nothing.
func (s *Surface) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposed = true
}

// Disposed reports whether Dispose has been called.
func (s *Surface) Disposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}
