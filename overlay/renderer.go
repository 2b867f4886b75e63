package overlay

import (
	"image"
	"image/color"
	"sync/atomic"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/nvr-ai/go-overlay/images"
	"github.com/nvr-ai/go-overlay/models"
	"github.com/nvr-ai/go-overlay/models/postprocess"
	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

// Outcome describes what a Render call did.
type Outcome int

const (
	// Drawn means the surface now shows the cycle's frame and detections.
	Drawn Outcome = iota
	// Stale means a newer cycle superseded this one and nothing was drawn.
	Stale
	// Disposed means the surface was disposed and nothing was drawn.
	Disposed
)

func (o Outcome) String() string {
	switch o {
	case Drawn:
		return "drawn"
	case Stale:
		return "stale"
	case Disposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// DiscardPolicy decides when a finished cycle's render is stale.
type DiscardPolicy int

const (
	// DiscardIfNewerStarted drops a render once any newer cycle has started.
	DiscardIfNewerStarted DiscardPolicy = iota
	// DiscardIfNewerRendered drops a render once a newer cycle has drawn.
	DiscardIfNewerRendered
)

// ParseDiscardPolicy parses "started" or "rendered".
func ParseDiscardPolicy(s string) (DiscardPolicy, error) {
	switch s {
	case "", "started":
		return DiscardIfNewerStarted, nil
	case "rendered":
		return DiscardIfNewerRendered, nil
	default:
		return 0, errors.Errorf("unknown discard policy %q", s)
	}
}

const (
	// DefaultLineWidth is the box stroke width.
	DefaultLineWidth = 2
	// DefaultFontSize is the label font size in points.
	DefaultFontSize = 10
)

var regularFont *truetype.Font

func init() {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
	regularFont = f
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithLineWidth overrides the box stroke width.
func WithLineWidth(width float64) RendererOption {
	return func(r *Renderer) {
		r.lineWidth = width
	}
}

// WithFontSize overrides the label font size.
func WithFontSize(size float64) RendererOption {
	return func(r *Renderer) {
		r.fontSize = size
	}
}

// WithDiscardPolicy overrides when stale renders are dropped.
func WithDiscardPolicy(policy DiscardPolicy) RendererOption {
	return func(r *Renderer) {
		r.policy = policy
	}
}

// Renderer paints detections onto a Surface.
type Renderer struct {
	surface   *Surface
	colors    *models.ClassColorMap
	lineWidth float64
	fontSize  float64
	face      font.Face
	policy    DiscardPolicy

	// lastDrawn is guarded by the surface lock.
	lastDrawn uint64

	hasDetections atomic.Bool
	drawn         atomic.Int64
	stale         atomic.Int64
}

// NewRenderer creates a Renderer.
//
// Arguments:
//   - surface: The surface to draw on.
//   - colors: The class color mapping.
//   - opts: Optional overrides.
//
// Returns:
//   - *Renderer: The renderer.
//   - error: ErrSurfaceUnavailable for a nil or disposed surface, or an error for a nil color map.
func NewRenderer(surface *Surface, colors *models.ClassColorMap, opts ...RendererOption) (*Renderer, error) {
	if surface == nil || surface.Disposed() {
		return nil, ErrSurfaceUnavailable
	}
	if colors == nil {
		return nil, errors.New("class color map is required")
	}

	r := &Renderer{
		surface:   surface,
		colors:    colors,
		lineWidth: DefaultLineWidth,
		fontSize:  DefaultFontSize,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.face = truetype.NewFace(regularFont, &truetype.Options{Size: r.fontSize})

	return r, nil
}

// Render clears the surface, draws background, then every detection in order.
//
// Each detection is stroked in its class color with a "(NN.N%)" label above it. Nothing is
// drawn if the surface is disposed or token is stale under the discard policy.
//
// Arguments:
//   - token: The cycle's token.
//   - background: The frame the detections were computed on. Nil leaves the layer transparent.
//   - detections: The detections, in model row order.
//
// Returns:
//   - Outcome: What the call did.
func (r *Renderer) Render(token Token, background image.Image, detections []postprocess.Detection) Outcome {
	outcome := Disposed

	r.surface.Draw(func(dc *gg.Context) {
		if r.isStale(token) {
			outcome = Stale
			return
		}

		dc.SetColor(color.Transparent)
		dc.Clear()

		if !images.Empty(background) {
			bg := images.Stretch(background, dc.Width(), dc.Height())
			dc.DrawImage(bg, 0, 0)
		}

		dc.SetFontFace(r.face)
		dc.SetLineWidth(r.lineWidth)
		for _, d := range detections {
			r.drawDetection(dc, d)
		}

		if token.Generation() > r.lastDrawn {
			r.lastDrawn = token.Generation()
		}
		r.hasDetections.Store(len(detections) > 0)
		outcome = Drawn
	})

	switch outcome {
	case Drawn:
		r.drawn.Add(1)
	case Stale:
		r.stale.Add(1)
	}

	return outcome
}

func (r *Renderer) isStale(token Token) bool {
	switch r.policy {
	case DiscardIfNewerRendered:
		return token.Generation() < r.lastDrawn
	default:
		return token.Stale()
	}
}

func (r *Renderer) drawDetection(dc *gg.Context, d postprocess.Detection) {
	dc.SetColor(r.colors.Resolve(d.ClassID))

	b := d.Box
	dc.DrawRectangle(float64(b.X), float64(b.Y), float64(b.Width), float64(b.Height))
	dc.Stroke()

	x, y := LabelPosition(b)
	dc.DrawString(LabelText(d.Score), x, y)
}

// HasDetections reports whether the last drawn cycle had at least one detection.
func (r *Renderer) HasDetections() bool {
	return r.hasDetections.Load()
}

// RenderStats counts Render outcomes.
type RenderStats struct {
	Drawn int64 `json:"drawn"`
	Stale int64 `json:"stale"`
}

// Stats returns the render counters.
func (r *Renderer) Stats() RenderStats {
	return RenderStats{Drawn: r.drawn.Load(), Stale: r.stale.Load()}
}

// Surface returns the surface the renderer draws on.
func (r *Renderer) Surface() *Surface {
	return r.surface
}
