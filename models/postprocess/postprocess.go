package postprocess

import (
	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-overlay/images"
	"github.com/nvr-ai/go-overlay/models"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// ErrUnexpectedOutput is returned when the model output does not have the row layout.
var ErrUnexpectedOutput = errors.New("unexpected model output layout")

// Rows splits a model output tensor into raw detection rows.
//
// The tensor must hold float32 values shaped [1, N, K] or [N, K] with K >= RowWidth.
// Rows are views over the tensor's backing data and are not copied.
//
// Arguments:
//   - out: The raw model output.
//
// Returns:
//   - [][]float32: N rows of K values each.
//   - error: ErrUnexpectedOutput if the dtype or shape does not match.
func Rows(out *tensor.Dense) ([][]float32, error) {
	if out == nil {
		return nil, errors.Wrap(ErrUnexpectedOutput, "nil output")
	}

	if out.Dtype() != tensor.Float32 {
		return nil, errors.Wrapf(ErrUnexpectedOutput, "dtype %v, want float32", out.Dtype())
	}

	shape := out.Shape()
	var n, k int
	switch {
	case len(shape) == 3 && shape[0] == 1:
		n, k = shape[1], shape[2]
	case len(shape) == 2:
		n, k = shape[0], shape[1]
	default:
		return nil, errors.Wrapf(ErrUnexpectedOutput, "shape %v, want [1 N K]", shape)
	}

	if k < RowWidth {
		return nil, errors.Wrapf(ErrUnexpectedOutput, "rows carry %d values, want at least %d", k, RowWidth)
	}

	data, ok := out.Data().([]float32)
	if !ok || len(data) < n*k {
		return nil, errors.Wrapf(ErrUnexpectedOutput, "backing data does not cover shape %v", shape)
	}

	rows := make([][]float32, n)
	for i := range rows {
		rows[i] = data[i*k : (i+1)*k : (i+1)*k]
	}

	return rows, nil
}

// Postprocess converts raw rows into detections.
//
// Rows are visited in order and every row whose score is at or above threshold yields
// one detection; the output preserves row order. Overlapping boxes are not merged and
// zero or negative sized boxes are kept. Rows shorter than RowWidth are skipped.
//
// Arguments:
//   - rows: Raw rows laid out as [xc, yc, w, h, score, classId, ...], normalized.
//   - threshold: The minimum accepted score.
//   - canvasWidth: The width of the pixel space to scale into.
//   - canvasHeight: The height of the pixel space to scale into.
//
// Returns:
//   - []Detection: The accepted detections, never nil.
func Postprocess(rows [][]float32, threshold float32, canvasWidth, canvasHeight int) []Detection {
	detections := make([]Detection, 0, len(rows))

	for _, row := range rows {
		if len(row) < RowWidth {
			continue
		}

		score := row[OffsetScore]
		// NaN scores compare false against everything and must not pass.
		if math32.IsNaN(score) || score < threshold {
			continue
		}

		detections = append(detections, Detection{
			Box: images.BoxFromCenter(
				row[OffsetXCenter],
				row[OffsetYCenter],
				row[OffsetWidth],
				row[OffsetHeight],
				canvasWidth,
				canvasHeight,
			),
			Score:   score,
			ClassID: classID(row[OffsetClassID]),
		})
	}

	return detections
}

// classID converts a raw class value to an index. Values that are not non-negative
// whole numbers become models.UnknownClassID so they resolve to the fallback color.
func classID(v float32) int {
	if math32.IsNaN(v) || math32.IsInf(v, 0) || v < 0 || v >= 1<<24 || math32.Trunc(v) != v {
		return models.UnknownClassID
	}
	return int(v)
}

// Config configures a Postprocessor.
type Config struct {
	// Threshold is the minimum accepted score.
	Threshold float32
	// CanvasWidth and CanvasHeight define the output pixel space.
	CanvasWidth  int
	CanvasHeight int
	// TargetClasses lists the classes of interest.
	TargetClasses models.TargetClasses
	// FilterTargetClasses drops detections outside TargetClasses when set.
	FilterTargetClasses bool
}

// Postprocessor applies a fixed configuration to raw model output.
type Postprocessor struct {
	cfg Config
}

// NewPostprocessor creates a Postprocessor.
//
// Arguments:
//   - cfg: The configuration, copied at construction.
//
// Returns:
//   - *Postprocessor: The postprocessor.
//   - error: An error if the canvas is empty or the threshold lies outside [0,1].
func NewPostprocessor(cfg Config) (*Postprocessor, error) {
	if cfg.CanvasWidth <= 0 || cfg.CanvasHeight <= 0 {
		return nil, errors.Errorf("canvas must be positive, got %dx%d", cfg.CanvasWidth, cfg.CanvasHeight)
	}
	if math32.IsNaN(cfg.Threshold) || cfg.Threshold < 0 || cfg.Threshold > 1 {
		return nil, errors.Errorf("threshold must be within [0,1], got %v", cfg.Threshold)
	}

	cfg.TargetClasses = append(models.TargetClasses(nil), cfg.TargetClasses...)
	return &Postprocessor{cfg: cfg}, nil
}

// Config returns a copy of the postprocessor's configuration.
func (p *Postprocessor) Config() Config {
	cfg := p.cfg
	cfg.TargetClasses = append(models.TargetClasses(nil), p.cfg.TargetClasses...)
	return cfg
}

// Process converts rows into detections and applies the optional target class filter.
func (p *Postprocessor) Process(rows [][]float32) []Detection {
	detections := Postprocess(rows, p.cfg.Threshold, p.cfg.CanvasWidth, p.cfg.CanvasHeight)
	if !p.cfg.FilterTargetClasses {
		return detections
	}

	kept := detections[:0]
	for _, d := range detections {
		if p.cfg.TargetClasses.Contains(d.ClassID) {
			kept = append(kept, d)
		}
	}
	return kept
}

// ProcessTensor splits a model output tensor into rows and processes them.
func (p *Postprocessor) ProcessTensor(out *tensor.Dense) ([]Detection, error) {
	rows, err := Rows(out)
	if err != nil {
		return nil, err
	}
	return p.Process(rows), nil
}
