package inference

import (
	"image"
	"sync"

	"github.com/nvr-ai/go-overlay/images"
)

// Channels is the number of color channels fed to the model.
const Channels = 3

// Preprocessor turns video frames into normalized NHWC tensors.
//
// Every frame is stretched into a fixed-size backing canvas, overwriting the previous
// frame, and the canvas is read back as float32 values in [0,1].
type Preprocessor struct {
	mu     sync.Mutex
	canvas *image.RGBA
	pool   *TensorPool
}

// NewPreprocessor creates a Preprocessor.
//
// Arguments:
//   - size: The canvas and tensor width and height.
//   - pool: A pool of [1, size.Y, size.X, 3] tensors.
//
// Returns:
//   - *Preprocessor: The preprocessor.
//   - error: ErrInvalidShape if the size is empty or the pool shape does not match.
func NewPreprocessor(size image.Point, pool *TensorPool) (*Preprocessor, error) {
	if size.X <= 0 || size.Y <= 0 || pool == nil {
		return nil, ErrInvalidShape
	}
	if !pool.Shape().Eq(InputShape(size)) {
		return nil, ErrInvalidShape
	}

	return &Preprocessor{
		canvas: image.NewRGBA(image.Rect(0, 0, size.X, size.Y)),
		pool:   pool,
	}, nil
}

// InputShape returns the NHWC tensor shape for a canvas size.
func InputShape(size image.Point) []int {
	return []int{1, size.Y, size.X, Channels}
}

// Size returns the canvas size.
func (p *Preprocessor) Size() image.Point {
	return p.canvas.Rect.Size()
}

// Process captures frame into the canvas and builds the model input from it.
//
// The caller owns the returned tensor and must release it.
//
// Arguments:
//   - frame: The current video frame.
//
// Returns:
//   - *Tensor: A [1, H, W, 3] tensor of channel/255 values.
//   - image.Image: A copy of the canvas as it was captured.
//   - error: ErrFrameUnavailable if frame is nil or empty.
func (p *Preprocessor) Process(frame image.Image) (*Tensor, image.Image, error) {
	if images.Empty(frame) {
		return nil, nil, ErrFrameUnavailable
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	images.StretchInto(p.canvas, frame)

	t := p.pool.Acquire()
	data := t.Data()

	pix := p.canvas.Pix
	size := p.canvas.Rect.Size()
	stride := p.canvas.Stride
	i := 0
	for y := 0; y < size.Y; y++ {
		row := pix[y*stride : y*stride+size.X*4]
		for x := 0; x < len(row); x += 4 {
			data[i+0] = float32(row[x+0]) / 255.0
			data[i+1] = float32(row[x+1]) / 255.0
			data[i+2] = float32(row[x+2]) / 255.0
			i += Channels
		}
	}

	snapshot := image.NewRGBA(p.canvas.Rect)
	copy(snapshot.Pix, p.canvas.Pix)

	return t, snapshot, nil
}

// Canvas returns a copy of the backing canvas.
func (p *Preprocessor) Canvas() *image.RGBA {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := image.NewRGBA(p.canvas.Rect)
	copy(out.Pix, p.canvas.Pix)
	return out
}
