// Package onnx - ONNX Runtime backed detection model.
package onnx

import (
	"context"
	"sync"

	"github.com/nvr-ai/go-overlay/inference"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"
)

// Layout is the memory layout the model expects for its image input.
type Layout string

const (
	// LayoutNHWC is [batch, height, width, channels], the preprocessor's native layout.
	LayoutNHWC Layout = "nhwc"
	// LayoutNCHW is [batch, channels, height, width].
	LayoutNCHW Layout = "nchw"
)

// session is the part of ort.DynamicAdvancedSession the model uses.
type session interface {
	Run(inputs, outputs []ort.Value) error
	Destroy() error
}

// Model runs a single-input, single-output detection model through ONNX Runtime.
type Model struct {
	mu      sync.Mutex
	session session
	layout  Layout
	path    string
}

var _ inference.Model = (*Model)(nil)

// Path returns the model file the session was created from.
func (m *Model) Path() string {
	return m.path
}

// Execute runs the model on one input tensor.
//
// The input and output native tensors are destroyed before Execute returns, on every path.
//
// Arguments:
//   - ctx: Checked before the native call; a running call cannot be interrupted.
//   - input: A float32 NHWC tensor.
//
// Returns:
//   - *tensor.Dense: A float32 copy of the model output.
//   - error: An error if the input is not float32, the session is closed, or the run fails.
func (m *Model) Execute(ctx context.Context, input *tensor.Dense) (*tensor.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	in, err := toLayout(input, m.layout)
	if err != nil {
		return nil, err
	}

	data, ok := in.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("input dtype %v, want float32", in.Dtype())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil, errors.New("model is closed")
	}

	inputTensor, err := ort.NewTensor(toORTShape(in.Shape()), data)
	if err != nil {
		return nil, errors.Wrap(err, "creating input tensor")
	}
	defer inputTensor.Destroy()

	// A nil output is allocated by the runtime with whatever shape the model produces.
	outputs := []ort.Value{nil}
	if err := m.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, errors.Wrap(err, "running session")
	}
	defer func() {
		if outputs[0] != nil {
			outputs[0].Destroy()
		}
	}()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, errors.Errorf("output is %T, want float32 tensor", outputs[0])
	}

	values := append([]float32(nil), out.GetData()...)
	return tensor.New(
		tensor.WithShape(fromORTShape(out.GetShape())...),
		tensor.WithBacking(values),
	), nil
}

// Close destroys the native session. Calls after the first do nothing.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil
	}
	err := m.session.Destroy()
	m.session = nil

	return errors.Wrap(err, "destroying ORT session")
}

// toLayout returns input in the requested layout. NHWC input is returned unchanged.
func toLayout(input *tensor.Dense, layout Layout) (*tensor.Dense, error) {
	if input == nil {
		return nil, errors.New("nil input")
	}
	if layout != LayoutNCHW {
		return input, nil
	}
	if input.Dims() != 4 {
		return nil, errors.Errorf("NCHW transpose needs a 4-d input, got shape %v", input.Shape())
	}

	t, ok := input.Clone().(*tensor.Dense)
	if !ok {
		return nil, errors.New("cloning input")
	}
	if err := t.T(0, 3, 1, 2); err != nil {
		return nil, errors.Wrap(err, "transposing input")
	}
	if err := t.Transpose(); err != nil {
		return nil, errors.Wrap(err, "materializing transpose")
	}

	return t, nil
}

func toORTShape(s tensor.Shape) ort.Shape {
	dims := make([]int64, len(s))
	for i, d := range s {
		dims[i] = int64(d)
	}
	return ort.NewShape(dims...)
}

func fromORTShape(s ort.Shape) []int {
	dims := make([]int, len(s))
	for i, d := range s {
		dims[i] = int(d)
	}
	return dims
}
