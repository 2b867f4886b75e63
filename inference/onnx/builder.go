package onnx

import (
	"context"
	"os"
	"strings"

	"github.com/nvr-ai/go-overlay/config"
	"github.com/nvr-ai/go-overlay/inference"
	"github.com/nvr-ai/go-overlay/inference/providers"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// ModelBuilder builds a Model with a fluent API. The first error sticks and is returned
// by Build.
type ModelBuilder struct {
	path        string
	libPath     string
	inputNames  []string
	outputNames []string
	layout      Layout
	options     providers.Options
	err         error
}

// NewModelBuilder creates a new model builder.
//
// Returns:
//   - *ModelBuilder: The model builder, defaulting to NHWC input on the CPU provider.
func NewModelBuilder() *ModelBuilder {
	return &ModelBuilder{
		inputNames:  []string{"images"},
		outputNames: []string{"output0"},
		layout:      LayoutNHWC,
		options:     providers.Options{Backend: providers.CPUProviderBackend},
	}
}

// WithModelPath sets the ONNX model file.
//
// Arguments:
//   - path: The model file path.
//
// Returns:
//   - *ModelBuilder: The model builder.
func (b *ModelBuilder) WithModelPath(path string) *ModelBuilder {
	if b.HasError() {
		return b
	}
	if path == "" {
		b.err = errors.New("model path is required")
		return b
	}
	b.path = path
	return b
}

// WithSharedLibraryPath sets the ONNX Runtime shared library. Empty keeps the platform
// default.
func (b *ModelBuilder) WithSharedLibraryPath(path string) *ModelBuilder {
	b.libPath = path
	return b
}

// WithNames sets the input and output tensor names.
func (b *ModelBuilder) WithNames(input, output string) *ModelBuilder {
	if b.HasError() {
		return b
	}
	if input == "" || output == "" {
		b.err = errors.New("input and output names are required")
		return b
	}
	b.inputNames = []string{input}
	b.outputNames = []string{output}
	return b
}

// WithLayout sets the input layout the model expects.
func (b *ModelBuilder) WithLayout(layout string) *ModelBuilder {
	if b.HasError() {
		return b
	}
	switch l := Layout(strings.ToLower(layout)); l {
	case LayoutNHWC, LayoutNCHW:
		b.layout = l
	case "":
		b.layout = LayoutNHWC
	default:
		b.err = errors.Errorf("unsupported input layout %q", layout)
	}
	return b
}

// WithProvider sets the execution provider options.
func (b *ModelBuilder) WithProvider(opts providers.Options) *ModelBuilder {
	if b.HasError() {
		return b
	}
	backend, err := providers.ParseBackend(string(opts.Backend))
	if err != nil {
		b.err = err
		return b
	}
	opts.Backend = backend
	b.options = opts
	return b
}

// HasError checks if the model builder has errors.
func (b *ModelBuilder) HasError() bool {
	return b.err != nil
}

// Build initializes the ONNX Runtime environment and creates the session.
//
// Order of operations:
//  1. Model file check.
//  2. Environment setup: loads the native library once per process.
//  3. Session options: threading, optimization level and execution provider.
//  4. Session creation: a dynamic session, so output shapes are taken from the model.
//
// Returns:
//   - *Model: The model, owned by the caller.
//   - error: The first builder error, or any environment or session failure.
func (b *ModelBuilder) Build() (*Model, error) {
	if b.HasError() {
		return nil, b.err
	}
	if b.path == "" {
		return nil, errors.New("model path is required")
	}
	if _, err := os.Stat(b.path); err != nil {
		return nil, errors.Wrapf(err, "model %s", b.path)
	}

	if err := providers.InitializeEnvironment(b.libPath); err != nil {
		return nil, err
	}

	options, err := providers.SessionOptions(b.options)
	if err != nil {
		return nil, err
	}
	defer options.Destroy()

	s, err := ort.NewDynamicAdvancedSession(b.path, b.inputNames, b.outputNames, options)
	if err != nil {
		return nil, errors.Wrapf(err, "creating session for %s", b.path)
	}

	return &Model{
		session: s,
		layout:  b.layout,
		path:    b.path,
	}, nil
}

// NewLoader returns a Loader that builds a Model from configuration.
//
// Arguments:
//   - cfg: The model configuration.
//
// Returns:
//   - inference.Loader: Builds the model when called. The context is checked up front;
//     Adapter.Load stops waiting for a build that outlives it.
func NewLoader(cfg config.Model) inference.Loader {
	return func(ctx context.Context) (inference.Model, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		b := NewModelBuilder().
			WithModelPath(cfg.Path).
			WithSharedLibraryPath(cfg.SharedLibraryPath).
			WithLayout(cfg.InputLayout).
			WithProvider(providers.Options{
				Backend:           providers.ProviderBackend(cfg.Backend),
				DeviceID:          cfg.DeviceID,
				IntraOpNumThreads: cfg.IntraOpThreads,
				InterOpNumThreads: cfg.InterOpThreads,
			})
		if len(cfg.InputNames) > 0 && len(cfg.OutputNames) > 0 {
			b = b.WithNames(cfg.InputNames[0], cfg.OutputNames[0])
		}

		m, err := b.Build()
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}
