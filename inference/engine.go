// Package inference - Frame preprocessing and the model adapter.
package inference

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gorgonia.org/tensor"
)

// Model defines the contract for a loaded detection model.
type Model interface {
	// Execute runs the model on one input tensor and returns its raw output.
	Execute(ctx context.Context, input *tensor.Dense) (*tensor.Dense, error)
	// Close releases the model's native resources.
	Close() error
}

// Loader asynchronously loads a model.
type Loader func(ctx context.Context) (Model, error)

// Stats summarizes the inference calls made through an Adapter.
type Stats struct {
	Inferences int64         `json:"inferences"`
	Failures   int64         `json:"failures"`
	TotalTime  time.Duration `json:"total_time"`
	LastTime   time.Duration `json:"last_time"`
}

// Average returns the mean duration of the recorded inferences.
func (s Stats) Average() time.Duration {
	if s.Inferences == 0 {
		return 0
	}
	return s.TotalTime / time.Duration(s.Inferences)
}

// Adapter wraps the single model shared by every cycle.
//
// The model is set exactly once and never swapped. Infer calls are serialized so at
// most one execution is in progress at any time.
type Adapter struct {
	clock clock.Clock

	setMu sync.Mutex
	model Model
	ready chan struct{}

	inferMu sync.Mutex
	statsMu sync.RWMutex
	stats   Stats
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithAdapterClock sets the clock used to time inferences.
func WithAdapterClock(c clock.Clock) AdapterOption {
	return func(a *Adapter) {
		a.clock = c
	}
}

// NewAdapter creates an Adapter without a model.
func NewAdapter(opts ...AdapterOption) *Adapter {
	a := &Adapter{clock: clock.New(), ready: make(chan struct{})}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Set installs the model.
//
// Arguments:
//   - m: The loaded model.
//
// Returns:
//   - error: ErrNilModel for a nil model, ErrModelAlreadySet if a model was already set.
func (a *Adapter) Set(m Model) error {
	if m == nil {
		return ErrNilModel
	}

	a.setMu.Lock()
	defer a.setMu.Unlock()

	if a.model != nil {
		return ErrModelAlreadySet
	}
	a.model = m
	close(a.ready)

	return nil
}

// Load runs the loader and installs the model it returns.
//
// Load returns as soon as ctx is done, even if the loader ignores ctx. A model the
// loader delivers after that is closed.
//
// Arguments:
//   - ctx: Passed through to the loader.
//   - load: The loader.
//
// Returns:
//   - error: ErrModelLoad wrapping the loader failure or ctx's error, or a Set error.
func (a *Adapter) Load(ctx context.Context, load Loader) error {
	if load == nil {
		return errors.Wrap(ErrModelLoad, "no loader")
	}

	type result struct {
		model Model
		err   error
	}
	loaded := make(chan result, 1)
	go func() {
		m, err := load(ctx)
		loaded <- result{model: m, err: err}
	}()

	var res result
	select {
	case res = <-loaded:
	case <-ctx.Done():
		go func() {
			if late := <-loaded; late.model != nil {
				_ = late.model.Close()
			}
		}()
		return withKind(ErrModelLoad, ctx.Err())
	}

	if res.err != nil {
		return withKind(ErrModelLoad, res.err)
	}
	if res.model == nil {
		return errors.Wrap(ErrModelLoad, "loader returned no model")
	}

	if err := a.Set(res.model); err != nil {
		return multierr.Append(err, res.model.Close())
	}
	return nil
}

// Ready is closed once a model is set.
func (a *Adapter) Ready() <-chan struct{} {
	return a.ready
}

// Loaded reports whether a model is set.
func (a *Adapter) Loaded() bool {
	select {
	case <-a.ready:
		return true
	default:
		return false
	}
}

// Infer executes the model on input.
//
// There are no retries: a failing execution is returned to the caller wrapped in
// ErrInferenceFailure.
//
// Arguments:
//   - ctx: Passed through to the model.
//   - input: The preprocessed input tensor.
//
// Returns:
//   - *tensor.Dense: The raw model output.
//   - error: ErrModelNotReady before Set, ErrInferenceFailure on any execution failure.
func (a *Adapter) Infer(ctx context.Context, input *tensor.Dense) (*tensor.Dense, error) {
	if !a.Loaded() {
		return nil, ErrModelNotReady
	}
	if input == nil {
		return nil, errors.Wrap(ErrInferenceFailure, "nil input")
	}

	a.inferMu.Lock()
	defer a.inferMu.Unlock()

	start := a.clock.Now()
	out, err := a.model.Execute(ctx, input)
	elapsed := a.clock.Since(start)

	if err == nil && out == nil {
		err = errors.New("model returned no output")
	}
	a.record(elapsed, err)

	if err != nil {
		return nil, withKind(ErrInferenceFailure, err)
	}
	return out, nil
}

func (a *Adapter) record(elapsed time.Duration, err error) {
	a.statsMu.Lock()
	defer a.statsMu.Unlock()

	if err != nil {
		a.stats.Failures++
		return
	}
	a.stats.Inferences++
	a.stats.TotalTime += elapsed
	a.stats.LastTime = elapsed
}

// Stats returns a snapshot of the inference statistics.
func (a *Adapter) Stats() Stats {
	a.statsMu.RLock()
	defer a.statsMu.RUnlock()
	return a.stats
}

// Close closes the model, if one was set. It waits for an in-progress inference.
func (a *Adapter) Close() error {
	a.setMu.Lock()
	m := a.model
	a.setMu.Unlock()

	if m == nil {
		return nil
	}

	a.inferMu.Lock()
	defer a.inferMu.Unlock()
	return m.Close()
}

// ModelFunc adapts a function to the Model interface. Close does nothing.
type ModelFunc func(ctx context.Context, input *tensor.Dense) (*tensor.Dense, error)

// Execute calls f.
func (f ModelFunc) Execute(ctx context.Context, input *tensor.Dense) (*tensor.Dense, error) {
	return f(ctx, input)
}

// Close implements Model.
func (f ModelFunc) Close() error {
	return nil
}

// StaticLoader returns a Loader that yields m.
func StaticLoader(m Model) Loader {
	return func(context.Context) (Model, error) {
		return m, nil
	}
}
