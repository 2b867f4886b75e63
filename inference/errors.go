package inference

import "github.com/pkg/errors"

var (
	// ErrFrameUnavailable is returned when there is no frame to preprocess.
	ErrFrameUnavailable = errors.New("frame unavailable")
	// ErrInvalidShape is returned for non-positive tensor or canvas dimensions.
	ErrInvalidShape = errors.New("invalid shape")
	// ErrModelLoad wraps any failure of the model loader.
	ErrModelLoad = errors.New("model load failed")
	// ErrModelNotReady is returned by Infer before a model is set.
	ErrModelNotReady = errors.New("model not ready")
	// ErrModelAlreadySet is returned when a second model is set on an Adapter.
	ErrModelAlreadySet = errors.New("model already set")
	// ErrNilModel is returned when a nil model is set on an Adapter.
	ErrNilModel = errors.New("nil model")
	// ErrInferenceFailure wraps any failure of a model execution.
	ErrInferenceFailure = errors.New("inference failed")
)

// kindError tags an underlying failure with one of the sentinels above.
type kindError struct {
	kind  error
	cause error
}

func (e *kindError) Error() string {
	return e.kind.Error() + ": " + e.cause.Error()
}

func (e *kindError) Is(target error) bool {
	return target == e.kind
}

func (e *kindError) Unwrap() error {
	return e.cause
}

func withKind(kind, cause error) error {
	return errors.WithStack(&kindError{kind: kind, cause: cause})
}
