package inference

import (
	"sync"
	"sync/atomic"

	"gorgonia.org/tensor"
)

// TensorPool hands out float32 tensors of one fixed shape and recycles their backing
// storage once released.
type TensorPool struct {
	shape       tensor.Shape
	size        int
	pool        sync.Pool
	outstanding atomic.Int64
}

// NewTensorPool creates a pool of tensors with the given shape.
//
// Arguments:
//   - shape: The tensor dimensions, e.g. 1, 640, 640, 3.
//
// Returns:
//   - *TensorPool: The pool.
//   - error: ErrInvalidShape if any dimension is not positive.
func NewTensorPool(shape ...int) (*TensorPool, error) {
	if len(shape) == 0 {
		return nil, ErrInvalidShape
	}

	size := 1
	for _, d := range shape {
		if d <= 0 {
			return nil, ErrInvalidShape
		}
		size *= d
	}

	p := &TensorPool{
		shape: tensor.Shape(append([]int(nil), shape...)),
		size:  size,
	}
	p.pool.New = func() interface{} {
		backing := make([]float32, size)
		return &backing
	}
	return p, nil
}

// Shape returns a copy of the pooled tensor shape.
func (p *TensorPool) Shape() tensor.Shape {
	return p.shape.Clone()
}

// Acquire returns a tensor owned by the caller until Release. Its contents are undefined.
func (p *TensorPool) Acquire() *Tensor {
	backing := p.pool.Get().(*[]float32)
	p.outstanding.Add(1)

	return &Tensor{
		dense:   tensor.New(tensor.WithShape(p.shape...), tensor.WithBacking(*backing)),
		backing: backing,
		pool:    p,
	}
}

// Outstanding returns the number of acquired tensors not yet released.
func (p *TensorPool) Outstanding() int64 {
	return p.outstanding.Load()
}

// Tensor is a pooled float32 tensor with an explicit owner.
type Tensor struct {
	dense   *tensor.Dense
	backing *[]float32
	pool    *TensorPool
	once    sync.Once
}

// Dense returns the underlying tensor. It must not be used after Release.
func (t *Tensor) Dense() *tensor.Dense {
	return t.dense
}

// Data returns the backing values in row-major order.
func (t *Tensor) Data() []float32 {
	return *t.backing
}

// Release returns the tensor's storage to its pool. Calls after the first do nothing.
func (t *Tensor) Release() {
	t.once.Do(func() {
		t.dense = nil
		t.pool.pool.Put(t.backing)
		t.pool.outstanding.Add(-1)
	})
}

// WithTensor runs fn on t and releases t on every exit path, including panics.
func WithTensor(t *Tensor, fn func(*tensor.Dense) error) error {
	defer t.Release()
	return fn(t.Dense())
}
