package inference

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestNewTensorPool(t *testing.T) {
	_, err := NewTensorPool()
	assert.ErrorIs(t, err, ErrInvalidShape)

	_, err = NewTensorPool(1, 0, 3)
	assert.ErrorIs(t, err, ErrInvalidShape)

	pool, err := NewTensorPool(1, 4, 4, 3)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 4, 4, 3}, pool.Shape())
}

func TestTensorAcquireRelease(t *testing.T) {
	pool, err := NewTensorPool(1, 2, 2, 3)
	require.NoError(t, err)

	a := pool.Acquire()
	b := pool.Acquire()
	assert.Equal(t, int64(2), pool.Outstanding())
	assert.Len(t, a.Data(), 12)
	assert.Equal(t, tensor.Shape{1, 2, 2, 3}, a.Dense().Shape())

	a.Release()
	a.Release()
	assert.Equal(t, int64(1), pool.Outstanding())
	assert.Nil(t, a.Dense())

	b.Release()
	assert.Equal(t, int64(0), pool.Outstanding())
}

func TestWithTensorReleasesOnError(t *testing.T) {
	pool, err := NewTensorPool(1, 2, 2, 3)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = WithTensor(pool.Acquire(), func(d *tensor.Dense) error {
		assert.NotNil(t, d)
		assert.Equal(t, int64(1), pool.Outstanding())
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(0), pool.Outstanding())

	assert.Panics(t, func() {
		_ = WithTensor(pool.Acquire(), func(*tensor.Dense) error {
			panic("model crashed")
		})
	})
	assert.Equal(t, int64(0), pool.Outstanding())
}
