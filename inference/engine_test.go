package inference

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

type closingModel struct {
	ModelFunc
	closed atomic.Int32
}

func (m *closingModel) Close() error {
	m.closed.Add(1)
	return nil
}

func echoModel() ModelFunc {
	return func(context.Context, *tensor.Dense) (*tensor.Dense, error) {
		return tensor.New(tensor.WithShape(1, 1, 6), tensor.WithBacking([]float32{0.5, 0.5, 0.2, 0.2, 0.9, 0})), nil
	}
}

func input() *tensor.Dense {
	return tensor.New(tensor.WithShape(1, 2, 2, 3), tensor.WithBacking(make([]float32, 12)))
}

func TestAdapterSetOnce(t *testing.T) {
	a := NewAdapter()
	assert.False(t, a.Loaded())

	assert.ErrorIs(t, a.Set(nil), ErrNilModel)
	require.NoError(t, a.Set(echoModel()))
	assert.True(t, a.Loaded())
	assert.ErrorIs(t, a.Set(echoModel()), ErrModelAlreadySet)

	select {
	case <-a.Ready():
	default:
		t.Fatal("ready channel not closed")
	}
}

func TestAdapterInferBeforeReady(t *testing.T) {
	a := NewAdapter()
	_, err := a.Infer(context.Background(), input())
	assert.ErrorIs(t, err, ErrModelNotReady)
}

func TestAdapterInfer(t *testing.T) {
	a := NewAdapter()
	require.NoError(t, a.Set(echoModel()))

	out, err := a.Infer(context.Background(), input())
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 1, 6}, out.Shape())
	assert.Equal(t, int64(1), a.Stats().Inferences)

	_, err = a.Infer(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInferenceFailure)
}

func TestAdapterInferFailure(t *testing.T) {
	boom := errors.New("backend lost")
	a := NewAdapter()
	require.NoError(t, a.Set(ModelFunc(func(context.Context, *tensor.Dense) (*tensor.Dense, error) {
		return nil, boom
	})))

	_, err := a.Infer(context.Background(), input())
	assert.ErrorIs(t, err, ErrInferenceFailure)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "backend lost")

	stats := a.Stats()
	assert.Equal(t, int64(0), stats.Inferences)
	assert.Equal(t, int64(1), stats.Failures)
	assert.Equal(t, time.Duration(0), stats.Average())
}

func TestAdapterInferNilOutput(t *testing.T) {
	a := NewAdapter()
	require.NoError(t, a.Set(ModelFunc(func(context.Context, *tensor.Dense) (*tensor.Dense, error) {
		return nil, nil
	})))

	_, err := a.Infer(context.Background(), input())
	assert.ErrorIs(t, err, ErrInferenceFailure)
}

func TestAdapterSerializesInference(t *testing.T) {
	var active, peak atomic.Int32
	a := NewAdapter()
	require.NoError(t, a.Set(ModelFunc(func(context.Context, *tensor.Dense) (*tensor.Dense, error) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		active.Add(-1)
		return echoModel()(context.Background(), nil)
	})))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.Infer(context.Background(), input())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), peak.Load())
	assert.Equal(t, int64(8), a.Stats().Inferences)
}

func TestAdapterLoad(t *testing.T) {
	m := &closingModel{ModelFunc: echoModel()}
	a := NewAdapter()
	require.NoError(t, a.Load(context.Background(), StaticLoader(m)))
	assert.True(t, a.Loaded())

	// A second load is rejected and the extra model is closed.
	extra := &closingModel{ModelFunc: echoModel()}
	err := a.Load(context.Background(), StaticLoader(extra))
	assert.ErrorIs(t, err, ErrModelAlreadySet)
	assert.Equal(t, int32(1), extra.closed.Load())

	require.NoError(t, a.Close())
	assert.Equal(t, int32(1), m.closed.Load())
}

func TestAdapterLoadFailure(t *testing.T) {
	a := NewAdapter()

	err := a.Load(context.Background(), func(context.Context) (Model, error) {
		return nil, errors.New("file not found")
	})
	assert.ErrorIs(t, err, ErrModelLoad)
	assert.Contains(t, err.Error(), "file not found")
	assert.False(t, a.Loaded())

	assert.ErrorIs(t, a.Load(context.Background(), nil), ErrModelLoad)
	assert.ErrorIs(t, a.Load(context.Background(), StaticLoader(nil)), ErrModelLoad)
	assert.NoError(t, a.Close())
}

func TestAdapterLoadReturnsWhenCancelled(t *testing.T) {
	release := make(chan struct{})
	late := &closingModel{ModelFunc: echoModel()}
	stubborn := func(context.Context) (Model, error) {
		<-release
		return late, nil
	}

	a := NewAdapter()
	ctx, cancel := context.WithCancel(context.Background())

	errs := make(chan error, 1)
	go func() { errs <- a.Load(ctx, stubborn) }()
	cancel()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrModelLoad)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Load did not return after cancellation")
	}
	assert.False(t, a.Loaded())

	close(release)
	require.Eventually(t, func() bool { return late.closed.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.False(t, a.Loaded(), "a model delivered after cancellation is not installed")
}

func TestAdapterInferTimedByClock(t *testing.T) {
	mock := clock.NewMock()
	a := NewAdapter(WithAdapterClock(mock))
	require.NoError(t, a.Set(ModelFunc(func(ctx context.Context, in *tensor.Dense) (*tensor.Dense, error) {
		mock.Add(40 * time.Millisecond)
		return echoModel()(ctx, in)
	})))

	for i := 0; i < 2; i++ {
		_, err := a.Infer(context.Background(), input())
		require.NoError(t, err)
	}

	stats := a.Stats()
	assert.Equal(t, 40*time.Millisecond, stats.LastTime)
	assert.Equal(t, 80*time.Millisecond, stats.TotalTime)
	assert.Equal(t, 40*time.Millisecond, stats.Average())
}
