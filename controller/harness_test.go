package controller

import (
	"context"
	"image"
	"image/color"
	"sync/atomic"
	"testing"

	"github.com/nvr-ai/go-overlay/inference"
	"github.com/nvr-ai/go-overlay/models"
	"github.com/nvr-ai/go-overlay/models/postprocess"
	"github.com/nvr-ai/go-overlay/overlay"
	"github.com/nvr-ai/go-overlay/profiler"
	"github.com/nvr-ai/go-overlay/video"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

const canvasSize = 64

type harness struct {
	player   *video.Player
	pool     *inference.TensorPool
	adapter  *inference.Adapter
	surface  *overlay.Surface
	renderer *overlay.Renderer
	profiler *profiler.RuntimeProfiler
	pipeline *Pipeline
	model    *countingModel
}

// countingModel counts executions and delegates to fn.
type countingModel struct {
	calls atomic.Int32
	fn    inference.ModelFunc
}

func (m *countingModel) Execute(ctx context.Context, input *tensor.Dense) (*tensor.Dense, error) {
	m.calls.Add(1)
	return m.fn(ctx, input)
}

func (m *countingModel) Close() error {
	return nil
}

func rowsOutput(rows ...[]float32) *tensor.Dense {
	var flat []float32
	for _, r := range rows {
		flat = append(flat, r...)
	}
	return tensor.New(tensor.WithShape(1, len(rows), postprocess.RowWidth), tensor.WithBacking(flat))
}

// scenarioA is a single confident person detection centred in the frame.
func scenarioA() inference.ModelFunc {
	return func(context.Context, *tensor.Dense) (*tensor.Dense, error) {
		return rowsOutput([]float32{0.5, 0.5, 0.2, 0.2, 0.9, 0}), nil
	}
}

func newHarness(t testing.TB, fn inference.ModelFunc, opts ...overlay.RendererOption) *harness {
	t.Helper()

	size := image.Pt(canvasSize, canvasSize)

	pool, err := inference.NewTensorPool(inference.InputShape(size)...)
	require.NoError(t, err)
	pre, err := inference.NewPreprocessor(size, pool)
	require.NoError(t, err)
	post, err := postprocess.NewPostprocessor(postprocess.Config{
		Threshold:     0.5,
		CanvasWidth:   canvasSize,
		CanvasHeight:  canvasSize,
		TargetClasses: models.DefaultTargetClasses,
	})
	require.NoError(t, err)
	surface, err := overlay.NewSurface(canvasSize, canvasSize)
	require.NoError(t, err)
	renderer, err := overlay.NewRenderer(surface, models.DefaultClassColorMap(), opts...)
	require.NoError(t, err)

	h := &harness{
		player:   video.NewPlayer(),
		pool:     pool,
		adapter:  inference.NewAdapter(),
		surface:  surface,
		renderer: renderer,
		profiler: profiler.NewRuntimeProfiler(profiler.ProfilingOptions{}),
		model:    &countingModel{fn: fn},
	}

	h.pipeline, err = NewPipeline(NewPipelineArgs{
		Source:        h.player,
		Preprocessor:  pre,
		Adapter:       h.adapter,
		Postprocessor: post,
		Renderer:      renderer,
		Profiler:      h.profiler,
	})
	require.NoError(t, err)

	return h
}

func (h *harness) publishFrame() {
	frame := image.NewRGBA(image.Rect(0, 0, 160, 90))
	for i := 0; i < len(frame.Pix); i += 4 {
		frame.Pix[i+2] = 200
		frame.Pix[i+3] = 255
	}
	h.player.Publish(frame)
}

func (h *harness) loader() inference.Loader {
	return inference.StaticLoader(h.model)
}

func pixel(img image.Image, x, y int) color.RGBA {
	r, g, b, a := img.At(x, y).RGBA()
	return color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)}
}
