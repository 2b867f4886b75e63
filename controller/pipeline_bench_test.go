package controller

import (
	"context"
	"image"
	"testing"

	"github.com/nvr-ai/go-overlay/inference"
	"github.com/nvr-ai/go-overlay/models/postprocess"
	"github.com/nvr-ai/go-overlay/overlay"
	"github.com/stretchr/testify/require"
)

func BenchmarkPipelineRun(b *testing.B) {
	h := newHarness(b, scenarioA())
	require.NoError(b, h.adapter.Set(h.model))
	h.publishFrame()

	var gens overlay.Generations
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := h.pipeline.Run(ctx, gens.Next()); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkPreprocess640(b *testing.B) {
	size := image.Pt(640, 640)
	pool, err := inference.NewTensorPool(inference.InputShape(size)...)
	require.NoError(b, err)
	pre, err := inference.NewPreprocessor(size, pool)
	require.NoError(b, err)

	frame := image.NewRGBA(image.Rect(0, 0, 1280, 720))

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		t, _, err := pre.Process(frame)
		if err != nil {
			b.Fatal(err)
		}
		t.Release()
	}
}

func BenchmarkPostprocess(b *testing.B) {
	rows := make([][]float32, 8400)
	for i := range rows {
		rows[i] = []float32{0.5, 0.5, 0.1, 0.1, float32(i%100) / 100, float32(i % 80)}
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		postprocess.Postprocess(rows, 0.5, 640, 640)
	}
}
