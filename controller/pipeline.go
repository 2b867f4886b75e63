// Package controller - Drives detection cycles: the per-frame pipeline and the fixed-rate
// scheduler that triggers it.
package controller

import (
	"context"

	"github.com/nvr-ai/go-overlay/inference"
	"github.com/nvr-ai/go-overlay/models/postprocess"
	"github.com/nvr-ai/go-overlay/overlay"
	"github.com/nvr-ai/go-overlay/profiler"
	"github.com/nvr-ai/go-overlay/video"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Operation names recorded with the profiler.
const (
	OpCycle       = "cycle"
	OpPreprocess  = "preprocess"
	OpInference   = "inference"
	OpPostprocess = "postprocess"
	OpRender      = "render"

	// MetricDetections is the number of detections drawn per cycle.
	MetricDetections = "detections"
)

// CycleResult describes one completed cycle.
type CycleResult struct {
	// Generation is the cycle's token generation.
	Generation uint64
	// Skipped is set when there was no frame to process.
	Skipped bool
	// Detections are the postprocessed detections, in model row order.
	Detections []postprocess.Detection
	// Outcome is what the renderer did. Only meaningful when not skipped.
	Outcome overlay.Outcome
}

// Runner runs one detection cycle.
type Runner interface {
	Run(ctx context.Context, token overlay.Token) (CycleResult, error)
}

// Pipeline runs capture, preprocess, inference, postprocess and render for one frame.
type Pipeline struct {
	source   video.Source
	pre      *inference.Preprocessor
	adapter  *inference.Adapter
	post     *postprocess.Postprocessor
	renderer *overlay.Renderer
	profiler *profiler.RuntimeProfiler
}

// NewPipelineArgs are the collaborators of a Pipeline. All but Profiler are required.
type NewPipelineArgs struct {
	Source        video.Source
	Preprocessor  *inference.Preprocessor
	Adapter       *inference.Adapter
	Postprocessor *postprocess.Postprocessor
	Renderer      *overlay.Renderer
	Profiler      *profiler.RuntimeProfiler
}

// NewPipeline creates a Pipeline.
func NewPipeline(args NewPipelineArgs) (*Pipeline, error) {
	switch {
	case args.Source == nil:
		return nil, errors.New("pipeline requires a source")
	case args.Preprocessor == nil:
		return nil, errors.New("pipeline requires a preprocessor")
	case args.Adapter == nil:
		return nil, errors.New("pipeline requires an adapter")
	case args.Postprocessor == nil:
		return nil, errors.New("pipeline requires a postprocessor")
	case args.Renderer == nil:
		return nil, errors.New("pipeline requires a renderer")
	}

	prof := args.Profiler
	if prof == nil {
		prof = profiler.NewRuntimeProfiler(profiler.ProfilingOptions{})
	}

	return &Pipeline{
		source:   args.Source,
		pre:      args.Preprocessor,
		adapter:  args.Adapter,
		post:     args.Postprocessor,
		renderer: args.Renderer,
		profiler: prof,
	}, nil
}

// Run executes one cycle for token.
//
// A missing frame skips the cycle without error. Inference and output errors abort the
// cycle before anything is drawn. The input tensor is released on every path.
//
// Arguments:
//   - ctx: Passed to the model.
//   - token: The cycle's token, checked by the renderer.
//
// Returns:
//   - CycleResult: What the cycle did.
//   - error: An ErrInferenceFailure or postprocess.ErrUnexpectedOutput error.
func (p *Pipeline) Run(ctx context.Context, token overlay.Token) (CycleResult, error) {
	defer p.profiler.StartOperation(OpCycle)()

	result := CycleResult{Generation: token.Generation()}

	frame, ok := p.source.Frame()
	if !ok {
		result.Skipped = true
		return result, nil
	}

	done := p.profiler.StartOperation(OpPreprocess)
	input, canvas, err := p.pre.Process(frame)
	done()
	if errors.Is(err, inference.ErrFrameUnavailable) {
		result.Skipped = true
		return result, nil
	}
	if err != nil {
		return result, err
	}

	var output *tensor.Dense
	err = inference.WithTensor(input, func(in *tensor.Dense) error {
		defer p.profiler.StartOperation(OpInference)()

		var err error
		output, err = p.adapter.Infer(ctx, in)
		return err
	})
	if err != nil {
		return result, err
	}

	done = p.profiler.StartOperation(OpPostprocess)
	detections, err := p.post.ProcessTensor(output)
	done()
	if err != nil {
		return result, err
	}
	result.Detections = detections
	p.profiler.RecordMetric(MetricDetections, float64(len(detections)))

	done = p.profiler.StartOperation(OpRender)
	result.Outcome = p.renderer.Render(token, canvas, detections)
	done()

	return result, nil
}

// Profiler returns the profiler stages are timed with.
func (p *Pipeline) Profiler() *profiler.RuntimeProfiler {
	return p.profiler
}
