package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nvr-ai/go-overlay/config"
	"github.com/nvr-ai/go-overlay/controller"
	"github.com/nvr-ai/go-overlay/inference"
	"github.com/nvr-ai/go-overlay/inference/onnx"
	"github.com/nvr-ai/go-overlay/logging"
	"github.com/nvr-ai/go-overlay/models/postprocess"
	"github.com/nvr-ai/go-overlay/overlay"
	"github.com/nvr-ai/go-overlay/profiler"
	"github.com/nvr-ai/go-overlay/server"
	"github.com/nvr-ai/go-overlay/video"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// errFinished ends the run group once the scheduler stops on its own.
var errFinished = errors.New("finished")

// loadConfig builds the configuration from defaults, the optional file, then flags.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := c.String(flagConfig); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if c.IsSet(flagModel) {
		cfg.Model.Path = c.String(flagModel)
	}
	if c.IsSet(flagORTLib) {
		cfg.Model.SharedLibraryPath = c.String(flagORTLib)
	}
	if c.IsSet(flagBackend) {
		cfg.Model.Backend = c.String(flagBackend)
	}
	if c.IsSet(flagThreshold) {
		cfg.Detection.ConfidenceThreshold = float32(c.Float64(flagThreshold))
	}
	if c.IsSet(flagInterval) {
		cfg.Scheduler.TickInterval = c.Duration(flagInterval)
	}
	if c.IsSet(flagStopOnEnd) {
		cfg.Scheduler.StopOnEnd = c.Bool(flagStopOnEnd)
	}
	if c.IsSet(flagListen) {
		cfg.Server.Listen = c.String(flagListen)
	}
	if c.IsSet(flagProfile) {
		cfg.Profiling.Enabled = c.Bool(flagProfile)
	}
	if c.Bool(flagDebug) {
		cfg.Logging.Level = "debug"
	}
	if c.IsSet(flagJSONLogs) {
		cfg.Logging.JSON = c.Bool(flagJSONLogs)
	}

	return cfg, cfg.Validate()
}

func writeDefaults(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return errors.New("usage: overlay defaults FILE")
	}
	return config.Default().Save(path)
}

// components is everything a run owns.
type components struct {
	source    video.Playable
	adapter   *inference.Adapter
	surface   *overlay.Surface
	renderer  *overlay.Renderer
	profiler  *profiler.RuntimeProfiler
	scheduler *controller.Scheduler
}

func build(cfg config.Config, src video.Playable, logger logging.Logger) (*components, error) {
	size := cfg.FrameSize()

	pool, err := inference.NewTensorPool(inference.InputShape(size)...)
	if err != nil {
		return nil, err
	}
	pre, err := inference.NewPreprocessor(size, pool)
	if err != nil {
		return nil, err
	}
	post, err := postprocess.NewPostprocessor(cfg.Postprocess())
	if err != nil {
		return nil, err
	}

	colors, err := cfg.ClassColorMap()
	if err != nil {
		return nil, err
	}
	policy, err := overlay.ParseDiscardPolicy(cfg.Scheduler.DiscardPolicy)
	if err != nil {
		return nil, err
	}
	surface, err := overlay.NewSurface(size.X, size.Y)
	if err != nil {
		return nil, err
	}
	renderer, err := overlay.NewRenderer(surface, colors, overlay.WithDiscardPolicy(policy))
	if err != nil {
		return nil, err
	}

	prof := profiler.NewRuntimeProfiler(profiler.ProfilingOptions{
		ReportInterval: cfg.Profiling.ReportInterval,
		Logger:         logger,
	})

	adapter := inference.NewAdapter()
	pipeline, err := controller.NewPipeline(controller.NewPipelineArgs{
		Source:        src,
		Preprocessor:  pre,
		Adapter:       adapter,
		Postprocessor: post,
		Renderer:      renderer,
		Profiler:      prof,
	})
	if err != nil {
		return nil, err
	}

	scheduler, err := controller.NewScheduler(controller.NewSchedulerArgs{
		Config:   cfg.Scheduler,
		Source:   src,
		Pipeline: pipeline,
		Adapter:  adapter,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	return &components{
		source:    src,
		adapter:   adapter,
		surface:   surface,
		renderer:  renderer,
		profiler:  prof,
		scheduler: scheduler,
	}, nil
}

// close releases everything once the scheduler has stopped.
func (c *components) close() error {
	c.surface.Dispose()
	return multierr.Combine(c.adapter.Close(), c.source.Close())
}

func run(c *cli.Context) (err error) {
	if c.String(flagSource) == "" {
		return errors.New("--source is required")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	base, err := logging.New("overlay", cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = base.Sync() }()

	src, err := video.Open(c.String(flagSource), video.OpenOptions{
		Kind:   video.Kind(c.String(flagSourceKind)),
		FPS:    c.Float64(flagFPS),
		Loop:   c.Bool(flagLoop),
		Logger: base.Named("video"),
	})
	if err != nil {
		return err
	}

	comps, err := build(cfg, src, base.Named("pipeline"))
	if err != nil {
		return multierr.Append(err, src.Close())
	}
	defer func() { err = multierr.Append(err, comps.close()) }()

	var srv *server.Server
	if cfg.Server.Listen != "" {
		srv, err = server.New(cfg.Server.Listen, server.Args{
			Scheduler: comps.scheduler,
			Adapter:   comps.adapter,
			Renderer:  comps.renderer,
			Playback:  src,
			Profiler:  comps.profiler,
			Logger:    base.Named("server"),
		})
		if err != nil {
			return err
		}
	}

	if cfg.Profiling.Enabled {
		comps.profiler.Start()
		defer comps.profiler.Stop()
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return src.Run(ctx)
	})

	if err := comps.scheduler.Start(ctx, onnx.NewLoader(cfg.Model)); err != nil {
		return err
	}
	base.Infow("overlay started", "run_id", comps.scheduler.RunID(), "source", c.String(flagSource),
		"model", cfg.Model.Path, "backend", cfg.Model.Backend)

	g.Go(func() error {
		select {
		case <-ctx.Done():
			return nil
		case <-comps.scheduler.Done():
		}
		if err := comps.scheduler.LastError(); errors.Is(err, inference.ErrModelLoad) {
			return err
		}
		return errFinished
	})

	g.Go(func() error {
		<-ctx.Done()
		comps.scheduler.Stop()

		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return comps.scheduler.Drain(drainCtx)
	})

	if srv != nil {
		g.Go(srv.ListenAndServe)
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	if errors.Is(err, errFinished) {
		err = nil
	}
	base.Infow("overlay stopped", "stats", comps.scheduler.Stats())
	return err
}
