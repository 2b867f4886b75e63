package controller

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/nvr-ai/go-overlay/config"
	"github.com/nvr-ai/go-overlay/inference"
	"github.com/nvr-ai/go-overlay/logging"
	"github.com/nvr-ai/go-overlay/overlay"
	"github.com/nvr-ai/go-overlay/video"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
)

// ErrAlreadyStarted is returned when Start is called more than once.
var ErrAlreadyStarted = errors.New("scheduler already started")

// Stats counts scheduler activity.
type Stats struct {
	// Ticks is the number of timer ticks observed.
	Ticks int64 `json:"ticks"`
	// Cycles is the number of cycles started.
	Cycles int64 `json:"cycles"`
	// Skipped counts ticks and cycles that had nothing to do: paused, ended or no frame.
	Skipped int64 `json:"skipped"`
	// Dropped counts ticks that arrived while max_in_flight cycles were running.
	Dropped int64 `json:"dropped"`
	// Failures counts cycles aborted by an error.
	Failures int64 `json:"failures"`
	// Rendered counts cycles that drew.
	Rendered int64 `json:"rendered"`
	// Discarded counts cycles whose render was stale.
	Discarded int64 `json:"discarded"`
	// LastError is the most recent model load or cycle error.
	LastError string `json:"last_error,omitempty"`
}

// NewSchedulerArgs are the collaborators of a Scheduler.
type NewSchedulerArgs struct {
	Config   config.Scheduler
	Source   video.Source
	Pipeline Runner
	Adapter  *inference.Adapter
	// Clock defaults to the wall clock.
	Clock clock.Clock
	// Logger defaults to a no-op logger.
	Logger logging.Logger
}

// Scheduler triggers a detection cycle on every tick of a fixed-rate timer.
//
// Ticks never queue: a tick that finds max_in_flight cycles running is dropped. Each
// cycle gets a fresh overlay.Token so a finished cycle can tell whether it was
// superseded.
type Scheduler struct {
	cfg      config.Scheduler
	source   video.Source
	pipeline Runner
	adapter  *inference.Adapter
	clock    clock.Clock
	logger   logging.Logger
	runID    string

	generations overlay.Generations
	inFlight    *semaphore.Weighted
	state       atomic.Int32

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc

	done     chan struct{}
	doneOnce sync.Once

	ticks     atomic.Int64
	cycles    atomic.Int64
	skipped   atomic.Int64
	dropped   atomic.Int64
	failures  atomic.Int64
	rendered  atomic.Int64
	discarded atomic.Int64

	errMu   sync.Mutex
	lastErr error
}

// NewScheduler creates an idle Scheduler.
//
// Arguments:
//   - args: The collaborators. Source, Pipeline and Adapter are required.
//
// Returns:
//   - *Scheduler: The scheduler.
//   - error: An error for a missing collaborator or a non-positive tick interval.
func NewScheduler(args NewSchedulerArgs) (*Scheduler, error) {
	switch {
	case args.Source == nil:
		return nil, errors.New("scheduler requires a source")
	case args.Pipeline == nil:
		return nil, errors.New("scheduler requires a pipeline")
	case args.Adapter == nil:
		return nil, errors.New("scheduler requires an adapter")
	case args.Config.TickInterval <= 0:
		return nil, errors.Errorf("tick interval must be positive, got %s", args.Config.TickInterval)
	}

	if args.Config.MaxInFlight < 1 {
		args.Config.MaxInFlight = 1
	}
	if args.Clock == nil {
		args.Clock = clock.New()
	}
	if args.Logger == nil {
		args.Logger = logging.NewNopLogger()
	}

	return &Scheduler{
		cfg:      args.Config,
		source:   args.Source,
		pipeline: args.Pipeline,
		adapter:  args.Adapter,
		clock:    args.Clock,
		logger:   args.Logger,
		runID:    uuid.NewString(),
		inFlight: semaphore.NewWeighted(int64(args.Config.MaxInFlight)),
		done:     make(chan struct{}),
	}, nil
}

// Start loads the model and begins ticking once the source is ready. It does not block.
//
// If the model fails to load the scheduler logs the failure, stays idle and closes Done.
//
// Arguments:
//   - ctx: Cancelling it stops the tick loop. A scheduler that reached Running moves to
//     Stopped; one still loading the model or waiting for the first frame stays Idle.
//   - loader: Loads the model. May be nil if the adapter already holds one.
//
// Returns:
//   - error: ErrAlreadyStarted on a second call, or after Stop.
func (s *Scheduler) Start(ctx context.Context, loader inference.Loader) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx, loader)

	return nil
}

func (s *Scheduler) run(ctx context.Context, loader inference.Loader) {
	defer s.closeDone()

	if !s.adapter.Loaded() {
		if err := s.adapter.Load(ctx, loader); err != nil {
			if ctx.Err() != nil {
				s.logger.Infow("model load cancelled", "run_id", s.runID)
				return
			}
			s.setLastError(err)
			s.logger.Errorw("model load failure", "run_id", s.runID, "error", err)
			return
		}
		s.logger.Infow("model loaded", "run_id", s.runID)
	}

	select {
	case <-ctx.Done():
		return
	case <-s.source.Ready():
	}

	ticker := s.clock.Ticker(s.cfg.TickInterval)
	defer ticker.Stop()

	s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning))
	s.logger.Infow("scheduler running", "run_id", s.runID,
		"tick_interval", s.cfg.TickInterval, "max_in_flight", s.cfg.MaxInFlight)

	for {
		select {
		case <-ctx.Done():
			s.state.Store(int32(StateStopped))
			s.logger.Infow("scheduler stopped", "run_id", s.runID, "stats", s.Stats())
			return
		case <-ticker.C:
			if !s.tick(ctx) {
				s.state.Store(int32(StateStopped))
				s.logger.Infow("video ended, scheduler stopped", "run_id", s.runID)
				return
			}
		}
	}
}

// tick handles one timer tick. It returns false when the scheduler should stop.
func (s *Scheduler) tick(ctx context.Context) bool {
	s.ticks.Add(1)

	if s.source.Ended() && s.cfg.StopOnEnd {
		return false
	}
	if s.source.Paused() || s.source.Ended() {
		s.skipped.Add(1)
		return true
	}

	if !s.inFlight.TryAcquire(1) {
		s.dropped.Add(1)
		s.logger.Debugw("tick dropped, cycles in flight", "run_id", s.runID, "max_in_flight", s.cfg.MaxInFlight)
		return true
	}

	token := s.generations.Next()
	s.cycles.Add(1)

	// In-flight cycles outlive Stop.
	cycleCtx := context.WithoutCancel(ctx)
	go func() {
		defer s.inFlight.Release(1)
		s.runCycle(cycleCtx, token)
	}()

	return true
}

func (s *Scheduler) runCycle(ctx context.Context, token overlay.Token) {
	result, err := s.pipeline.Run(ctx, token)
	if err != nil {
		s.failures.Add(1)
		s.setLastError(err)
		s.logger.Warnw("cycle failed", "run_id", s.runID, "generation", token.Generation(), "error", err)
		return
	}

	switch {
	case result.Skipped:
		s.skipped.Add(1)
	case result.Outcome == overlay.Drawn:
		s.rendered.Add(1)
	case result.Outcome == overlay.Stale:
		s.discarded.Add(1)
		s.logger.Debugw("stale render discarded", "run_id", s.runID, "generation", token.Generation())
	case result.Outcome == overlay.Disposed:
		s.logger.Debugw("surface disposed, render skipped", "run_id", s.runID, "generation", token.Generation())
	}
}

// Stop stops ticking and waits for the tick loop to exit. A model load in progress is
// abandoned rather than awaited. In-flight cycles keep running; use Drain to wait for
// them. Calls after the first do nothing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.started = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-s.done
	} else {
		s.closeDone()
	}

	if State(s.state.Swap(int32(StateStopped))) != StateStopped {
		s.logger.Infow("scheduler stopped", "run_id", s.runID, "stats", s.Stats())
	}
}

// Drain waits until no cycle is in flight.
func (s *Scheduler) Drain(ctx context.Context) error {
	n := int64(s.cfg.MaxInFlight)
	if err := s.inFlight.Acquire(ctx, n); err != nil {
		return errors.Wrap(err, "draining cycles")
	}
	s.inFlight.Release(n)
	return nil
}

// Done is closed when the tick loop has exited, or immediately after a model load failure.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

func (s *Scheduler) closeDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

// State returns the lifecycle state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// RunID identifies this scheduler in logs.
func (s *Scheduler) RunID() string {
	return s.runID
}

// Generation returns the generation of the most recently started cycle.
func (s *Scheduler) Generation() uint64 {
	return s.generations.Latest()
}

func (s *Scheduler) setLastError(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	s.lastErr = err
}

// LastError returns the most recent model load or cycle error.
func (s *Scheduler) LastError() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.lastErr
}

// Stats returns the scheduler counters.
func (s *Scheduler) Stats() Stats {
	stats := Stats{
		Ticks:     s.ticks.Load(),
		Cycles:    s.cycles.Load(),
		Skipped:   s.skipped.Load(),
		Dropped:   s.dropped.Load(),
		Failures:  s.failures.Load(),
		Rendered:  s.rendered.Load(),
		Discarded: s.discarded.Load(),
	}
	if err := s.LastError(); err != nil {
		stats.LastError = err.Error()
	}
	return stats
}
