// Package profiler times pipeline stages and samples runtime statistics.
package profiler

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/nvr-ai/go-overlay/logging"
)

// MetricsCollector defines the interface for collecting custom metrics.
type MetricsCollector interface {
	CollectMetrics() map[string]float64
}

// RuntimeProfiler records stage timings and custom metrics, samples memory, and
// periodically logs a status report.
//
// StartOperation and RecordMetric are always available; Start only adds the background
// sampling and reporting.
type RuntimeProfiler struct {
	reportInterval time.Duration
	sampleInterval time.Duration
	clock          clock.Clock
	logger         logging.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	startTime time.Time
	running   bool

	memStats    runtime.MemStats
	samples     []sample
	maxSamples  int
	lastGCCount uint32

	customMetrics  map[string]*MetricTracker
	collectors     []MetricsCollector
	operationTimes map[string]*TimeTracker
}

type sample struct {
	timestamp  time.Time
	goroutines int
	cgoCalls   int64
}

// MetricTracker tracks statistics for a custom metric.
type MetricTracker struct {
	values   []float64
	sum      float64
	min      float64
	max      float64
	count    int64
	lastTime time.Time
}

func (t *MetricTracker) add(value float64, at time.Time, maxSamples int) {
	if t.count == 0 {
		t.min, t.max = value, value
	}

	t.values = append(t.values, value)
	if len(t.values) > maxSamples {
		t.sum -= t.values[0]
		t.values = t.values[1:]
	}

	t.sum += value
	t.count++
	t.lastTime = at

	if value < t.min {
		t.min = value
	}
	if value > t.max {
		t.max = value
	}
}

// TimeTracker tracks operation timing statistics.
type TimeTracker struct {
	durations []time.Duration
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	count     int64
}

func (t *TimeTracker) add(d time.Duration, maxSamples int) {
	if t.count == 0 {
		t.minTime, t.maxTime = d, d
	}

	t.durations = append(t.durations, d)
	if len(t.durations) > maxSamples {
		t.totalTime -= t.durations[0]
		t.durations = t.durations[1:]
	}

	t.totalTime += d
	t.count++

	if d < t.minTime {
		t.minTime = d
	}
	if d > t.maxTime {
		t.maxTime = d
	}
}

// ProfilingOptions configures the runtime profiler.
type ProfilingOptions struct {
	// ReportInterval specifies how often to emit status reports (default: 2s)
	ReportInterval time.Duration
	// SampleInterval specifies how often to collect samples (default: 100ms)
	SampleInterval time.Duration
	// MaxSamples specifies maximum number of samples to keep (default: 600)
	MaxSamples int
	// Clock drives sampling and reporting (default: the wall clock)
	Clock clock.Clock
	// Logger receives the status reports (default: discard)
	Logger logging.Logger
}

// NewRuntimeProfiler creates a new runtime profiler with the specified options.
//
// Arguments:
// - opts: Configuration options for the profiler
//
// Returns:
// - A configured RuntimeProfiler instance
func NewRuntimeProfiler(opts ProfilingOptions) *RuntimeProfiler {
	if opts.ReportInterval == 0 {
		opts.ReportInterval = 2 * time.Second
	}
	if opts.SampleInterval == 0 {
		opts.SampleInterval = 100 * time.Millisecond
	}
	if opts.MaxSamples == 0 {
		opts.MaxSamples = 600 // 1 minute of samples at 100ms intervals
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &RuntimeProfiler{
		reportInterval: opts.ReportInterval,
		sampleInterval: opts.SampleInterval,
		clock:          opts.Clock,
		logger:         opts.Logger,
		ctx:            ctx,
		cancel:         cancel,
		startTime:      opts.Clock.Now(),
		maxSamples:     opts.MaxSamples,
		samples:        make([]sample, 0, opts.MaxSamples),
		customMetrics:  make(map[string]*MetricTracker),
		operationTimes: make(map[string]*TimeTracker),
	}
}

// Start begins sampling and periodic reporting. Calling it again while running does
// nothing. A stopped profiler cannot be restarted.
func (rp *RuntimeProfiler) Start() {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	if rp.running || rp.ctx.Err() != nil {
		return
	}

	rp.running = true
	rp.startTime = rp.clock.Now()

	sampleTicker := rp.clock.Ticker(rp.sampleInterval)
	reportTicker := rp.clock.Ticker(rp.reportInterval)

	rp.wg.Add(2)
	go func() {
		defer rp.wg.Done()
		defer sampleTicker.Stop()

		for {
			select {
			case <-rp.ctx.Done():
				return
			case <-sampleTicker.C:
				rp.sample()
			}
		}
	}()
	go func() {
		defer rp.wg.Done()
		defer reportTicker.Stop()

		for {
			select {
			case <-rp.ctx.Done():
				return
			case <-reportTicker.C:
				rp.emitStatusReport()
			}
		}
	}()
}

// Stop stops the background goroutines and waits for them to exit.
func (rp *RuntimeProfiler) Stop() {
	rp.mu.Lock()
	rp.running = false
	rp.mu.Unlock()

	rp.cancel()
	rp.wg.Wait()
}

// AddMetricsCollector registers a custom metrics collector to be called
// on every sample.
//
// Arguments:
// - collector: An implementation of MetricsCollector interface
func (rp *RuntimeProfiler) AddMetricsCollector(collector MetricsCollector) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.collectors = append(rp.collectors, collector)
}

// RecordMetric records a custom metric value.
//
// Arguments:
// - name: The name of the metric
// - value: The metric value to record
func (rp *RuntimeProfiler) RecordMetric(name string, value float64) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.recordMetricLocked(name, value)
}

func (rp *RuntimeProfiler) recordMetricLocked(name string, value float64) {
	tracker, exists := rp.customMetrics[name]
	if !exists {
		tracker = &MetricTracker{values: make([]float64, 0, rp.maxSamples)}
		rp.customMetrics[name] = tracker
	}
	tracker.add(value, rp.clock.Now(), rp.maxSamples)
}

// StartOperation begins timing an operation.
//
// Arguments:
// - name: The name of the operation to track
//
// Returns:
// - A function to call when the operation completes
func (rp *RuntimeProfiler) StartOperation(name string) func() {
	start := rp.clock.Now()
	return func() {
		rp.RecordOperation(name, rp.clock.Since(start))
	}
}

// RecordOperation records the duration of a completed operation.
func (rp *RuntimeProfiler) RecordOperation(name string, duration time.Duration) {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	tracker, exists := rp.operationTimes[name]
	if !exists {
		tracker = &TimeTracker{}
		rp.operationTimes[name] = tracker
	}
	tracker.add(duration, rp.maxSamples)
}

func (rp *RuntimeProfiler) sample() {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	runtime.ReadMemStats(&rp.memStats)

	rp.samples = append(rp.samples, sample{
		timestamp:  rp.clock.Now(),
		goroutines: runtime.NumGoroutine(),
		cgoCalls:   runtime.NumCgoCall(),
	})
	if len(rp.samples) > rp.maxSamples {
		rp.samples = rp.samples[1:]
	}

	for _, collector := range rp.collectors {
		for name, value := range collector.CollectMetrics() {
			rp.recordMetricLocked(name, value)
		}
	}
}

// emitStatusReport logs the current snapshot.
func (rp *RuntimeProfiler) emitStatusReport() {
	snap := rp.Snapshot()

	rp.mu.Lock()
	newGC := snap.Memory.GCCycles - rp.lastGCCount
	rp.lastGCCount = snap.Memory.GCCycles
	rp.mu.Unlock()

	rp.logger.Infow("runtime status",
		"uptime", snap.Uptime.Truncate(time.Millisecond),
		"goroutines", snap.Goroutines,
		"cgo_calls", snap.CgoCalls,
		"heap_alloc", formatBytes(snap.Memory.HeapAlloc),
		"sys", formatBytes(snap.Memory.Sys),
		"gc_new", newGC,
	)

	for _, name := range sortedKeys(snap.Operations) {
		op := snap.Operations[name]
		rp.logger.Infow("operation timing",
			"operation", name,
			"avg", op.Average.Truncate(time.Microsecond),
			"min", op.Min.Truncate(time.Microsecond),
			"max", op.Max.Truncate(time.Microsecond),
			"count", op.Count,
		)
	}

	for _, name := range sortedKeys(snap.Metrics) {
		m := snap.Metrics[name]
		rp.logger.Infow("metric", "metric", name, "avg", m.Average, "min", m.Min, "max", m.Max, "samples", m.Samples)
	}
}

// formatBytes formats byte counts in human-readable format.
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
