package profiler

import (
	"runtime"
	"time"
)

// MemoryStats is the memory section of a Snapshot.
type MemoryStats struct {
	Alloc         uint64  `json:"alloc"`
	TotalAlloc    uint64  `json:"total_alloc"`
	Sys           uint64  `json:"sys"`
	HeapAlloc     uint64  `json:"heap_alloc"`
	HeapSys       uint64  `json:"heap_sys"`
	HeapObjects   uint64  `json:"heap_objects"`
	GCCycles      uint32  `json:"gc_cycles"`
	GCCPUFraction float64 `json:"gc_cpu_fraction"`
}

// OperationStats summarises the recent durations of one operation.
type OperationStats struct {
	Count   int64         `json:"count"`
	Average time.Duration `json:"average"`
	Min     time.Duration `json:"min"`
	Max     time.Duration `json:"max"`
}

// MetricStats summarises the recent values of one custom metric.
type MetricStats struct {
	Samples int     `json:"samples"`
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// Snapshot is a point-in-time view of the profiler.
type Snapshot struct {
	Uptime     time.Duration             `json:"uptime"`
	Goroutines int                       `json:"goroutines"`
	CgoCalls   int64                     `json:"cgo_calls"`
	Memory     MemoryStats               `json:"memory"`
	Operations map[string]OperationStats `json:"operations"`
	Metrics    map[string]MetricStats    `json:"metrics"`
}

// Snapshot returns the current statistics. Averages cover the retained samples; counts
// cover everything recorded.
func (rp *RuntimeProfiler) Snapshot() Snapshot {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	rp.mu.RLock()
	defer rp.mu.RUnlock()

	snap := Snapshot{
		Uptime:     rp.clock.Since(rp.startTime),
		Goroutines: runtime.NumGoroutine(),
		CgoCalls:   runtime.NumCgoCall(),
		Memory: MemoryStats{
			Alloc:         mem.Alloc,
			TotalAlloc:    mem.TotalAlloc,
			Sys:           mem.Sys,
			HeapAlloc:     mem.HeapAlloc,
			HeapSys:       mem.HeapSys,
			HeapObjects:   mem.HeapObjects,
			GCCycles:      mem.NumGC,
			GCCPUFraction: mem.GCCPUFraction,
		},
		Operations: make(map[string]OperationStats, len(rp.operationTimes)),
		Metrics:    make(map[string]MetricStats, len(rp.customMetrics)),
	}

	for name, t := range rp.operationTimes {
		if len(t.durations) == 0 {
			continue
		}
		snap.Operations[name] = OperationStats{
			Count:   t.count,
			Average: t.totalTime / time.Duration(len(t.durations)),
			Min:     t.minTime,
			Max:     t.maxTime,
		}
	}

	for name, t := range rp.customMetrics {
		if len(t.values) == 0 {
			continue
		}
		snap.Metrics[name] = MetricStats{
			Samples: len(t.values),
			Average: t.sum / float64(len(t.values)),
			Min:     t.min,
			Max:     t.max,
		}
	}

	return snap
}
