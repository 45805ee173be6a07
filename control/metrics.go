// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics collector for system-level monitoring.
// Static counters share a thread-safe map with pull-based sources that
// are sampled at snapshot time, so allocator and executor state is
// always current without a scraper goroutine.

package control

import (
	"sync"
	"time"

	"github.com/momentics/hioload-net/pool"
)

// MetricSource produces one metric value on demand.
type MetricSource func() any

// MetricsRegistry holds mutable counters and registered pull sources.
type MetricsRegistry struct {
	mu      sync.RWMutex
	metrics map[string]any
	sources map[string]MetricSource
	updated time.Time
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		metrics: make(map[string]any),
		sources: make(map[string]MetricSource),
	}
}

// Set sets or updates a metric key.
func (mr *MetricsRegistry) Set(key string, value any) {
	mr.mu.Lock()
	mr.metrics[key] = value
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// RegisterSource adds a pull-based metric evaluated on every snapshot.
func (mr *MetricsRegistry) RegisterSource(key string, src MetricSource) {
	mr.mu.Lock()
	mr.sources[key] = src
	mr.mu.Unlock()
}

// GetSnapshot returns the latest metrics, sampling every source.
func (mr *MetricsRegistry) GetSnapshot() map[string]any {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]any, len(mr.metrics)+len(mr.sources))
	for k, v := range mr.metrics {
		out[k] = v
	}
	for k, src := range mr.sources {
		out[k] = src()
	}
	return out
}

// ObserveAllocator registers the standard gauges of a pooled allocator
// under the given prefix.
func (mr *MetricsRegistry) ObserveAllocator(prefix string, a *pool.PooledAllocator) {
	mr.RegisterSource(prefix+".allocations", func() any {
		return a.Stats().Allocations
	})
	mr.RegisterSource(prefix+".deallocations", func() any {
		return a.Stats().Deallocations
	})
	mr.RegisterSource(prefix+".active_bytes", func() any {
		return a.Stats().ActiveBytes
	})
	mr.RegisterSource(prefix+".pooled_bytes", func() any {
		return a.Stats().PooledBytes
	})
	mr.RegisterSource(prefix+".chunks_live", func() any {
		return a.Stats().ChunksLive
	})
}

// ObserveStats registers the counters of any map-producing component,
// such as the blocking executor.
func (mr *MetricsRegistry) ObserveStats(prefix string, stats func() map[string]int64) {
	mr.RegisterSource(prefix, func() any { return stats() })
}
