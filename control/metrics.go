// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Trap and upcall counters for the simulated kernel.

package control

import (
	"sync"
	"time"
)

// Counter names maintained by the kernel.
const (
	MetricCommand   = "trap.command"
	MetricSubscribe = "trap.subscribe"
	MetricYield     = "trap.yield"
	MetricDelivered = "upcall.delivered"
	MetricDropped   = "upcall.dropped"
)

// MetricsRegistry holds monotonically increasing counters.
type MetricsRegistry struct {
	mu       sync.RWMutex
	counters map[string]int64
	updated  time.Time
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		counters: make(map[string]int64),
	}
}

// Inc adds one to key.
func (mr *MetricsRegistry) Inc(key string) { mr.Add(key, 1) }

// Add adds delta to key.
func (mr *MetricsRegistry) Add(key string, delta int64) {
	mr.mu.Lock()
	mr.counters[key] += delta
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// Get returns the current value of key.
func (mr *MetricsRegistry) Get(key string) int64 {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.counters[key]
}

// Updated is the time of the last change.
func (mr *MetricsRegistry) Updated() time.Time {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.updated
}

// GetSnapshot returns the latest counters.
func (mr *MetricsRegistry) GetSnapshot() map[string]int64 {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]int64, len(mr.counters))
	for k, v := range mr.counters {
		out[k] = v
	}
	return out
}
