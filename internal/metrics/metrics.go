// Package metrics is a small in-process collector for counters and
// timers, exposed as a JSON snapshot on the metrics endpoint.
package metrics

import (
	"sync"
	"time"
)

// TimerSnapshot captures timing information for one named operation.
type TimerSnapshot struct {
	Count         int64   `json:"count"`
	TotalTimeMs   int64   `json:"total_time_ms"`
	AverageTimeMs float64 `json:"average_time_ms"`
	MaxTimeMs     int64   `json:"max_time_ms"`
}

// Snapshot is a point-in-time view of all collected metrics.
type Snapshot struct {
	Counters map[string]int64         `json:"counters"`
	Timers   map[string]TimerSnapshot `json:"timers"`
}

type timer struct {
	count   int64
	totalMs int64
	maxMs   int64
}

// Metrics is the collector. Safe for concurrent use.
type Metrics struct {
	mu       sync.RWMutex
	counters map[string]int64
	timers   map[string]*timer
}

// NewMetrics creates a new collector
func NewMetrics() *Metrics {
	return &Metrics{
		counters: make(map[string]int64),
		timers:   make(map[string]*timer),
	}
}

// Inc increments a counter by one
func (m *Metrics) Inc(name string) {
	m.mu.Lock()
	m.counters[name]++
	m.mu.Unlock()
}

// Observe records one duration under a timer name
func (m *Metrics) Observe(name string, d time.Duration) {
	ms := d.Milliseconds()
	m.mu.Lock()
	t, ok := m.timers[name]
	if !ok {
		t = &timer{}
		m.timers[name] = t
	}
	t.count++
	t.totalMs += ms
	if ms > t.maxMs {
		t.maxMs = ms
	}
	m.mu.Unlock()
}

// Time runs fn and records its duration under name
func (m *Metrics) Time(name string, fn func()) {
	start := time.Now()
	fn()
	m.Observe(name, time.Since(start))
}

// Snapshot returns a copy of all current metric values
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{
		Counters: make(map[string]int64, len(m.counters)),
		Timers:   make(map[string]TimerSnapshot, len(m.timers)),
	}
	for name, v := range m.counters {
		snap.Counters[name] = v
	}
	for name, t := range m.timers {
		ts := TimerSnapshot{Count: t.count, TotalTimeMs: t.totalMs, MaxTimeMs: t.maxMs}
		if t.count > 0 {
			ts.AverageTimeMs = float64(t.totalMs) / float64(t.count)
		}
		snap.Timers[name] = ts
	}
	return snap
}
