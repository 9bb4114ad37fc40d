// Package metrics records rolling performance samples keyed by metric name.
//
// Each metric keeps a fixed-size ring buffer; once full, the oldest sample
// is overwritten. Stats are computed on demand from the buffered samples.
package metrics

import (
	"math"
	"slices"
	"sort"
	"sync"
	"time"
)

// DefaultMaxSamples is the ring buffer size used when none is configured.
const DefaultMaxSamples = 1000

// Stats summarizes the buffered samples of one metric.
type Stats struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	P95     float64 `json:"p95"`
}

type ring struct {
	values []float64
	next   int
	full   bool
}

func (r *ring) add(v float64) {
	r.values[r.next] = v
	r.next++
	if r.next == len(r.values) {
		r.next = 0
		r.full = true
	}
}

func (r *ring) samples() []float64 {
	if r.full {
		out := make([]float64, len(r.values))
		copy(out, r.values)
		return out
	}
	out := make([]float64, r.next)
	copy(out, r.values[:r.next])
	return out
}

// Monitor is a concurrent-safe set of named ring buffers.
type Monitor struct {
	mu         sync.RWMutex
	maxSamples int
	metrics    map[string]*ring
}

// NewMonitor creates a monitor keeping at most maxSamples per metric.
func NewMonitor(maxSamples int) *Monitor {
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	return &Monitor{
		maxSamples: maxSamples,
		metrics:    make(map[string]*ring),
	}
}

// Record appends a sample to the named metric.
func (m *Monitor) Record(name string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.metrics[name]
	if !ok {
		r = &ring{values: make([]float64, m.maxSamples)}
		m.metrics[name] = r
	}
	r.add(value)
}

// RecordDuration records d in milliseconds.
func (m *Monitor) RecordDuration(name string, d time.Duration) {
	m.Record(name, float64(d)/float64(time.Millisecond))
}

// Time starts a timer; calling the returned func records the elapsed
// duration under name.
//
//	defer monitor.Time("search.total")()
func (m *Monitor) Time(name string) func() {
	start := time.Now()
	return func() {
		m.RecordDuration(name, time.Since(start))
	}
}

// Stats returns the summary for a metric, or false if nothing was recorded.
func (m *Monitor) Stats(name string) (Stats, bool) {
	m.mu.RLock()
	r, ok := m.metrics[name]
	var samples []float64
	if ok {
		samples = r.samples()
	}
	m.mu.RUnlock()

	if len(samples) == 0 {
		return Stats{}, false
	}
	return summarize(samples), true
}

// Names returns the recorded metric names in sorted order.
func (m *Monitor) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.metrics))
	for name := range m.metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns stats for every recorded metric.
func (m *Monitor) Snapshot() map[string]Stats {
	out := make(map[string]Stats)
	for _, name := range m.Names() {
		if s, ok := m.Stats(name); ok {
			out[name] = s
		}
	}
	return out
}

// Reset drops all samples.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = make(map[string]*ring)
}

func summarize(samples []float64) Stats {
	slices.Sort(samples)

	var sum float64
	for _, v := range samples {
		sum += v
	}

	idx := int(math.Floor(float64(len(samples)) * 0.95))
	if idx >= len(samples) {
		idx = len(samples) - 1
	}

	return Stats{
		Count:   len(samples),
		Average: sum / float64(len(samples)),
		Min:     samples[0],
		Max:     samples[len(samples)-1],
		P95:     samples[idx],
	}
}
