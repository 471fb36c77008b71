package searchtype

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks resolution counts and timings using lock-free atomic operations.
// All methods are safe for concurrent use.
type Metrics struct {
	resolutionsTotal  atomic.Uint64
	resolutionsFailed atomic.Uint64
	mappingsTotal     atomic.Uint64

	// Timing (stored as nanoseconds)
	resolutionTimeTotal atomic.Uint64
	resolutionTimeMin   atomic.Uint64
	resolutionTimeMax   atomic.Uint64

	// faults maps a FaultKind to its *atomic.Uint64 counter
	faults sync.Map
}

// NewMetrics creates a new Metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	// Initialize min to max uint64 so first value becomes the minimum
	m.resolutionTimeMin.Store(^uint64(0))
	return m
}

// RecordResolution records one resolved search parameter/base pair.
// A non-nil err is counted under its FaultKind.
func (m *Metrics) RecordResolution(duration time.Duration, mappings int, err error) {
	m.resolutionsTotal.Add(1)
	m.mappingsTotal.Add(uint64(mappings)) //nolint:gosec // mappings is never negative
	if err != nil {
		m.resolutionsFailed.Add(1)
		m.faultCounter(FaultKind(err)).Add(1)
	}

	ns := uint64(duration.Nanoseconds()) //nolint:gosec // Safe: nanoseconds are always positive for valid durations
	m.resolutionTimeTotal.Add(ns)

	for {
		old := m.resolutionTimeMin.Load()
		if ns >= old || m.resolutionTimeMin.CompareAndSwap(old, ns) {
			break
		}
	}
	for {
		old := m.resolutionTimeMax.Load()
		if ns <= old || m.resolutionTimeMax.CompareAndSwap(old, ns) {
			break
		}
	}
}

func (m *Metrics) faultCounter(kind string) *atomic.Uint64 {
	if v, ok := m.faults.Load(kind); ok {
		return v.(*atomic.Uint64)
	}
	actual, _ := m.faults.LoadOrStore(kind, &atomic.Uint64{})
	return actual.(*atomic.Uint64)
}

// ResolutionsTotal returns the number of resolutions recorded.
func (m *Metrics) ResolutionsTotal() uint64 {
	return m.resolutionsTotal.Load()
}

// ResolutionsFailed returns the number of resolutions that ended with a fault.
func (m *Metrics) ResolutionsFailed() uint64 {
	return m.resolutionsFailed.Load()
}

// MappingsTotal returns the number of resolved mappings produced.
func (m *Metrics) MappingsTotal() uint64 {
	return m.mappingsTotal.Load()
}

// Faults returns the number of faults recorded for a FaultKind.
func (m *Metrics) Faults(kind string) uint64 {
	v, ok := m.faults.Load(kind)
	if !ok {
		return 0
	}
	return v.(*atomic.Uint64).Load()
}

// AverageResolutionTime returns the average resolution duration.
func (m *Metrics) AverageResolutionTime() time.Duration {
	total := m.resolutionsTotal.Load()
	if total == 0 {
		return 0
	}
	return time.Duration(m.resolutionTimeTotal.Load() / total) //nolint:gosec // nanoseconds within int64 range
}

// MinResolutionTime returns the minimum resolution duration.
func (m *Metrics) MinResolutionTime() time.Duration {
	minVal := m.resolutionTimeMin.Load()
	if minVal == ^uint64(0) {
		return 0
	}
	return time.Duration(minVal) //nolint:gosec // nanoseconds within int64 range
}

// MaxResolutionTime returns the maximum resolution duration.
func (m *Metrics) MaxResolutionTime() time.Duration {
	return time.Duration(m.resolutionTimeMax.Load()) //nolint:gosec // nanoseconds within int64 range
}

// Snapshot represents a point-in-time snapshot of all metrics.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`

	ResolutionsTotal  uint64 `json:"resolutions_total"`
	ResolutionsFailed uint64 `json:"resolutions_failed"`
	MappingsTotal     uint64 `json:"mappings_total"`

	AvgResolutionTimeNs uint64 `json:"avg_resolution_time_ns"`
	MinResolutionTimeNs uint64 `json:"min_resolution_time_ns"`
	MaxResolutionTimeNs uint64 `json:"max_resolution_time_ns"`

	Faults map[string]uint64 `json:"faults,omitempty"`
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		Timestamp:           time.Now(),
		ResolutionsTotal:    m.resolutionsTotal.Load(),
		ResolutionsFailed:   m.resolutionsFailed.Load(),
		MappingsTotal:       m.mappingsTotal.Load(),
		AvgResolutionTimeNs: uint64(m.AverageResolutionTime().Nanoseconds()), //nolint:gosec // never negative
		MinResolutionTimeNs: uint64(m.MinResolutionTime().Nanoseconds()),     //nolint:gosec // never negative
		MaxResolutionTimeNs: m.resolutionTimeMax.Load(),
	}
	m.faults.Range(func(key, value any) bool {
		if s.Faults == nil {
			s.Faults = make(map[string]uint64)
		}
		s.Faults[key.(string)] = value.(*atomic.Uint64).Load()
		return true
	})
	return s
}

// Reset clears all metrics.
func (m *Metrics) Reset() {
	m.resolutionsTotal.Store(0)
	m.resolutionsFailed.Store(0)
	m.mappingsTotal.Store(0)
	m.resolutionTimeTotal.Store(0)
	m.resolutionTimeMin.Store(^uint64(0))
	m.resolutionTimeMax.Store(0)
	m.faults.Range(func(key, _ any) bool {
		m.faults.Delete(key)
		return true
	})
}
