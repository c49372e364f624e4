package gateway

import (
	"math"
	"sort"
	"sync"
)

// LatencyTracker keeps the most recent fan-out lag samples (tick timestamp
// to broadcast completion, in ms) and reports percentiles over them.
type LatencyTracker struct {
	mu      sync.Mutex
	samples []float64
	next    int
	filled  int
}

// LagSnapshot is the JSON shape reported on /health.
type LagSnapshot struct {
	Samples int     `json:"samples"`
	P50Ms   float64 `json:"p50_ms"`
	P95Ms   float64 `json:"p95_ms"`
	P99Ms   float64 `json:"p99_ms"`
}

// NewLatencyTracker holds up to capacity samples; older ones are overwritten.
func NewLatencyTracker(capacity int) *LatencyTracker {
	if capacity <= 0 {
		capacity = 10000
	}
	return &LatencyTracker{samples: make([]float64, capacity)}
}

// Record adds one lag sample in milliseconds.
func (lt *LatencyTracker) Record(ms float64) {
	lt.mu.Lock()
	lt.samples[lt.next] = ms
	lt.next = (lt.next + 1) % len(lt.samples)
	if lt.filled < len(lt.samples) {
		lt.filled++
	}
	lt.mu.Unlock()
}

// Count returns the number of retained samples.
func (lt *LatencyTracker) Count() int {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return lt.filled
}

// Percentiles returns p50, p95 and p99. All zero when nothing was recorded.
func (lt *LatencyTracker) Percentiles() (p50, p95, p99 float64) {
	lt.mu.Lock()
	sorted := make([]float64, lt.filled)
	copy(sorted, lt.samples[:lt.filled])
	lt.mu.Unlock()

	if len(sorted) == 0 {
		return 0, 0, 0
	}
	sort.Float64s(sorted)
	return percentile(sorted, 0.50), percentile(sorted, 0.95), percentile(sorted, 0.99)
}

// Snapshot bundles the sample count with the percentiles.
func (lt *LatencyTracker) Snapshot() LagSnapshot {
	p50, p95, p99 := lt.Percentiles()
	return LagSnapshot{Samples: lt.Count(), P50Ms: p50, P95Ms: p95, P99Ms: p99}
}

// percentile interpolates linearly between closest ranks of a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	rank := p * float64(n-1)
	lower := int(math.Floor(rank))
	if lower+1 >= n {
		return sorted[n-1]
	}
	frac := rank - float64(lower)
	return sorted[lower]*(1-frac) + sorted[lower+1]*frac
}
