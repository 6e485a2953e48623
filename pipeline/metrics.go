package pipeline

import (
	"math"
	"sort"
	"sync"
	"time"
)

type Summary struct {
	Fps             float64 `json:"fps"`
	MedianLatencyMs float64 `json:"median_latency_ms"`
	P95LatencyMs    float64 `json:"p95_latency_ms"`
	Frames          uint64  `json:"frames"`
}

// Aggregator collects end-to-end latencies of processed frames.
type Aggregator struct {
	mu        sync.Mutex
	now       func() time.Time
	start     time.Time
	frames    uint64
	latencies []float64
}

func NewAggregator() *Aggregator {
	a := &Aggregator{now: time.Now}
	a.start = a.now()
	return a
}

func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.start = a.now()
	a.frames = 0
	a.latencies = a.latencies[:0]
}

// Add records one processed frame.
func (a *Aggregator) Add(latency time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.frames++
	a.latencies = append(a.latencies, float64(latency)/float64(time.Millisecond))
}

func (a *Aggregator) Summary() Summary {
	a.mu.Lock()
	elapsed := a.now().Sub(a.start).Seconds()
	frames := a.frames
	sorted := make([]float64, len(a.latencies))
	copy(sorted, a.latencies)
	a.mu.Unlock()

	sort.Float64s(sorted)
	return Summary{
		Fps:             float64(frames) / math.Max(0.001, elapsed),
		MedianLatencyMs: median(sorted),
		P95LatencyMs:    p95(sorted),
		Frames:          frames,
	}
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	m := n / 2
	if n%2 == 1 {
		return sorted[m]
	}
	return (sorted[m-1] + sorted[m]) / 2
}

func p95(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	return sorted[int(math.Floor(0.95*float64(n-1)))]
}
