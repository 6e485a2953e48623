// Package telemetry stores the session-quality samples peers report through
// the relay. Samples are append-only and kept in arrival order.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/yixinin/camsight/proto"
)

// Sample is one metrics report. Timestamp is the relay's clock;
// ClientTimestamp is whatever the peer sent, kept as is.
type Sample struct {
	Timestamp       time.Time  `json:"timestamp"`
	ClientTimestamp string     `json:"clientTimestamp,omitempty"`
	Room            string     `json:"room"`
	Role            proto.Role `json:"role"`
	Bitrate         float64    `json:"bitrate"`
	Fps             float64    `json:"fps"`
	LatencyMs       float64    `json:"latencyMs"`
}

// FromMetrics builds a sample from a metrics message, stamped with now.
func FromMetrics(m proto.Metrics, now time.Time) Sample {
	return Sample{
		Timestamp:       now.UTC(),
		ClientTimestamp: m.Timestamp,
		Room:            m.Room,
		Role:            m.Role,
		Bitrate:         m.Bitrate,
		Fps:             m.Fps,
		LatencyMs:       m.LatencyMs,
	}
}

type Sink interface {
	Append(ctx context.Context, s Sample) error
}

// Query selects samples for Scan. Zero values match everything.
type Query struct {
	Room  string
	Limit int
}

func (q Query) match(s Sample) bool {
	return q.Room == "" || q.Room == s.Room
}

// Store is a sink that can be read back.
type Store interface {
	Sink
	Scan(ctx context.Context, q Query) ([]Sample, error)
	Close() error
}

// Memory keeps samples in a slice. Used by tests and when persistence is off.
type Memory struct {
	sync.Mutex
	samples []Sample
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Append(ctx context.Context, s Sample) error {
	m.Lock()
	defer m.Unlock()
	m.samples = append(m.samples, s)
	return nil
}

func (m *Memory) Scan(ctx context.Context, q Query) ([]Sample, error) {
	m.Lock()
	defer m.Unlock()
	var out = make([]Sample, 0)
	for _, s := range m.samples {
		if !q.match(s) {
			continue
		}
		out = append(out, s)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) Close() error {
	return nil
}
