package peer

import (
	"math"
	"sync"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/yixinin/camsight/proto"
)

// Meter counts received media between two samples.
type Meter struct {
	mu     sync.Mutex
	bytes  uint64
	frames uint64
	last   time.Time
}

func NewMeter(now time.Time) *Meter {
	return &Meter{last: now}
}

// Observe records one rtp packet of size n. marker is set on the last
// packet of a video frame.
func (m *Meter) Observe(n int, marker bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bytes += uint64(n)
	if marker {
		m.frames++
	}
}

// Sample turns what was observed since the previous sample into a metrics
// message: bitrate in kbps, frames per second and round trip time in ms.
func (m *Meter) Sample(now time.Time, rtt time.Duration) proto.Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	elapsed := now.Sub(m.last)
	var out proto.Metrics
	if elapsed > 0 {
		ms := float64(elapsed) / float64(time.Millisecond)
		out.Bitrate = math.Round(float64(m.bytes) * 8 / ms)
		out.Fps = math.Round(float64(m.frames) * 1000 / ms)
	}
	out.LatencyMs = math.Round(float64(rtt) / float64(time.Millisecond))
	out.Timestamp = now.UTC().Format(time.RFC3339Nano)

	m.bytes, m.frames, m.last = 0, 0, now
	return out
}

// RoundTrip returns the current rtt of the nominated candidate pair.
func RoundTrip(report webrtc.StatsReport) (time.Duration, bool) {
	for _, s := range report {
		pair, ok := s.(webrtc.ICECandidatePairStats)
		if !ok || !pair.Nominated || pair.CurrentRoundTripTime <= 0 {
			continue
		}
		return time.Duration(math.Round(pair.CurrentRoundTripTime * float64(time.Second))), true
	}
	return 0, false
}
