// Package peer holds the media side of a session: a receive-only viewer
// that negotiates with the capture peer through the relay.
package peer

import (
	"context"
	"sync"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"
	"github.com/yixinin/camsight/proto"
	"github.com/yixinin/camsight/signal"
	"github.com/yixinin/camsight/stderr"
)

// MetricsInterval is how often quality samples are reported.
const MetricsInterval = 2 * time.Second

// Viewer is the initiator side. It offers a receive-only video transceiver
// whenever a capture peer joins and reports receive quality while connected.
type Viewer struct {
	sig     signal.Signalinger
	config  webrtc.Configuration
	onTrack func(*webrtc.TrackRemote)

	mu      sync.Mutex
	pc      *webrtc.PeerConnection
	pending []webrtc.ICECandidateInit
	meter   *Meter
}

func NewViewer(config webrtc.Configuration, sig signal.Signalinger) *Viewer {
	return &Viewer{
		sig:    sig,
		config: config,
		meter:  NewMeter(time.Now()),
	}
}

// OnTrack sets a callback for remote tracks. The viewer keeps reading the
// track itself; the callback must not read from it.
func (v *Viewer) OnTrack(f func(*webrtc.TrackRemote)) {
	v.onTrack = f
}

// Run handles signaling until ctx is done or the signaling channel closes.
func (v *Viewer) Run(ctx context.Context) error {
	defer v.hangup()
	tick := time.NewTicker(MetricsInterval)
	defer tick.Stop()

	msgs := v.sig.Messages()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			v.report(ctx)
		case m, ok := <-msgs:
			if !ok {
				return signal.ErrClosed
			}
			if err := v.handle(ctx, m); err != nil {
				logrus.Errorf("handle %s:%v", m.Type(), err)
			}
		}
	}
}

func (v *Viewer) handle(ctx context.Context, m proto.Message) error {
	switch m := m.(type) {
	case proto.PeerJoined:
		logrus.WithField("room", m.Room).Info("capture peer joined, sending offer")
		return v.SendOffer(ctx)
	case proto.PeerLeft:
		logrus.WithField("room", m.Room).Infof("%s left", m.Role)
		v.hangup()
	case proto.Signal:
		switch m.Kind {
		case proto.TypeAnswer:
			sdp, err := m.SessionDescription()
			if err != nil {
				return err
			}
			return v.setAnswer(sdp)
		case proto.TypeIce:
			c, err := m.Candidate()
			if err != nil {
				return err
			}
			return v.addCandidate(c)
		case proto.TypeOffer:
			logrus.Warn("viewer ignores offers")
		}
	}
	return nil
}

// SendOffer starts a fresh negotiation, dropping any previous connection.
func (v *Viewer) SendOffer(ctx context.Context) error {
	v.hangup()
	pc, err := webrtc.NewPeerConnection(v.config)
	if err != nil {
		return stderr.Wrap(err)
	}
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		pc.Close()
		return stderr.Wrap(err)
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		if err := v.sig.SendCandidate(ctx, c.ToJSON()); err != nil {
			logrus.Errorf("send candidate error:%v", err)
		}
	})
	pc.OnConnectionStateChange(func(pcs webrtc.PeerConnectionState) {
		logrus.Infof("connection state changed :%s", pcs)
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		logrus.Infof("track %s %s", track.Kind(), track.Codec().MimeType)
		if v.onTrack != nil {
			v.onTrack(track)
		}
		go v.drain(track)
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		pc.Close()
		return stderr.Wrap(err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		pc.Close()
		return stderr.Wrap(err)
	}

	v.mu.Lock()
	v.pc = pc
	v.pending = nil
	v.meter = NewMeter(time.Now())
	v.mu.Unlock()

	return v.sig.SendSdp(ctx, offer)
}

func (v *Viewer) setAnswer(sdp webrtc.SessionDescription) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.pc == nil {
		return stderr.New("answer without offer")
	}
	if err := v.pc.SetRemoteDescription(sdp); err != nil {
		return stderr.Wrap(err)
	}
	for _, c := range v.pending {
		if err := v.pc.AddICECandidate(c); err != nil {
			logrus.Warnf("add candidate:%v", err)
		}
	}
	v.pending = nil
	return nil
}

// addCandidate queues candidates that arrive before the answer.
func (v *Viewer) addCandidate(c webrtc.ICECandidateInit) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.pc == nil {
		return nil
	}
	if v.pc.RemoteDescription() == nil {
		v.pending = append(v.pending, c)
		return nil
	}
	return stderr.Wrap(v.pc.AddICECandidate(c))
}

func (v *Viewer) drain(track *webrtc.TrackRemote) {
	v.mu.Lock()
	meter := v.meter
	v.mu.Unlock()
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		meter.Observe(pkt.MarshalSize(), pkt.Marker)
	}
}

func (v *Viewer) report(ctx context.Context) {
	v.mu.Lock()
	pc, meter := v.pc, v.meter
	v.mu.Unlock()
	if pc == nil || pc.ConnectionState() != webrtc.PeerConnectionStateConnected {
		return
	}
	rtt, _ := RoundTrip(pc.GetStats())
	if err := v.sig.SendMetrics(ctx, meter.Sample(time.Now(), rtt)); err != nil {
		logrus.Warnf("send metrics:%v", err)
	}
}

func (v *Viewer) hangup() {
	v.mu.Lock()
	pc := v.pc
	v.pc, v.pending = nil, nil
	v.mu.Unlock()
	if pc != nil {
		if err := pc.Close(); err != nil {
			logrus.Warnf("close peer connection:%v", err)
		}
	}
}
