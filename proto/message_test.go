package proto

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/matryer/is"
	"github.com/pion/webrtc/v3"
)

func TestDecodeControl(t *testing.T) {
	is := is.New(t)

	m, err := Decode([]byte(`{"type":"create","room":"  lobby "}`))
	is.NoErr(err)
	is.Equal(m, Create{Room: "lobby"})

	m, err = Decode([]byte(`{"type":"join","room":42}`))
	is.NoErr(err)
	is.Equal(m, Join{Room: "42"})

	m, err = Decode([]byte(`{"type":"peer_left","room":"r","role":"phone"}`))
	is.NoErr(err)
	is.Equal(m, PeerLeft{Room: "r", Role: Capture})
}

func TestDecodeIgnoredAndMalformed(t *testing.T) {
	is := is.New(t)

	for _, frame := range []string{
		`{"type":"create"}`,
		`{"type":"join","room":"   "}`,
		`{"type":"join","room":null}`,
		`{"type":"dance","room":"r"}`,
		`{}`,
	} {
		_, err := Decode([]byte(frame))
		is.True(errors.Is(err, ErrIgnored)) // frame should be ignored
	}

	for _, frame := range []string{`not json`, `[1,2]`, `"create"`, ``} {
		_, err := Decode([]byte(frame))
		is.True(errors.Is(err, ErrMalformed)) // frame should be malformed
	}
}

func TestSignalIsVerbatim(t *testing.T) {
	is := is.New(t)
	frame := []byte(`{"type":"ice","room":"r","candidate":{"candidate":"a=1","x-extra":[1,2,3]}}`)

	m, err := Decode(frame)
	is.NoErr(err)
	sig, ok := m.(Signal)
	is.True(ok)
	is.Equal(sig.Kind, TypeIce)
	is.True(sig.Type().IsSignal())

	out, err := Encode(sig)
	is.NoErr(err)
	is.Equal(string(out), string(frame))
}

func TestDecodeMetrics(t *testing.T) {
	is := is.New(t)
	m, err := Decode([]byte(`{"type":"metrics","room":"r","role":"viewer","bitrate":850,"fps":24,"latencyMs":38,"timestamp":"2024-01-01T00:00:00Z"}`))
	is.NoErr(err)
	is.Equal(m, Metrics{Room: "r", Role: Initiator, Timestamp: "2024-01-01T00:00:00Z", Bitrate: 850, Fps: 24, LatencyMs: 38})

	m, err = Decode([]byte(`{"type":"metrics","room":"r"}`))
	is.NoErr(err)
	is.Equal(m.(Metrics).Fps, 0.0)
}

func TestEncodeReplies(t *testing.T) {
	is := is.New(t)

	data, err := Encode(PeerLeft{Room: "r", Role: Initiator})
	is.NoErr(err)
	var got map[string]any
	is.NoErr(json.Unmarshal(data, &got))
	is.Equal(got["type"], "peer_left")
	is.Equal(got["room"], "r")
	is.Equal(got["role"], "initiator")

	data, err = Encode(Created{Room: "r"})
	is.NoErr(err)
	m, err := Decode(data)
	is.NoErr(err)
	is.Equal(m, Created{Room: "r"})
}

func TestSdpSignal(t *testing.T) {
	is := is.New(t)
	sig, err := NewSdpSignal("r", webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0"})
	is.NoErr(err)
	is.Equal(sig.Kind, TypeAnswer)

	m, err := Decode(sig.Raw)
	is.NoErr(err)
	sdp, err := m.(Signal).SessionDescription()
	is.NoErr(err)
	is.Equal(sdp.Type, webrtc.SDPTypeAnswer)
	is.Equal(sdp.SDP, "v=0")

	_, err = m.(Signal).Candidate()
	is.True(err != nil)
}

func TestIceSignal(t *testing.T) {
	is := is.New(t)
	mid := "0"
	sig, err := NewIceSignal("r", webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 1 10.0.0.1 5000 typ host", SDPMid: &mid})
	is.NoErr(err)
	c, err := sig.Candidate()
	is.NoErr(err)
	is.Equal(*c.SDPMid, "0")
}

func TestRole(t *testing.T) {
	is := is.New(t)
	is.Equal(Initiator.Other(), Capture)
	is.Equal(Capture.Other(), Initiator)
	_, ok := ParseRole("spectator")
	is.True(!ok)
}
