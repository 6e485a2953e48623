package proto

import (
	"encoding/json"

	"github.com/pion/webrtc/v3"
	"github.com/yixinin/camsight/stderr"
)

// Payload shapes used by camsight's own peers. The relay never looks at them.

type sdpPacket struct {
	Type Type                       `json:"type"`
	Room string                     `json:"room"`
	Sdp  *webrtc.SessionDescription `json:"sdp,omitempty"`
}

type icePacket struct {
	Type      Type                     `json:"type"`
	Room      string                   `json:"room"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
}

func NewSdpSignal(room string, sdp webrtc.SessionDescription) (Signal, error) {
	var kind = TypeOffer
	if sdp.Type == webrtc.SDPTypeAnswer {
		kind = TypeAnswer
	}
	raw, err := json.Marshal(sdpPacket{Type: kind, Room: room, Sdp: &sdp})
	if err != nil {
		return Signal{}, stderr.Wrap(err)
	}
	return Signal{Kind: kind, Room: room, Raw: raw}, nil
}

func NewIceSignal(room string, c webrtc.ICECandidateInit) (Signal, error) {
	raw, err := json.Marshal(icePacket{Type: TypeIce, Room: room, Candidate: &c})
	if err != nil {
		return Signal{}, stderr.Wrap(err)
	}
	return Signal{Kind: TypeIce, Room: room, Raw: raw}, nil
}

// SessionDescription extracts the sdp of an offer or answer.
func (s Signal) SessionDescription() (webrtc.SessionDescription, error) {
	var p sdpPacket
	if err := json.Unmarshal(s.Raw, &p); err != nil {
		return webrtc.SessionDescription{}, stderr.Wrap(err)
	}
	if p.Sdp == nil {
		return webrtc.SessionDescription{}, stderr.New("signal has no sdp")
	}
	return *p.Sdp, nil
}

// Candidate extracts the candidate of an ice message.
func (s Signal) Candidate() (webrtc.ICECandidateInit, error) {
	var p icePacket
	if err := json.Unmarshal(s.Raw, &p); err != nil {
		return webrtc.ICECandidateInit{}, stderr.Wrap(err)
	}
	if p.Candidate == nil {
		return webrtc.ICECandidateInit{}, stderr.New("signal has no candidate")
	}
	return *p.Candidate, nil
}
