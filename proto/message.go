package proto

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

type Type string

const (
	TypeCreate     Type = "create"
	TypeCreated    Type = "created"
	TypeJoin       Type = "join"
	TypeJoined     Type = "joined"
	TypePeerJoined Type = "peer_joined"
	TypeOffer      Type = "offer"
	TypeAnswer     Type = "answer"
	TypeIce        Type = "ice"
	TypePeerLeft   Type = "peer_left"
	TypeMetrics    Type = "metrics"
)

// IsSignal reports whether t is one of the opaque negotiation tags.
func (t Type) IsSignal() bool {
	switch t {
	case TypeOffer, TypeAnswer, TypeIce:
		return true
	}
	return false
}

var (
	// ErrMalformed is returned for frames that are not a JSON object.
	ErrMalformed = errors.New("malformed message")
	// ErrIgnored is returned for well-formed frames that carry no recognized
	// control message: unknown tags, or create/join without a room.
	ErrIgnored = errors.New("ignored message")
)

// Message is the closed set of control messages exchanged with the relay.
type Message interface {
	Type() Type
	RoomID() string
	message()
}

type Create struct {
	Room string
}

type Created struct {
	Room string
}

type Join struct {
	Room string
}

type Joined struct {
	Room string
}

type PeerJoined struct {
	Room string
}

// Signal is an offer, answer or ice message. Raw holds the frame exactly as
// it was received and is what gets forwarded.
type Signal struct {
	Kind Type
	Room string
	Raw  json.RawMessage
}

type PeerLeft struct {
	Room string
	Role Role
}

type Metrics struct {
	Room      string
	Role      Role
	Timestamp string
	Bitrate   float64
	Fps       float64
	LatencyMs float64
}

func (Create) Type() Type     { return TypeCreate }
func (Created) Type() Type    { return TypeCreated }
func (Join) Type() Type       { return TypeJoin }
func (Joined) Type() Type     { return TypeJoined }
func (PeerJoined) Type() Type { return TypePeerJoined }
func (s Signal) Type() Type   { return s.Kind }
func (PeerLeft) Type() Type   { return TypePeerLeft }
func (Metrics) Type() Type    { return TypeMetrics }

func (m Create) RoomID() string     { return m.Room }
func (m Created) RoomID() string    { return m.Room }
func (m Join) RoomID() string       { return m.Room }
func (m Joined) RoomID() string     { return m.Room }
func (m PeerJoined) RoomID() string { return m.Room }
func (m Signal) RoomID() string     { return m.Room }
func (m PeerLeft) RoomID() string   { return m.Room }
func (m Metrics) RoomID() string    { return m.Room }

func (Create) message()     {}
func (Created) message()    {}
func (Join) message()       {}
func (Joined) message()     {}
func (PeerJoined) message() {}
func (Signal) message()     {}
func (PeerLeft) message()   {}
func (Metrics) message()    {}

type envelope struct {
	Type      Type            `json:"type"`
	Room      json.RawMessage `json:"room,omitempty"`
	Role      string          `json:"role,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	Bitrate   *float64        `json:"bitrate,omitempty"`
	Fps       *float64        `json:"fps,omitempty"`
	LatencyMs *float64        `json:"latencyMs,omitempty"`
}

// Decode validates a text frame and returns the message it carries.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, ErrMalformed
	}
	room := roomString(env.Room)

	if env.Type.IsSignal() {
		raw := make(json.RawMessage, len(data))
		copy(raw, data)
		return Signal{Kind: env.Type, Room: room, Raw: raw}, nil
	}
	switch env.Type {
	case TypeCreate, TypeJoin:
		if room == "" {
			return nil, ErrIgnored
		}
		if env.Type == TypeCreate {
			return Create{Room: room}, nil
		}
		return Join{Room: room}, nil
	case TypeCreated:
		return Created{Room: room}, nil
	case TypeJoined:
		return Joined{Room: room}, nil
	case TypePeerJoined:
		return PeerJoined{Room: room}, nil
	case TypePeerLeft:
		role, _ := ParseRole(env.Role)
		return PeerLeft{Room: room, Role: role}, nil
	case TypeMetrics:
		role, _ := ParseRole(env.Role)
		return Metrics{
			Room:      room,
			Role:      role,
			Timestamp: env.Timestamp,
			Bitrate:   value(env.Bitrate),
			Fps:       value(env.Fps),
			LatencyMs: value(env.LatencyMs),
		}, nil
	}
	return nil, ErrIgnored
}

// Encode renders m as a text frame. Signals with a Raw frame are returned verbatim.
func Encode(m Message) ([]byte, error) {
	var env = envelope{Type: m.Type()}
	if room := m.RoomID(); room != "" {
		env.Room, _ = json.Marshal(room)
	}
	switch v := m.(type) {
	case Signal:
		if len(v.Raw) > 0 {
			return v.Raw, nil
		}
	case PeerLeft:
		env.Role = string(v.Role)
	case Metrics:
		env.Role = string(v.Role)
		env.Timestamp = v.Timestamp
		env.Bitrate, env.Fps, env.LatencyMs = &v.Bitrate, &v.Fps, &v.LatencyMs
	}
	return json.Marshal(env)
}

// roomString accepts a string or number room id, trimmed.
func roomString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func value(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
