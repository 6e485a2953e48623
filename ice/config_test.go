package ice

import (
	"testing"

	"github.com/matryer/is"
	"github.com/pion/webrtc/v3"
)

func TestConfig(t *testing.T) {
	is := is.New(t)
	cfg := Config([]string{"stun:stun.l.google.com:19302", "turn:alice:s3cret@turn.example.com:3478?transport=udp"})
	is.Equal(len(cfg.ICEServers), 2)
	is.Equal(cfg.ICEServers[0].URLs, []string{"stun:stun.l.google.com:19302"})

	turn := cfg.ICEServers[1]
	is.Equal(turn.URLs, []string{"turn:turn.example.com:3478?transport=udp"})
	is.Equal(turn.Username, "alice")
	is.Equal(turn.Credential, "s3cret")
	is.Equal(turn.CredentialType, webrtc.ICECredentialTypePassword)

	is.Equal(len(Config(nil).ICEServers), 0)
}
