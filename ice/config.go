package ice

import (
	"strings"

	"github.com/pion/webrtc/v3"
)

// Config builds the peer connection configuration from a list of STUN or
// TURN urls. TURN credentials may be given inline as turn:user:pass@host.
func Config(urls []string) webrtc.Configuration {
	var servers []webrtc.ICEServer
	for _, u := range urls {
		servers = append(servers, parse(u))
	}
	return webrtc.Configuration{ICEServers: servers}
}

func parse(u string) webrtc.ICEServer {
	for _, scheme := range []string{"turn:", "turns:"} {
		rest, ok := strings.CutPrefix(u, scheme)
		if !ok {
			continue
		}
		at := strings.LastIndexByte(rest, '@')
		if at < 0 {
			break
		}
		cred := rest[:at]
		colon := strings.IndexByte(cred, ':')
		if colon < 0 {
			break
		}
		return webrtc.ICEServer{
			URLs:           []string{scheme + rest[at+1:]},
			Username:       cred[:colon],
			Credential:     cred[colon+1:],
			CredentialType: webrtc.ICECredentialTypePassword,
		}
	}
	return webrtc.ICEServer{URLs: []string{u}}
}
