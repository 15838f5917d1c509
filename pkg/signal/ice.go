package signal

import "github.com/pion/webrtc/v3"

// DefaultICEServers is the STUN configuration handed to clients for
// NAT traversal. Traversal itself is supplied, not managed, here.
var DefaultICEServers = []webrtc.ICEServer{
	{URLs: []string{"stun:stun.l.google.com:19302"}},
	{URLs: []string{"stun:stun1.l.google.com:19302"}},
}

// ICEConfig holds optional TURN relay settings from the command line.
type ICEConfig struct {
	TURNServer string
	TURNUser   string
	TURNPass   string
}

// Servers returns the ICE server list: the default STUN pair plus the
// configured TURN relay, if any.
func (c ICEConfig) Servers() []webrtc.ICEServer {
	servers := append([]webrtc.ICEServer(nil), DefaultICEServers...)
	if c.TURNServer != "" {
		servers = append(servers, webrtc.ICEServer{
			URLs:       []string{c.TURNServer},
			Username:   c.TURNUser,
			Credential: c.TURNPass,
		})
	}
	return servers
}
