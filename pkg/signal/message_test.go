package signal

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalFoldsLegacyAliases(t *testing.T) {
	cases := map[Kind]Kind{
		"ice":               KindICECandidate,
		"chat_message":      KindChat,
		"settings_update":   KindSettings,
		"start_presenting":  KindStartPresenting,
		"stop_presenting":   KindStopPresenting,
		"request_presenter": KindRequestPresenter,
	}
	for alias, want := range cases {
		assert.Equal(t, want, Message{Type: alias}.Canonical(), "alias %q", alias)
	}
}

func TestCanonicalPassesThroughKnownAndUnknownKinds(t *testing.T) {
	assert.Equal(t, KindOffer, Message{Type: KindOffer}.Canonical())
	assert.Equal(t, Kind("totally-new"), Message{Type: "totally-new"}.Canonical())
}

func TestMessageOmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(Message{Type: KindLeave, From: "abc"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"leave","from":"abc"}`, string(data))
}

func TestMessageDecodesWireOffer(t *testing.T) {
	raw := `{"type":"offer","from":"p1","to":"v1","sdp":"v=0 offer"}`

	var msg Message
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))
	assert.Equal(t, KindOffer, msg.Type)
	assert.Equal(t, "p1", msg.From)
	assert.Equal(t, "v1", msg.To)
	assert.Equal(t, "v=0 offer", msg.SDP)
}

func TestICEConfigServers(t *testing.T) {
	plain := ICEConfig{}.Servers()
	assert.Len(t, plain, len(DefaultICEServers))

	withTURN := ICEConfig{
		TURNServer: "turn:relay.example.com:3478",
		TURNUser:   "user",
		TURNPass:   "pass",
	}.Servers()
	require.Len(t, withTURN, len(DefaultICEServers)+1)
	last := withTURN[len(withTURN)-1]
	assert.Equal(t, []string{"turn:relay.example.com:3478"}, last.URLs)
	assert.Equal(t, "user", last.Username)
}
