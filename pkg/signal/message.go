package signal

import (
	"github.com/pion/webrtc/v3"

	"github.com/tomaslejdung/gomeet/pkg/session"
)

// Kind tags a signaling message. The set is closed; unknown kinds are
// logged and ignored, never a crash.
type Kind string

const (
	KindJoin             Kind = "join"
	KindJoined           Kind = "joined"
	KindLeave            Kind = "leave"
	KindList             Kind = "list"
	KindOffer            Kind = "offer"
	KindAnswer           Kind = "answer"
	KindICECandidate     Kind = "ice-candidate"
	KindConnectionState  Kind = "connection-state"
	KindStatsRequest     Kind = "stats-request"
	KindStats            Kind = "stats"
	KindError            Kind = "error"
	KindChat             Kind = "chat"
	KindChatHistory      Kind = "chat-history"
	KindSettings         Kind = "settings"
	KindStartPresenting  Kind = "start-presenting"
	KindStopPresenting   Kind = "stop-presenting"
	KindRequestPresenter Kind = "request-presenter"
	KindPresenterChanged Kind = "presenter-changed"
	KindUserJoined       Kind = "user-joined"
	KindUserLeft         Kind = "user-left"
)

// legacyKinds maps message kinds used by older client variants onto
// the canonical contract. The wire contract is the superset of every
// observed client, so all aliases stay accepted.
var legacyKinds = map[Kind]Kind{
	"ice":               KindICECandidate,
	"chat_message":      KindChat,
	"settings_update":   KindSettings,
	"start_presenting":  KindStartPresenting,
	"stop_presenting":   KindStopPresenting,
	"request_presenter": KindRequestPresenter,
}

// Message is the flat JSON union carried over the signaling channel.
// Only the fields relevant to a given kind are populated.
type Message struct {
	Type Kind   `json:"type"`
	From string `json:"from,omitempty"` // sender participant id
	To   string `json:"to,omitempty"`   // target participant id for routed kinds
	Name string `json:"name,omitempty"` // display name on join

	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
	State     string                   `json:"state,omitempty"` // mirrored transport connection state

	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`

	Settings     *session.CaptureSettings `json:"settings,omitempty"`
	Participants []session.Participant    `json:"participants,omitempty"`
	Presenter    string                   `json:"presenter,omitempty"`
	Chat         []session.ChatMessage    `json:"chat,omitempty"`
	Stats        *Stats                   `json:"stats,omitempty"`
	ICEServers   []webrtc.ICEServer       `json:"iceServers,omitempty"`
}

// Canonical returns the message kind with legacy aliases folded in.
func (m Message) Canonical() Kind {
	if k, ok := legacyKinds[m.Type]; ok {
		return k
	}
	return m.Type
}

// Stats is the payload answering a stats-request.
type Stats struct {
	FPS          int     `json:"fps"`
	Quality      int     `json:"quality"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	Participants int     `json:"participants"`
	FrameSeq     uint64  `json:"frameSeq"`
	Uptime       float64 `json:"uptime"` // seconds
}
