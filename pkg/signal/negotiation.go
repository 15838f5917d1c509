// Package signal relays the WebRTC session-negotiation traffic for a
// screen-share room and tracks a per-connection state machine over it.
// The media path itself is peer to peer; this package only moves and
// orders the offer/answer/candidate messages.
package signal

import (
	"errors"
	"sync"
	"time"

	"github.com/pion/webrtc/v3"
)

// DefaultNegotiationTimeout bounds how long an offer may wait for its
// answer before the connection fails.
const DefaultNegotiationTimeout = 5 * time.Second

// Errors surfaced as a terminal connection-state transition; they
// close only the affected connection, never the session.
var (
	ErrNegotiationTimeout = errors.New("no answer within the negotiation window")
	ErrNegotiationState   = errors.New("signaling message out of sequence")
)

// State is the lifecycle of one negotiated connection.
type State int

const (
	StateNew State = iota
	StateOfferSent
	StateConnected
	StateDisconnected
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateOfferSent:
		return "offer-sent"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Negotiation tracks the offer/answer/ICE exchange for a single
// connection. Candidates that arrive before the remote description is
// applied are queued, never dropped for being early; once the
// connection is Closed they are dropped silently.
type Negotiation struct {
	mu      sync.Mutex
	state   State
	pending []queuedCandidate
	offerAt time.Time
	latency time.Duration
	timer   *time.Timer
	timeout time.Duration

	// onState observes transitions; err is non-nil for terminal
	// failures (timeout). Invoked without the lock held.
	onState func(State, error)
}

type queuedCandidate struct {
	candidate webrtc.ICECandidateInit
	deliver   func(webrtc.ICECandidateInit)
}

// NegotiationOption configures a Negotiation.
type NegotiationOption func(*Negotiation)

// WithTimeout overrides the answer timeout.
func WithTimeout(d time.Duration) NegotiationOption {
	return func(n *Negotiation) { n.timeout = d }
}

// NewNegotiation creates a connection record in the New state.
// onState may be nil.
func NewNegotiation(onState func(State, error), opts ...NegotiationOption) *Negotiation {
	n := &Negotiation{
		state:   StateNew,
		timeout: DefaultNegotiationTimeout,
		onState: onState,
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Offer records an outbound offer and arms the answer timer. Valid
// from any non-closed state so a presenter can renegotiate.
func (n *Negotiation) Offer(sdp string) error {
	if sdp == "" {
		return ErrNegotiationState
	}

	n.mu.Lock()
	if n.state == StateClosed {
		n.mu.Unlock()
		return ErrNegotiationState
	}
	n.state = StateOfferSent
	n.offerAt = time.Now()
	n.stopTimerLocked()
	n.timer = time.AfterFunc(n.timeout, n.timedOut)
	n.mu.Unlock()

	n.notify(StateOfferSent, nil)
	return nil
}

// Answer applies the remote description. Valid only while an offer is
// outstanding; anything else is out of sequence. On success the
// connection is Connected, the offer-to-answer latency is recorded and
// queued candidates are flushed in arrival order.
func (n *Negotiation) Answer(sdp string) error {
	if sdp == "" {
		return ErrNegotiationState
	}

	n.mu.Lock()
	if n.state != StateOfferSent {
		n.mu.Unlock()
		return ErrNegotiationState
	}
	n.stopTimerLocked()
	n.state = StateConnected
	n.latency = time.Since(n.offerAt)
	flush := n.pending
	n.pending = nil
	n.mu.Unlock()

	for _, q := range flush {
		q.deliver(q.candidate)
	}
	n.notify(StateConnected, nil)
	return nil
}

// AddCandidate accepts a trickled ICE candidate. Before the remote
// description is applied the candidate and its delivery are queued;
// afterwards it is delivered immediately. Candidates for a Closed
// connection are dropped silently.
func (n *Negotiation) AddCandidate(c webrtc.ICECandidateInit, deliver func(webrtc.ICECandidateInit)) {
	n.mu.Lock()
	switch n.state {
	case StateClosed:
		n.mu.Unlock()
		return
	case StateConnected:
		n.mu.Unlock()
		deliver(c)
		return
	default:
		n.pending = append(n.pending, queuedCandidate{candidate: c, deliver: deliver})
		n.mu.Unlock()
	}
}

// MirrorConnectionState folds a state signal from the underlying peer
// transport into the negotiation lifecycle.
func (n *Negotiation) MirrorConnectionState(cs webrtc.PeerConnectionState) {
	var next State
	switch cs {
	case webrtc.PeerConnectionStateConnected:
		next = StateConnected
	case webrtc.PeerConnectionStateDisconnected:
		next = StateDisconnected
	case webrtc.PeerConnectionStateFailed:
		next = StateFailed
	case webrtc.PeerConnectionStateClosed:
		n.Close()
		return
	default:
		return
	}

	n.mu.Lock()
	if n.state == StateClosed {
		n.mu.Unlock()
		return
	}
	n.stopTimerLocked()
	n.state = next
	if next != StateConnected {
		n.pending = nil
	}
	n.mu.Unlock()

	n.notify(next, nil)
}

// Close tears the connection down: queued candidates are discarded,
// the timer stopped. Idempotent.
func (n *Negotiation) Close() {
	n.mu.Lock()
	if n.state == StateClosed {
		n.mu.Unlock()
		return
	}
	n.stopTimerLocked()
	n.state = StateClosed
	n.pending = nil
	n.mu.Unlock()

	n.notify(StateClosed, nil)
}

// State returns the current lifecycle state.
func (n *Negotiation) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Latency returns the recorded offer-to-answer time, zero until an
// answer has been applied.
func (n *Negotiation) Latency() time.Duration {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.latency
}

// PendingCandidates returns how many candidates are queued. Used by
// tests and the stats reply.
func (n *Negotiation) PendingCandidates() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.pending)
}

func (n *Negotiation) timedOut() {
	n.mu.Lock()
	if n.state != StateOfferSent {
		n.mu.Unlock()
		return
	}
	n.state = StateFailed
	n.pending = nil
	n.mu.Unlock()

	n.notify(StateFailed, ErrNegotiationTimeout)
}

func (n *Negotiation) stopTimerLocked() {
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}

func (n *Negotiation) notify(s State, err error) {
	if n.onState != nil {
		n.onState(s, err)
	}
}
