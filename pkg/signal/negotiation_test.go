package signal

import (
	"errors"
	"testing"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cand(s string) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{Candidate: s}
}

func TestOfferThenAnswerConnects(t *testing.T) {
	n := NewNegotiation(nil)
	assert.Equal(t, StateNew, n.State())

	require.NoError(t, n.Offer("v=0 offer"))
	assert.Equal(t, StateOfferSent, n.State())

	require.NoError(t, n.Answer("v=0 answer"))
	assert.Equal(t, StateConnected, n.State())
	assert.Greater(t, n.Latency(), time.Duration(0))
}

func TestAnswerBeforeOfferIsOutOfSequence(t *testing.T) {
	n := NewNegotiation(nil)

	err := n.Answer("v=0 answer")
	assert.ErrorIs(t, err, ErrNegotiationState)
	assert.Equal(t, StateNew, n.State())
}

func TestDuplicateAnswerIsOutOfSequence(t *testing.T) {
	n := NewNegotiation(nil)
	require.NoError(t, n.Offer("v=0 offer"))
	require.NoError(t, n.Answer("v=0 answer"))

	assert.ErrorIs(t, n.Answer("v=0 again"), ErrNegotiationState)
	assert.Equal(t, StateConnected, n.State())
}

func TestEarlyCandidatesQueueUntilAnswer(t *testing.T) {
	n := NewNegotiation(nil)
	require.NoError(t, n.Offer("v=0 offer"))

	var got []string
	deliver := func(c webrtc.ICECandidateInit) { got = append(got, c.Candidate) }

	n.AddCandidate(cand("a"), deliver)
	n.AddCandidate(cand("b"), deliver)
	n.AddCandidate(cand("c"), deliver)
	assert.Empty(t, got, "candidates must not be delivered before the answer")
	assert.Equal(t, 3, n.PendingCandidates())

	require.NoError(t, n.Answer("v=0 answer"))
	assert.Equal(t, []string{"a", "b", "c"}, got, "queued candidates flush in arrival order")
	assert.Equal(t, 0, n.PendingCandidates())

	// After the answer, candidates pass straight through.
	n.AddCandidate(cand("d"), deliver)
	assert.Equal(t, []string{"a", "b", "c", "d"}, got)
}

func TestCandidatesDroppedAfterClose(t *testing.T) {
	n := NewNegotiation(nil)
	require.NoError(t, n.Offer("v=0 offer"))
	n.AddCandidate(cand("a"), func(webrtc.ICECandidateInit) {
		t.Fatal("candidate delivered after close")
	})

	n.Close()
	assert.Equal(t, StateClosed, n.State())
	assert.Equal(t, 0, n.PendingCandidates())

	n.AddCandidate(cand("b"), func(webrtc.ICECandidateInit) {
		t.Fatal("candidate delivered after close")
	})
}

func TestAnswerTimeoutFailsConnection(t *testing.T) {
	transitions := make(chan State, 8)
	failures := make(chan error, 1)
	n := NewNegotiation(func(s State, err error) {
		transitions <- s
		if err != nil {
			failures <- err
		}
	}, WithTimeout(20*time.Millisecond))

	require.NoError(t, n.Offer("v=0 offer"))
	assert.Equal(t, StateOfferSent, <-transitions)

	select {
	case s := <-transitions:
		assert.Equal(t, StateFailed, s)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the failure transition")
	}
	assert.True(t, errors.Is(<-failures, ErrNegotiationTimeout))

	// A late answer is out of sequence, not a resurrection.
	assert.ErrorIs(t, n.Answer("v=0 answer"), ErrNegotiationState)
	assert.Equal(t, StateFailed, n.State())
}

func TestAnswerStopsTimeout(t *testing.T) {
	n := NewNegotiation(func(s State, err error) {
		if err != nil {
			t.Errorf("unexpected failure: %v", err)
		}
	}, WithTimeout(20*time.Millisecond))

	require.NoError(t, n.Offer("v=0 offer"))
	require.NoError(t, n.Answer("v=0 answer"))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, StateConnected, n.State())
}

func TestRenegotiationFromConnected(t *testing.T) {
	n := NewNegotiation(nil)
	require.NoError(t, n.Offer("v=0 offer"))
	require.NoError(t, n.Answer("v=0 answer"))

	require.NoError(t, n.Offer("v=0 second offer"))
	assert.Equal(t, StateOfferSent, n.State())
	require.NoError(t, n.Answer("v=0 second answer"))
	assert.Equal(t, StateConnected, n.State())
}

func TestOfferAfterCloseRejected(t *testing.T) {
	n := NewNegotiation(nil)
	n.Close()
	assert.ErrorIs(t, n.Offer("v=0 offer"), ErrNegotiationState)
}

func TestMirrorConnectionState(t *testing.T) {
	n := NewNegotiation(nil)
	require.NoError(t, n.Offer("v=0 offer"))
	require.NoError(t, n.Answer("v=0 answer"))

	n.MirrorConnectionState(webrtc.PeerConnectionStateDisconnected)
	assert.Equal(t, StateDisconnected, n.State())

	n.MirrorConnectionState(webrtc.PeerConnectionStateFailed)
	assert.Equal(t, StateFailed, n.State())

	n.MirrorConnectionState(webrtc.PeerConnectionStateClosed)
	assert.Equal(t, StateClosed, n.State())

	// Closed is terminal.
	n.MirrorConnectionState(webrtc.PeerConnectionStateConnected)
	assert.Equal(t, StateClosed, n.State())
}

func TestCloseIsIdempotent(t *testing.T) {
	var closes int
	n := NewNegotiation(func(s State, err error) {
		if s == StateClosed {
			closes++
		}
	})
	n.Close()
	n.Close()
	assert.Equal(t, 1, closes)
}
