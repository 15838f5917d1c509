package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameFeedLatest(t *testing.T) {
	ff := NewFrameFeed()
	assert.True(t, ff.Latest().Empty())

	ff.Publish(Frame{Data: []byte("a"), Seq: 1})
	ff.Publish(Frame{Data: []byte("b"), Seq: 2})
	assert.Equal(t, uint64(2), ff.Latest().Seq)
}

func TestFrameFeedDropsStaleForSlowSubscriber(t *testing.T) {
	ff := NewFrameFeed()
	ch := ff.Subscribe()
	defer ff.Unsubscribe(ch)

	// Subscriber never drains between publishes: only the most recent
	// value must be waiting.
	ff.Publish(Frame{Data: []byte("a"), Seq: 1})
	ff.Publish(Frame{Data: []byte("b"), Seq: 2})
	ff.Publish(Frame{Data: []byte("c"), Seq: 3})

	got := <-ch
	assert.Equal(t, uint64(3), got.Seq)

	select {
	case extra := <-ch:
		t.Fatalf("unexpected queued frame seq=%d", extra.Seq)
	default:
	}
}

func TestFrameFeedUnsubscribe(t *testing.T) {
	ff := NewFrameFeed()
	ch := ff.Subscribe()
	ff.Unsubscribe(ch)

	ff.Publish(Frame{Data: []byte("a"), Seq: 1})
	select {
	case <-ch:
		t.Fatal("unsubscribed channel received a frame")
	default:
	}
}
