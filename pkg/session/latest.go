package session

import "sync"

// FrameFeed is a latest-value broadcast: Publish replaces the stored
// value and offers it to every current subscriber, dropping the stale
// value a slow subscriber hasn't drained yet. Polling clients read
// Latest; a push-capable transport subscribes. Most recent wins in
// both cases.
type FrameFeed struct {
	mu     sync.Mutex
	latest Frame
	subs   map[chan Frame]struct{}
}

// NewFrameFeed creates an empty feed.
func NewFrameFeed() *FrameFeed {
	return &FrameFeed{subs: make(map[chan Frame]struct{})}
}

// Publish stores f as the latest value and delivers it to current
// subscribers without blocking.
func (ff *FrameFeed) Publish(f Frame) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	ff.latest = f
	for ch := range ff.subs {
		// Drop the undrained value, then offer the new one.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- f:
		default:
		}
	}
}

// Latest returns the most recently published value without blocking.
func (ff *FrameFeed) Latest() Frame {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return ff.latest
}

// Subscribe registers a new subscriber channel (capacity 1). The
// caller must Unsubscribe when done.
func (ff *FrameFeed) Subscribe() chan Frame {
	ch := make(chan Frame, 1)
	ff.mu.Lock()
	ff.subs[ch] = struct{}{}
	ff.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel.
func (ff *FrameFeed) Unsubscribe(ch chan Frame) {
	ff.mu.Lock()
	delete(ff.subs, ch)
	ff.mu.Unlock()
}
