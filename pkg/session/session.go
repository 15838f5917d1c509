// Package session holds the shared state of a single screen-share
// room: who is registered, who holds the presenter slot, the latest
// submitted frame, the chat log, and the capture settings. All
// compound operations are serialized behind one mutex so the
// single-presenter invariant can never be raced away.
package session

import (
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// staleAfter is the liveness window: a participant with no activity
	// for this long is evicted by the reaper.
	staleAfter = 10 * time.Second

	// reapInterval is how often the reaper scans for stale participants.
	reapInterval = time.Second

	// maxChatRunes is the chat text cap. Longer input is truncated, not
	// rejected: conforming clients already enforce the cap in the input
	// field, so an over-length payload only ever comes from a
	// non-conforming client and dropping the tail keeps the stream intact.
	maxChatRunes = 200

	// chatLogCap bounds the retained chat log; the oldest entry is
	// evicted once the cap is exceeded.
	chatLogCap = 100
)

// Participant is a registered identity in the session.
type Participant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	JoinedAt  time.Time `json:"joinedAt"`
	Presenter bool      `json:"presenter"`

	lastSeen time.Time
}

// ChatMessage is one entry of the bounded, arrival-ordered chat log.
type ChatMessage struct {
	From string    `json:"from"`
	Name string    `json:"name"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Frame is the most-recently-accepted screen image. A zero Frame
// (nil Data) means nothing is being presented.
type Frame struct {
	Data []byte    `json:"-"`
	Seq  uint64    `json:"seq"`
	At   time.Time `json:"at"`
}

// Empty reports whether the frame record holds no image.
func (f Frame) Empty() bool { return f.Data == nil }

// Snapshot is a point-in-time view of the room membership.
type Snapshot struct {
	Participants []Participant `json:"participants"`
	PresenterID  string        `json:"presenter,omitempty"`
	Requests     []string      `json:"requests,omitempty"`
}

// Session owns all mutable room state. Create with New, stop the
// background reaper with Close.
type Session struct {
	mu           sync.RWMutex
	participants map[string]*Participant
	presenterID  string
	requests     []string // ids waiting for the presenter slot, arrival order
	chat         []ChatMessage
	frame        Frame
	frameSeq     uint64
	settings     CaptureSettings
	limits       Limits
	feed         *FrameFeed
	watchers     map[chan string]struct{}

	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a Session.
type Option func(*Session)

// WithLimits sets the ranges the capture subsystem declares as
// supported; settings updates are clamped to them.
func WithLimits(l Limits) Option {
	return func(s *Session) { s.limits = l }
}

// WithSettings sets the initial capture settings (clamped).
func WithSettings(cs CaptureSettings) Option {
	return func(s *Session) { s.settings = s.limits.Clamp(cs) }
}

// New creates a session and starts the liveness reaper.
func New(opts ...Option) *Session {
	s := &Session{
		participants: make(map[string]*Participant),
		limits:       DefaultLimits(),
		settings:     DefaultSettings(),
		feed:         NewFrameFeed(),
		watchers:     make(map[chan string]struct{}),
		done:         make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	go s.reapLoop()
	return s
}

// Close stops the reaper. Participant state is left as-is; the session
// is ephemeral and dies with the process.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Join registers a participant, or refreshes an existing registration
// with the same id (idempotent). An empty id is assigned a fresh uuid.
func (s *Session) Join(id, name string) (Participant, error) {
	name = strings.TrimSpace(name)
	if id == "" {
		id = uuid.NewString()
	}
	if name == "" {
		name = "User " + shortID(id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if p, ok := s.participants[id]; ok {
		p.Name = name
		p.lastSeen = now
		return *p, nil
	}

	p := &Participant{
		ID:       id,
		Name:     name,
		JoinedAt: now,
		lastSeen: now,
	}
	s.participants[id] = p
	log.Printf("Participant %s (%s) joined (total: %d)", name, shortID(id), len(s.participants))
	return *p, nil
}

// Leave removes a participant. Removing the presenter forces the slot
// back to Idle and clears the frame record.
func (s *Session) Leave(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.participants, id)
	s.dropRequestLocked(id)
	log.Printf("Participant %s (%s) left (total: %d)", p.Name, shortID(id), len(s.participants))

	if s.presenterID == id {
		s.releasePresenterLocked("left")
	}
	return nil
}

// Touch refreshes a participant's liveness window. Unknown ids are a
// no-op: stale eviction racing a poll is locally recovered, never an error.
func (s *Session) Touch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.participants[id]; ok {
		p.lastSeen = time.Now()
	}
}

// List returns a snapshot of the membership and presenter slot.
// Never blocks on other participants.
func (s *Session) List() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Participants: make([]Participant, 0, len(s.participants)),
		PresenterID:  s.presenterID,
		Requests:     append([]string(nil), s.requests...),
	}
	for _, p := range s.participants {
		cp := *p
		cp.Presenter = p.ID == s.presenterID
		snap.Participants = append(snap.Participants, cp)
	}
	return snap
}

// StartPresenting claims the presenter slot. Valid only when the slot
// is idle or already held by the caller; held by anyone else it fails
// with ErrPresenterConflict. There is no preemption.
func (s *Session) StartPresenting(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.participants[id]; !ok {
		return ErrNotFound
	}
	switch s.presenterID {
	case "":
		s.presenterID = id
		s.dropRequestLocked(id)
		s.participants[id].lastSeen = time.Now()
		log.Printf("Presenter slot claimed by %s", shortID(id))
		s.notifyPresenterLocked(id)
		return nil
	case id:
		return nil // already presenting
	default:
		return ErrPresenterConflict
	}
}

// StopPresenting releases the presenter slot; only the incumbent may call it.
func (s *Session) StopPresenting(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.participants[id]; !ok {
		return ErrNotFound
	}
	if s.presenterID != id {
		return ErrNotPresenter
	}
	s.releasePresenterLocked("stopped")
	return nil
}

// RequestPresenter grants the slot immediately when idle. When someone
// is presenting it only records the request; the incumbent is never
// auto-revoked.
func (s *Session) RequestPresenter(id string) (granted bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.participants[id]; !ok {
		return false, ErrNotFound
	}
	if s.presenterID == "" {
		s.presenterID = id
		s.dropRequestLocked(id)
		log.Printf("Presenter slot granted to %s on request", shortID(id))
		s.notifyPresenterLocked(id)
		return true, nil
	}
	if s.presenterID == id {
		return true, nil
	}
	for _, r := range s.requests {
		if r == id {
			return false, nil
		}
	}
	s.requests = append(s.requests, id)
	return false, nil
}

// ForceRelease unconditionally returns the presenter slot to idle and
// clears the frame record. Used when the presenter's signaling
// connection fails or times out.
func (s *Session) ForceRelease() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.presenterID != "" {
		s.releasePresenterLocked("connection lost")
	}
}

// SubmitFrame stores a new frame record. Only the current presenter
// may write; anyone else is refused with ErrNotPresenter and the
// stored record is left unchanged. Acceptance overwrites the record:
// last write wins, intermediate frames may be dropped.
func (s *Session) SubmitFrame(id string, data []byte) (Frame, error) {
	if len(data) == 0 {
		return Frame{}, ErrValidation
	}

	s.mu.Lock()
	if s.presenterID == "" || s.presenterID != id {
		s.mu.Unlock()
		return Frame{}, ErrNotPresenter
	}
	s.frameSeq++
	f := Frame{Data: data, Seq: s.frameSeq, At: time.Now()}
	s.frame = f
	if p, ok := s.participants[id]; ok {
		p.lastSeen = f.At
	}
	s.mu.Unlock()

	s.feed.Publish(f)
	return f, nil
}

// FetchFrame returns whatever is currently stored, without blocking.
// The zero Frame is returned when nothing is being presented.
func (s *Session) FetchFrame() Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame
}

// Frames exposes the latest-value broadcast feed so a push-capable
// transport can subscribe instead of polling FetchFrame.
func (s *Session) Frames() *FrameFeed { return s.feed }

// PostMessage appends a chat message. Unknown senders are rejected;
// over-length text is truncated to the cap; the oldest entry is
// evicted once the log exceeds its bound.
func (s *Session) PostMessage(id, text string) (ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ChatMessage{}, ErrValidation
	}
	if runes := []rune(text); len(runes) > maxChatRunes {
		text = string(runes[:maxChatRunes])
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[id]
	if !ok {
		return ChatMessage{}, ErrNotFound
	}
	p.lastSeen = time.Now()

	msg := ChatMessage{From: id, Name: p.Name, Text: text, At: p.lastSeen}
	s.chat = append(s.chat, msg)
	if len(s.chat) > chatLogCap {
		s.chat = append(s.chat[:0], s.chat[1:]...)
	}
	return msg, nil
}

// Messages returns the full retained chat log in arrival order.
func (s *Session) Messages() []ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ChatMessage(nil), s.chat...)
}

// PresenterWatch returns a channel carrying presenter transitions (the
// new presenter id, "" for idle). Notifications are best-effort: a
// slow watcher misses intermediate transitions, never the ability to
// re-read List().
func (s *Session) PresenterWatch() chan string {
	ch := make(chan string, 8)
	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

// PresenterUnwatch removes a watcher registered with PresenterWatch.
func (s *Session) PresenterUnwatch(ch chan string) {
	s.mu.Lock()
	delete(s.watchers, ch)
	s.mu.Unlock()
}

// releasePresenterLocked transitions Presenting -> Idle and clears the
// frame record. Caller holds s.mu.
func (s *Session) releasePresenterLocked(reason string) {
	id := s.presenterID
	s.presenterID = ""
	s.frame = Frame{}
	log.Printf("Presenter slot released by %s (%s)", shortID(id), reason)
	s.feed.Publish(Frame{})
	s.notifyPresenterLocked("")
}

func (s *Session) notifyPresenterLocked(id string) {
	for ch := range s.watchers {
		select {
		case ch <- id:
		default:
		}
	}
}

func (s *Session) dropRequestLocked(id string) {
	for i, r := range s.requests {
		if r == id {
			s.requests = append(s.requests[:i], s.requests[i+1:]...)
			return
		}
	}
}

// reapLoop evicts participants whose liveness window expired.
func (s *Session) reapLoop() {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.expireStale(now)
		}
	}
}

// expireStale removes participants idle longer than the liveness
// window. A stale presenter triggers forced release.
func (s *Session) expireStale(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, p := range s.participants {
		if now.Sub(p.lastSeen) < staleAfter {
			continue
		}
		delete(s.participants, id)
		s.dropRequestLocked(id)
		log.Printf("Participant %s (%s) timed out", p.Name, shortID(id))
		if s.presenterID == id {
			s.releasePresenterLocked("timed out")
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
