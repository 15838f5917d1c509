package signal

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"

	"github.com/tomaslejdung/gomeet/pkg/session"
)

// Hub routes signaling messages between the participants of one
// session over WebSocket connections. Each connected client owns a
// Negotiation tracking its media leg; the hub only relays and orders,
// it never touches media.
type Hub struct {
	sess     *session.Session
	ice      []webrtc.ICEServer
	upgrader websocket.Upgrader
	start    time.Time

	mu      sync.RWMutex
	clients map[string]*client // by participant id, populated after join

	done      chan struct{}
	closeOnce sync.Once
}

// client is one WebSocket participant.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu         sync.Mutex
	id         string
	neg        *Negotiation
	sendClosed bool
}

// NewHub creates a hub bound to a session and starts the presenter
// transition broadcaster.
func NewHub(sess *session.Session, ice []webrtc.ICEServer) *Hub {
	h := &Hub{
		sess: sess,
		ice:  ice,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // clients connect from arbitrary origins
			},
		},
		start:   time.Now(),
		clients: make(map[string]*client),
		done:    make(chan struct{}),
	}
	go h.watchPresenter()
	return h
}

// Close stops the hub and disconnects every client.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.conn.Close()
		delete(h.clients, id)
	}
}

// HandleWebSocket upgrades an HTTP request into a signaling connection.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
	}

	go c.writePump()
	go c.readPump()
}

// watchPresenter broadcasts presenter transitions to every client.
func (h *Hub) watchPresenter() {
	ch := h.sess.PresenterWatch()
	defer h.sess.PresenterUnwatch(ch)

	for {
		select {
		case <-h.done:
			return
		case id := <-ch:
			snap := h.sess.List()
			h.broadcast(Message{
				Type:         KindPresenterChanged,
				Presenter:    id,
				Participants: snap.Participants,
			})
		}
	}
}

// broadcast sends a message to every connected client. Slow clients
// are skipped; they re-sync from their next poll.
func (h *Hub) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.trySend(data)
	}
}

// broadcastExcept sends a message to every client but one.
func (h *Hub) broadcastExcept(exceptID string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.clients {
		if id == exceptID {
			continue
		}
		c.trySend(data)
	}
}

// lookup returns the client registered under a participant id.
func (h *Hub) lookup(id string) (*client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[id]
	return c, ok
}

// stats builds the reply for a stats-request.
func (h *Hub) stats() *Stats {
	cs := h.sess.Settings()
	return &Stats{
		FPS:          cs.FPS,
		Quality:      cs.Quality,
		Width:        cs.Width,
		Height:       cs.Height,
		Participants: len(h.sess.List().Participants),
		FrameSeq:     h.sess.FetchFrame().Seq,
		Uptime:       time.Since(h.start).Seconds(),
	}
}

// readPump reads messages from the WebSocket.
func (c *client) readPump() {
	defer func() {
		c.disconnect()
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Invalid message format: %v", err)
			continue
		}

		c.handleMessage(msg)
	}
}

// writePump sends queued messages to the WebSocket.
func (c *client) writePump() {
	defer c.conn.Close()

	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

// disconnect tears down all per-connection state: the participant is
// removed (forcing presenter release if held), the negotiation closed
// and its candidate queue discarded.
func (c *client) disconnect() {
	c.mu.Lock()
	id := c.id
	neg := c.neg
	c.id = ""
	c.neg = nil
	c.mu.Unlock()

	if neg != nil {
		neg.Close()
	}

	if id != "" {
		c.hub.mu.Lock()
		if cur, ok := c.hub.clients[id]; ok && cur == c {
			delete(c.hub.clients, id)
		}
		c.hub.mu.Unlock()
	}

	// Release the writePump once no sender can reach the channel.
	c.mu.Lock()
	closeSend := !c.sendClosed
	c.sendClosed = true
	c.mu.Unlock()
	if closeSend {
		close(c.send)
	}

	if id == "" {
		return
	}
	if err := c.hub.sess.Leave(id); err == nil {
		c.hub.broadcast(Message{Type: KindUserLeft, From: id})
	}
}

// trySend queues raw bytes for the client unless its send channel has
// already been closed by teardown. Slow clients are skipped.
func (c *client) trySend(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendClosed {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// reply queues a message for this client only.
func (c *client) reply(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.trySend(data)
}

func (c *client) replyError(err error) {
	c.reply(Message{Type: KindError, Error: err.Error()})
}

// participantID returns the id assigned at join time.
func (c *client) participantID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// handleMessage dispatches one signaling message. Unknown kinds are a
// logged no-op so legacy client variants never crash the room.
func (c *client) handleMessage(msg Message) {
	h := c.hub
	id := c.participantID()
	if id != "" {
		h.sess.Touch(id)
	}

	switch msg.Canonical() {
	case KindJoin:
		c.handleJoin(msg)

	case KindLeave:
		c.disconnect()

	case KindList:
		snap := h.sess.List()
		c.reply(Message{Type: KindList, Participants: snap.Participants, Presenter: snap.PresenterID})

	case KindStartPresenting:
		if id == "" {
			return
		}
		if err := h.sess.StartPresenting(id); err != nil {
			c.replyError(err)
		}

	case KindStopPresenting:
		if id == "" {
			return
		}
		if err := h.sess.StopPresenting(id); err != nil {
			c.replyError(err)
		}

	case KindRequestPresenter:
		if id == "" {
			return
		}
		granted, err := h.sess.RequestPresenter(id)
		if err != nil {
			c.replyError(err)
			return
		}
		if !granted {
			// Notify the incumbent; the request never preempts.
			if incumbent, ok := h.lookup(h.sess.List().PresenterID); ok {
				incumbent.reply(Message{Type: KindRequestPresenter, From: id})
			}
		}

	case KindOffer:
		c.handleOffer(msg, id)

	case KindAnswer:
		c.handleAnswer(msg, id)

	case KindICECandidate:
		c.handleCandidate(msg, id)

	case KindConnectionState:
		c.handleConnectionState(msg, id)

	case KindChat:
		if id == "" {
			return
		}
		posted, err := h.sess.PostMessage(id, msg.Text)
		if err != nil {
			c.replyError(err)
			return
		}
		h.broadcast(Message{Type: KindChat, From: posted.From, Name: posted.Name, Text: posted.Text})

	case KindSettings:
		if id == "" || msg.Settings == nil {
			return
		}
		applied, err := h.sess.UpdateSettings(*msg.Settings)
		if err != nil {
			c.replyError(err)
			return
		}
		h.broadcast(Message{Type: KindSettings, Settings: &applied})

	case KindStatsRequest:
		c.reply(Message{Type: KindStats, Stats: h.stats()})

	default:
		log.Printf("Unknown message type: %s", msg.Type)
	}
}

// handleJoin registers the participant and shares the room state:
// membership, chat history, and the ICE configuration for traversal.
func (c *client) handleJoin(msg Message) {
	h := c.hub

	p, err := h.sess.Join(msg.From, msg.Name)
	if err != nil {
		c.replyError(err)
		return
	}

	c.mu.Lock()
	c.id = p.ID
	c.neg = NewNegotiation(h.negObserver(c))
	c.mu.Unlock()

	h.mu.Lock()
	if old, ok := h.clients[p.ID]; ok && old != c {
		// Same id reconnecting: detach the stale socket's identity
		// before closing it, so its teardown cannot deregister the
		// participant that just re-registered.
		old.mu.Lock()
		old.id = ""
		staleNeg := old.neg
		old.neg = nil
		old.mu.Unlock()
		if staleNeg != nil {
			staleNeg.Close()
		}
		old.conn.Close()
	}
	h.clients[p.ID] = c
	h.mu.Unlock()

	snap := h.sess.List()
	c.reply(Message{
		Type:         KindJoined,
		From:         p.ID,
		Name:         p.Name,
		Participants: snap.Participants,
		Presenter:    snap.PresenterID,
		ICEServers:   h.ice,
	})
	if history := h.sess.Messages(); len(history) > 0 {
		c.reply(Message{Type: KindChatHistory, Chat: history})
	}

	h.broadcastExcept(p.ID, Message{Type: KindUserJoined, From: p.ID, Name: p.Name})
}

// handleOffer relays a presenter offer to a viewer and marks that
// viewer's media leg as offer-sent, arming the answer timer.
func (c *client) handleOffer(msg Message, id string) {
	h := c.hub
	if id == "" {
		return
	}
	if h.sess.List().PresenterID != id {
		c.replyError(session.ErrNotPresenter)
		return
	}

	target, ok := h.lookup(msg.To)
	if !ok {
		c.replyError(session.ErrNotFound)
		return
	}
	if err := target.negotiation().Offer(msg.SDP); err != nil {
		c.replyError(err)
		return
	}
	target.reply(Message{Type: KindOffer, From: id, To: msg.To, SDP: msg.SDP})
}

// handleAnswer applies the answer on the viewer's own leg and relays
// it to the presenter.
func (c *client) handleAnswer(msg Message, id string) {
	h := c.hub
	if id == "" {
		return
	}
	if err := c.negotiation().Answer(msg.SDP); err != nil {
		c.replyError(err)
		return
	}

	presenterID := h.sess.List().PresenterID
	if target, ok := h.lookup(presenterID); ok {
		target.reply(Message{Type: KindAnswer, From: id, To: presenterID, SDP: msg.SDP})
	}
}

// handleCandidate routes a trickled candidate through the viewer-leg
// negotiation so early candidates queue instead of racing the answer.
func (c *client) handleCandidate(msg Message, id string) {
	h := c.hub
	if id == "" || msg.Candidate == nil {
		return
	}

	from := id
	if id == h.sess.List().PresenterID {
		viewer, ok := h.lookup(msg.To)
		if !ok {
			return
		}
		to := msg.To
		viewer.negotiation().AddCandidate(*msg.Candidate, func(cand webrtc.ICECandidateInit) {
			viewer.reply(Message{Type: KindICECandidate, From: from, To: to, Candidate: &cand})
		})
		return
	}

	// Viewer side: always queue on the viewer's own leg. The presenter
	// is resolved at delivery time, so a candidate trickled before the
	// presenter's socket is registered still survives until the flush.
	c.negotiation().AddCandidate(*msg.Candidate, func(cand webrtc.ICECandidateInit) {
		presenterID := h.sess.List().PresenterID
		if target, ok := h.lookup(presenterID); ok {
			target.reply(Message{Type: KindICECandidate, From: from, To: presenterID, Candidate: &cand})
		}
	})
}

// handleConnectionState mirrors a transport state signal into the
// sender's negotiation.
func (c *client) handleConnectionState(msg Message, id string) {
	if id == "" {
		return
	}
	var cs webrtc.PeerConnectionState
	switch msg.State {
	case "connected":
		cs = webrtc.PeerConnectionStateConnected
	case "disconnected":
		cs = webrtc.PeerConnectionStateDisconnected
	case "failed":
		cs = webrtc.PeerConnectionStateFailed
	case "closed":
		cs = webrtc.PeerConnectionStateClosed
	default:
		return
	}
	c.negotiation().MirrorConnectionState(cs)
}

func (c *client) negotiation() *Negotiation {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.neg == nil {
		c.neg = NewNegotiation(c.hub.negObserver(c))
	}
	return c.neg
}

// negObserver surfaces negotiation transitions to the affected client
// and forces presenter release when the presenter's own connection
// goes terminal. Viewer-leg failures close only that leg.
func (h *Hub) negObserver(c *client) func(State, error) {
	return func(s State, err error) {
		if err != nil {
			c.replyError(err)
		}
		c.reply(Message{Type: KindConnectionState, State: s.String()})

		if s == StateFailed || s == StateDisconnected {
			id := c.participantID()
			if id != "" && id == h.sess.List().PresenterID {
				h.sess.ForceRelease()
			}
		}
	}
}
