// Package server exposes the session over HTTP: a small JSON API for
// polling clients and the WebSocket signaling endpoint.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/tomaslejdung/gomeet/pkg/session"
	"github.com/tomaslejdung/gomeet/pkg/signal"
)

// maxFrameBytes bounds a single uploaded frame.
const maxFrameBytes = 8 << 20

// Server wires one session and its signaling hub into an HTTP mux.
type Server struct {
	sess *session.Session
	hub  *signal.Hub
}

// New creates a server around an existing session and hub.
func New(sess *session.Session, hub *signal.Hub) *Server {
	return &Server{sess: sess, hub: hub}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealth)

	mux.HandleFunc("/api/join", s.handleJoin)
	mux.HandleFunc("/api/leave", s.handleLeave)
	mux.HandleFunc("/api/list", s.handleList)

	mux.HandleFunc("/api/presenter/start", s.handlePresenterStart)
	mux.HandleFunc("/api/presenter/stop", s.handlePresenterStop)
	mux.HandleFunc("/api/presenter/request", s.handlePresenterRequest)

	mux.HandleFunc("/api/frame", s.handleFrame)
	mux.HandleFunc("/api/frame.jpg", s.handleFrameJPEG)

	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/settings", s.handleSettings)

	mux.HandleFunc("/ws", s.hub.HandleWebSocket)

	return mux
}

// Start runs the HTTP server on addr. Blocks until the listener fails.
func (s *Server) Start(addr string) error {
	log.Printf("Server starting on %s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

type idRequest struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type chatRequest struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type frameRequest struct {
	ID   string `json:"id"`
	Data []byte `json:"data"` // base64 over the wire
}

type framePayload struct {
	Seq  uint64    `json:"seq"`
	At   time.Time `json:"at"`
	Data []byte    `json:"data"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps the session and signaling error taxonomy onto HTTP
// status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrPresenterConflict), errors.Is(err, session.ErrNotPresenter):
		status = http.StatusConflict
	case errors.Is(err, session.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxFrameBytes)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return false
	}
	return true
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req idRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := s.sess.Join(req.ID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req idRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.sess.Leave(req.ID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "left"})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sess.List())
}

func (s *Server) handlePresenterStart(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req idRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.sess.StartPresenting(req.ID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sess.List())
}

func (s *Server) handlePresenterStop(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req idRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.sess.StopPresenting(req.ID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sess.List())
}

func (s *Server) handlePresenterRequest(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req idRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	granted, err := s.sess.RequestPresenter(req.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"granted": granted})
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req frameRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		f, err := s.sess.SubmitFrame(req.ID, req.Data)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]uint64{"seq": f.Seq})

	case http.MethodGet:
		f := s.sess.FetchFrame()
		if f.Empty() {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, framePayload{Seq: f.Seq, At: f.At, Data: f.Data})

	default:
		w.Header().Set("Allow", "GET, POST")
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	}
}

// handleFrameJPEG serves the latest frame bytes directly so an <img>
// tag can poll it without decoding JSON.
func (s *Server) handleFrameJPEG(w http.ResponseWriter, r *http.Request) {
	f := s.sess.FetchFrame()
	if f.Empty() {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(f.Data)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req chatRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		msg, err := s.sess.PostMessage(req.ID, req.Text)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, msg)

	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.sess.Messages())

	default:
		w.Header().Set("Allow", "GET, POST")
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	}
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req session.CaptureSettings
		if !decodeJSON(w, r, &req) {
			return
		}
		applied, err := s.sess.UpdateSettings(req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, applied)

	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.sess.Settings())

	default:
		w.Header().Set("Allow", "GET, POST")
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	}
}
