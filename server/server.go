// Package server exposes the assistant over a websocket chat gateway.
//
// Each connection speaks newline-free JSON frames. The client sends
// message frames carrying the user id and text; the server replies
// with one or more reply frames, splitting long answers so no single
// frame exceeds the transport limit.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fIIame/NeurooAiBot/users"
)

// Frame is the wire format for both directions.
type Frame struct {
	Type      string `json:"type"`
	UserID    int64  `json:"user_id,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	Text      string `json:"text,omitempty"`
}

// Frame types.
const (
	FrameMessage  = "message"  // client -> server: a chat message
	FrameActivate = "activate" // client -> server: unlock the assistant
	FrameReply    = "reply"    // server -> client: assistant text
	FrameTyping   = "typing"   // server -> client: a reply is being generated
	FrameError    = "error"    // server -> client: something went wrong
)

// Replier produces an assistant reply for one user message, given
// the assembled memory context. *chat.Service implements it.
type Replier interface {
	Reply(ctx context.Context, userText, memoryContext string) (string, error)
}

// Memory assembles context before a reply and records the finished
// turn after. *memory.Assembler implements it.
type Memory interface {
	BuildContext(ctx context.Context, userID int64, userText string) (string, []float32)
	RecordTurn(ctx context.Context, userID int64, userText string, embedding []float32, reply string)
}

// Config holds server dependencies and tuning.
type Config struct {
	Chat      Replier
	Assembler Memory
	Users     users.Store

	// ReplyTimeout bounds one model round-trip.
	ReplyTimeout time.Duration
}

// Server handles websocket chat sessions.
type Server struct {
	cfg      Config
	upgrader websocket.Upgrader

	mu       sync.Mutex
	httpSrv  *http.Server
	conns    map[*websocket.Conn]struct{}
	sessions sync.WaitGroup
}

// New creates a Server. Chat, Assembler and Users are required.
func New(cfg Config) (*Server, error) {
	if cfg.Chat == nil || cfg.Assembler == nil || cfg.Users == nil {
		return nil, fmt.Errorf("server: chat, assembler and users are required")
	}
	if cfg.ReplyTimeout == 0 {
		cfg.ReplyTimeout = 60 * time.Second
	}
	return &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
	}, nil
}

// Run serves /ws and /health on addr, blocking until the listener
// fails or Shutdown is called.
func (s *Server) Run(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	s.mu.Lock()
	s.httpSrv = srv
	s.mu.Unlock()

	log.Printf("[SERVER] Listening on %s", addr)
	return srv.ListenAndServe()
}

// Shutdown stops accepting new connections and closes live websocket
// sessions. http.Server.Shutdown does not cover hijacked connections,
// so sessions are closed explicitly; once Shutdown returns, no handler
// can start new work.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpSrv
	s.httpSrv = nil
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline)
		conn.Close()
	}

	// Wait for session handlers to finish their current frame, bounded
	// by ctx. Hijacked connections are invisible to http.Server.Shutdown.
	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Printf("[SERVER] Shutdown: sessions still in flight, abandoning")
	}

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) track(conn *websocket.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// Handler returns the /ws handler, for mounting on an external mux.
func (s *Server) Handler() http.HandlerFunc {
	return s.handleWS
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[SERVER] Upgrade failed: %v", err)
		return
	}
	s.sessions.Add(1)
	defer s.sessions.Done()
	s.track(conn)
	defer s.untrack(conn)
	defer conn.Close()

	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[SERVER] Read failed: %v", err)
			}
			return
		}

		switch frame.Type {
		case FrameMessage:
			s.handleMessage(conn, frame)
		case FrameActivate:
			s.handleActivate(conn, frame)
		default:
			s.send(conn, Frame{Type: FrameError, Text: "unknown frame type: " + frame.Type})
		}
	}
}

func (s *Server) handleMessage(conn *websocket.Conn, frame Frame) {
	if frame.UserID == 0 || frame.Text == "" {
		s.send(conn, Frame{Type: FrameError, Text: "message frame requires user_id and text"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ReplyTimeout)
	defer cancel()

	if err := s.cfg.Users.Ensure(ctx, frame.UserID, frame.FirstName); err != nil {
		log.Printf("[SERVER] Ensure user %d failed: %v", frame.UserID, err)
	}

	activated, err := s.cfg.Users.IsActivated(ctx, frame.UserID)
	if err != nil {
		log.Printf("[SERVER] Activation check for %d failed: %v", frame.UserID, err)
		s.send(conn, Frame{Type: FrameError, Text: "temporary failure, try again"})
		return
	}
	if !activated {
		s.send(conn, Frame{Type: FrameReply, Text: activationPrompt})
		return
	}

	s.send(conn, Frame{Type: FrameTyping})

	memCtx, embedding := s.cfg.Assembler.BuildContext(ctx, frame.UserID, frame.Text)

	reply, err := s.cfg.Chat.Reply(ctx, frame.Text, memCtx)
	if err != nil {
		log.Printf("[SERVER] Reply for %d failed: %v", frame.UserID, err)
		s.send(conn, Frame{Type: FrameError, Text: "temporary failure, try again"})
		return
	}

	for _, chunk := range splitMessage(reply, maxMessageLen) {
		s.send(conn, Frame{Type: FrameReply, Text: chunk})
	}

	s.cfg.Assembler.RecordTurn(ctx, frame.UserID, frame.Text, embedding, reply)
}

func (s *Server) handleActivate(conn *websocket.Conn, frame Frame) {
	if frame.UserID == 0 {
		s.send(conn, Frame{Type: FrameError, Text: "activate frame requires user_id"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.cfg.Users.Ensure(ctx, frame.UserID, frame.FirstName); err != nil {
		log.Printf("[SERVER] Ensure user %d failed: %v", frame.UserID, err)
	}
	if err := s.cfg.Users.Activate(ctx, frame.UserID); err != nil {
		log.Printf("[SERVER] Activate %d failed: %v", frame.UserID, err)
		s.send(conn, Frame{Type: FrameError, Text: "activation failed, try again"})
		return
	}
	s.send(conn, Frame{Type: FrameReply, Text: "You're all set. What's on your mind?"})
}

func (s *Server) send(conn *websocket.Conn, frame Frame) {
	if err := conn.WriteJSON(frame); err != nil {
		log.Printf("[SERVER] Write failed: %v", err)
	}
}

const activationPrompt = "Hi! Send an activate request to start chatting with me."
