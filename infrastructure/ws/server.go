// Package ws serves the relay over websocket, one JSON frame per message.
package ws

import (
	"chat-relay/auth"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/runtime"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultWriteTimeout = 10 * time.Second
	defaultPingInterval = 30 * time.Second
	defaultReadLimit    = 1 << 20
)

type Config struct {
	WriteTimeout time.Duration
	PingInterval time.Duration
	ReadLimit    int64
	// AllowedOrigins lists accepted Origin headers; empty keeps the same-origin check.
	AllowedOrigins []string
}

type Server struct {
	log       *slog.Logger
	lifecycle *runtime.Lifecycle
	upgrader  websocket.Upgrader
	cfg       Config
}

func NewServer(log *slog.Logger, lifecycle *runtime.Lifecycle, cfg Config) *Server {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = defaultReadLimit
	}
	upgrader := websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 4096}
	if len(cfg.AllowedOrigins) > 0 {
		upgrader.CheckOrigin = func(r *http.Request) bool {
			return slices.Contains(cfg.AllowedOrigins, "*") ||
				slices.Contains(cfg.AllowedOrigins, r.Header.Get("Origin"))
		}
	}
	return &Server{log: log, lifecycle: lifecycle, upgrader: upgrader, cfg: cfg}
}

// ServeHTTP authenticates before upgrading, so a rejected client gets a plain 401.
// It blocks for the lifetime of the connection.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.lifecycle.Accept(r.Context(), auth.CredentialFromRequest(r))
	if err != nil {
		s.log.Debug("websocket rejected", "remote", r.RemoteAddr, "error", err)
		status := http.StatusInternalServerError
		if stderrors.Is(err, errors.ErrAuth) {
			status = http.StatusUnauthorized
		}
		http.Error(w, http.StatusText(status), status)
		return
	}

	socket, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		s.log.Debug("websocket upgrade failed", "connection_id", conn.ID(), "error", err)
		s.lifecycle.Disconnect(conn)
		return
	}

	go s.writeLoop(socket, conn)
	s.readLoop(r, socket, conn)
}

// readLoop handles inbound frames in order until the socket fails.
func (s *Server) readLoop(r *http.Request, socket *websocket.Conn, conn *runtime.Connection) {
	defer func() {
		s.lifecycle.Disconnect(conn)
		_ = socket.Close()
	}()

	pongWait := 2 * s.cfg.PingInterval
	socket.SetReadLimit(s.cfg.ReadLimit)
	_ = socket.SetReadDeadline(time.Now().Add(pongWait))
	socket.SetPongHandler(func(string) error {
		return socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("websocket read failed", "connection_id", conn.ID(), "error", err)
			}
			return
		}
		_ = socket.SetReadDeadline(time.Now().Add(pongWait))

		var frame event.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.log.Debug("undecodable frame dropped", "connection_id", conn.ID(), "error", err)
			continue
		}
		// Handle reports and counts its own failures
		_ = s.lifecycle.Handle(r.Context(), conn, frame)
	}
}

// writeLoop is the only writer of the socket.
func (s *Server) writeLoop(socket *websocket.Conn, conn *runtime.Connection) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = socket.Close()
	}()

	for {
		select {
		case <-conn.Done():
			_ = socket.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			_ = socket.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case out := <-conn.Outbox():
			frame, err := out.Frame()
			if err != nil {
				s.log.Error("outbound event not encodable", "event", out.Event, "error", err)
				continue
			}
			_ = socket.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := socket.WriteJSON(frame); err != nil {
				s.log.Debug("websocket write failed", "connection_id", conn.ID(), "error", err)
				return
			}
		case <-ticker.C:
			_ = socket.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
