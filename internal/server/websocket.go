package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/zeusync/kinetic/internal/core/observability/log"
)

const (
	clientSendBuffer = 16
	maxMessageBytes  = 4096
)

// serverMessage is everything the stream sends: frames, acks and errors.
type serverMessage struct {
	Type  string     `json:"type"`
	Frame *FrameView `json:"frame,omitempty"`
	Body  *int       `json:"body,omitempty"`
	Error string     `json:"error,omitempty"`
}

type wsClient struct {
	conn       *websocket.Conn
	send       chan []byte
	authorized bool
}

// hub tracks stream clients. Only a client's read loop closes its send
// channel, after removing it from the hub, so broadcast never writes to a
// closed channel.
type hub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

func newHub() *hub {
	return &hub{clients: make(map[*wsClient]struct{})}
}

func (h *hub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *hub) remove(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

func (h *hub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// broadcast queues data on every client and returns how many were full.
func (h *hub) broadcast(data []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	dropped := 0
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			dropped++
		}
	}
	return dropped
}

// closeAll closes every connection, which ends each client's read loop.
func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.conn.Close()
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", log.Error(err))
		return
	}

	c := &wsClient{
		conn:       conn,
		send:       make(chan []byte, clientSendBuffer),
		authorized: s.authorized(r),
	}
	ctx := log.ContextWithSession(r.Context(), uuid.NewString())
	logger := s.log.WithContext(ctx).With(log.String("remote", conn.RemoteAddr().String()))
	logger.Info("stream client connected", log.Bool("authorized", c.authorized))

	view := newFrameView(s.sim.Snapshot())
	if data, err := s.encode(serverMessage{Type: "frame", Frame: &view}); err == nil {
		c.send <- data
	}
	s.hub.add(c)

	go s.writeLoop(c)
	s.readLoop(ctx, c, logger)
	logger.Info("stream client disconnected")
}

func (s *Server) writeLoop(c *wsClient) {
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			_ = c.conn.Close()
		}
	}
}

func (s *Server) readLoop(ctx context.Context, c *wsClient, logger log.Log) {
	defer func() {
		s.hub.remove(c)
		close(c.send)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageBytes)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("stream read failed", log.Error(err))
			}
			return
		}
		s.reply(c, s.handleClientMessage(ctx, c, data))
	}
}

func (s *Server) handleClientMessage(ctx context.Context, c *wsClient, data []byte) serverMessage {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return serverMessage{Type: "error", Error: ErrInvalidMessage.Error()}
	}
	if !c.authorized && msg.Token != "" && s.tokenMatches(msg.Token) {
		c.authorized = true
	}

	switch msg.Type {
	case "auth":
		if !c.authorized {
			return serverMessage{Type: "error", Error: ErrUnauthorized.Error()}
		}
		return serverMessage{Type: "ack"}
	case "force":
		if !c.authorized {
			return serverMessage{Type: "error", Error: ErrUnauthorized.Error()}
		}
		cctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
		defer cancel()
		if err := s.sim.ApplyForce(cctx, msg.Body, msg.Force); err != nil {
			return serverMessage{Type: "error", Body: &msg.Body, Error: err.Error()}
		}
		return serverMessage{Type: "ack", Body: &msg.Body}
	default:
		return serverMessage{Type: "error", Error: ErrInvalidMessage.Error()}
	}
}

// reply never blocks the read loop; a client that is not draining frames
// loses the reply too.
func (s *Server) reply(c *wsClient, msg serverMessage) {
	data, err := s.encode(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
