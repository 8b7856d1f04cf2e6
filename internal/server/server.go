package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zeusync/kinetic/internal/config"
	"github.com/zeusync/kinetic/internal/core/events/bus"
	"github.com/zeusync/kinetic/internal/core/observability/log"
	"github.com/zeusync/kinetic/internal/core/systems/physics"
	"github.com/zeusync/kinetic/internal/runner"
	"github.com/zeusync/kinetic/pkg/generic"
)

// Simulation is the part of the runner the server talks to.
type Simulation interface {
	Snapshot() runner.Frame
	ApplyForce(ctx context.Context, i int, f physics.Vector2) error
	AddBody(ctx context.Context, b physics.Body) (int, error)
	Bus() bus.EventBus
}

// Server exposes a simulation over HTTP and streams frames over WebSocket.
type Server struct {
	cfg      config.ServerConfig
	sim      Simulation
	log      log.Log
	mux      *http.ServeMux
	upgrader websocket.Upgrader
	buffers  *generic.Pool[*bytes.Buffer]
	hub      *hub
	limiter  *rateLimiter
	sub      bus.Subscription

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
}

func New(cfg config.ServerConfig, sim Simulation, logger log.Log) (*Server, error) {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = config.DefaultWriteTimeout
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = config.DefaultRateWindow
	}
	if logger == nil {
		logger = log.NewNop()
	}

	s := &Server{
		cfg: cfg,
		sim: sim,
		log: logger.With(log.String("component", "server")),
		mux: http.NewServeMux(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		buffers: generic.NewHotPool(func() *bytes.Buffer { return new(bytes.Buffer) }, (*bytes.Buffer).Reset, 4),
		hub:     newHub(),
		limiter: newRateLimiter(cfg.RateLimit, cfg.RateWindow),
	}

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /world", s.handleWorld)
	s.mux.HandleFunc("POST /bodies", s.withRateLimit(s.handleAddBody))
	s.mux.HandleFunc("POST /bodies/{index}/force", s.withRateLimit(s.handleForce))
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)

	sub, err := sim.Bus().Subscribe(runner.EventFrame, s.onFrame)
	if err != nil {
		return nil, err
	}
	s.sub = sub
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.withLogging(s.mux) }

// Start listens on the configured address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpServer != nil {
		return ErrServerAlreadyRunning
	}

	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.httpServer, s.listener = srv, ln

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("serve failed", log.Error(err))
		}
	}()
	s.log.Info("server listening", log.String("addr", ln.Addr().String()))
	return nil
}

// Addr is the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop disconnects stream clients and shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.httpServer, s.listener = nil, nil
	s.mu.Unlock()

	s.Close()
	if srv == nil {
		return ErrServerNotRunning
	}
	return srv.Shutdown(ctx)
}

// Close stops frame fan-out and drops all stream clients. Stop calls it.
func (s *Server) Close() {
	_ = s.sim.Bus().Unsubscribe(s.sub)
	s.hub.closeAll()
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.WriteTimeout)
	defer cancel()
	if err := s.Stop(shutdownCtx); err != nil && !errors.Is(err, ErrServerNotRunning) {
		return err
	}
	s.log.Info("server stopped")
	return nil
}

func (s *Server) onFrame(e bus.Event) error {
	if s.hub.len() == 0 {
		return nil
	}
	frame, ok := e.Data().(runner.Frame)
	if !ok {
		return ErrInvalidMessage
	}
	view := newFrameView(frame)
	data, err := s.encode(serverMessage{Type: "frame", Frame: &view})
	if err != nil {
		return err
	}
	if dropped := s.hub.broadcast(data); dropped > 0 {
		s.log.Debug("slow stream clients skipped a frame", log.Int("clients", dropped), log.Uint64("seq", frame.Seq))
	}
	return nil
}

// encode marshals v into a fresh slice using a pooled scratch buffer.
func (s *Server) encode(v any) ([]byte, error) {
	buf := s.buffers.Get()
	defer s.buffers.Put(buf)
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		return nil, err
	}
	return bytes.Clone(buf.Bytes()), nil
}
