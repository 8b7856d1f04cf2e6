package server

import (
	"bufio"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/zeusync/kinetic/internal/core/observability/log"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Hijack is needed by the websocket upgrader.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	r.status = http.StatusSwitchingProtocols
	return http.NewResponseController(r.ResponseWriter).Hijack()
}

// withLogging logs every request at debug, and failures at warn.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		fields := []log.Field{
			log.String("method", r.Method),
			log.String("path", r.URL.Path),
			log.String("remote_addr", r.RemoteAddr),
			log.Int("status", rec.status),
			log.Duration("took", time.Since(start)),
		}
		if rec.status >= http.StatusBadRequest {
			s.log.Warn("request failed", fields...)
			return
		}
		s.log.Debug("request handled", fields...)
	})
}

// rateLimiter is a fixed-window counter per client address.
type rateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	clients map[string]*clientWindow
}

type clientWindow struct {
	count int
	start time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		clients: make(map[string]*clientWindow),
	}
}

func (l *rateLimiter) allow(client string) bool {
	if l == nil || l.limit <= 0 {
		return true
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	cw, ok := l.clients[client]
	if !ok || now.Sub(cw.start) > l.window {
		// drop idle clients while we hold the lock anyway
		for id, other := range l.clients {
			if now.Sub(other.start) > l.window {
				delete(l.clients, id)
			}
		}
		cw = &clientWindow{start: now}
		l.clients[client] = cw
	}
	if cw.count >= l.limit {
		return false
	}
	cw.count++
	return true
}

// withRateLimit rejects clients that exceed the configured request rate.
func (s *Server) withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(clientID(r)) {
			s.log.Warn("rate limit exceeded",
				log.String("remote_addr", r.RemoteAddr),
				log.Int("limit", s.limiter.limit),
				log.Duration("window", s.limiter.window),
			)
			s.writeError(w, http.StatusTooManyRequests, ErrRateLimited)
			return
		}
		next(w, r)
	}
}

func clientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
