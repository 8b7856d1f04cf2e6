package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/zeusync/kinetic/internal/config"
	"github.com/zeusync/kinetic/internal/core/observability/log"
	"github.com/zeusync/kinetic/internal/core/systems/physics"
	"github.com/zeusync/kinetic/internal/runner"
)

const maxBodyBytes = 1 << 16

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	f := s.sim.Snapshot()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"session": f.Session,
		"seq":     f.Seq,
		"bodies":  len(f.Bodies),
	})
}

func (s *Server) handleWorld(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, newFrameView(s.sim.Snapshot()))
}

func (s *Server) handleForce(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		s.writeError(w, http.StatusUnauthorized, ErrUnauthorized)
		return
	}
	idx, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("body index must be an integer"))
		return
	}
	var force physics.Vector2
	if err := decodeJSON(w, r, &force); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.WriteTimeout)
	defer cancel()
	if err := s.sim.ApplyForce(ctx, idx, force); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]any{"body": idx, "force": force})
}

func (s *Server) handleAddBody(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		s.writeError(w, http.StatusUnauthorized, ErrUnauthorized)
		return
	}
	var bc config.BodyConfig
	if err := decodeJSON(w, r, &bc); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := bc.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.WriteTimeout)
	defer cancel()
	idx, err := s.sim.AddBody(ctx, bc.Build())
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.log.Info("body added", log.Int("index", idx))
	s.writeJSON(w, http.StatusCreated, map[string]int{"index": idx})
}

// authorized accepts "Authorization: Bearer <token>" or a token query
// parameter. With no token configured everything is allowed.
func (s *Server) authorized(r *http.Request) bool {
	if s.cfg.Token == "" {
		return true
	}
	got := r.URL.Query().Get("token")
	if h := r.Header.Get("Authorization"); h != "" {
		got = strings.TrimPrefix(h, "Bearer ")
	}
	return s.tokenMatches(got)
}

func (s *Server) tokenMatches(got string) bool {
	return s.cfg.Token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.Token)) == 1
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, physics.ErrBodyNotFound):
		return http.StatusNotFound
	case errors.Is(err, runner.ErrQueueFull):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(ErrInvalidMessage, err)
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := s.encode(v)
	if err != nil {
		s.log.Error("encode response", log.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.log.Warn("request failed", log.Int("status", status), log.Error(err))
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}
