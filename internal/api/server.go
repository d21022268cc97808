package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "restaurant-receptionist/internal/common/errors"
	"restaurant-receptionist/internal/common/logger"
	"restaurant-receptionist/internal/common/validation"
	"restaurant-receptionist/internal/models"
	"restaurant-receptionist/internal/receptionist"
	"restaurant-receptionist/internal/session"
)

const maxBodyBytes = 64 << 10

var (
	startSessionSchema = validation.MustParseSchema(`{
		"type": "object",
		"properties": {
			"sessionId": {"type": "string", "maxLength": 128},
			"channel": {"type": "string", "enum": ["voice", "chat"]},
			"callerId": {"type": "string", "maxLength": 64}
		}
	}`)

	turnSchema = validation.MustParseSchema(`{
		"type": "object",
		"properties": {
			"text": {"type": "string", "minLength": 1, "maxLength": 2000},
			"channel": {"type": "string", "enum": ["voice", "chat"]},
			"callerId": {"type": "string", "maxLength": 64}
		},
		"required": ["text"]
	}`)
)

// Receptionist is the conversation surface the API exposes.
// *receptionist.Engine satisfies it.
type Receptionist interface {
	StartSession(ctx context.Context, id string, channel models.Channel, callerID string) receptionist.SessionInfo
	EndSession(ctx context.Context, id string) bool
	HandleTurn(ctx context.Context, turn receptionist.Turn) (receptionist.TurnResult, error)
}

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

type Option func(*Server)

func WithReadinessCheck(name string, check Check) Option {
	return func(s *Server) { s.checks[name] = check }
}

type Server struct {
	receptionist Receptionist
	errors       *apperrors.ErrorHandler
	logger       logger.Logger
	checks       map[string]Check
	mux          *http.ServeMux
}

func NewServer(r Receptionist, log logger.Logger, opts ...Option) *Server {
	log = log.With(map[string]interface{}{"component": "api"})
	s := &Server{
		receptionist: r,
		errors:       apperrors.NewErrorHandler(log),
		logger:       log,
		checks:       make(map[string]Check),
		mux:          http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mux.HandleFunc("POST /api/sessions", s.handleStartSession)
	s.mux.HandleFunc("POST /api/sessions/{id}/turns", s.handleTurn)
	s.mux.HandleFunc("DELETE /api/sessions/{id}", s.handleEndSession)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /ready", s.handleReady)
	s.mux.Handle("GET /metrics", promhttp.Handler())
	return s
}

func (s *Server) Handler() http.Handler {
	return s.recoverer(s.mux)
}

type startSessionRequest struct {
	SessionID string         `json:"sessionId"`
	Channel   models.Channel `json:"channel"`
	CallerID  string         `json:"callerId"`
}

type turnRequest struct {
	Text     string         `json:"text"`
	Channel  models.Channel `json:"channel"`
	CallerID string         `json:"callerId"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decode(r, startSessionSchema, &req, true); err != nil {
		s.errors.WriteHTTPError(w, r, err)
		return
	}
	info := s.receptionist.StartSession(r.Context(), req.SessionID, req.Channel, req.CallerID)
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := decode(r, turnSchema, &req, false); err != nil {
		s.errors.WriteHTTPError(w, r, err)
		return
	}

	id := r.PathValue("id")
	result, err := s.receptionist.HandleTurn(r.Context(), receptionist.Turn{
		SessionID: id,
		Channel:   req.Channel,
		Text:      req.Text,
		CallerID:  req.CallerID,
	})
	if err != nil {
		s.errors.WriteHTTPError(w, r, mapTurnError(id, err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ended := s.receptionist.EndSession(r.Context(), id)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessionId": id,
		"ended":     ended,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	failures := make(map[string]string)
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			failures[name] = err.Error()
		}
	}
	if len(failures) > 0 {
		status, code = "not_ready", http.StatusServiceUnavailable
		s.logger.Warn("readiness check failed", map[string]interface{}{"failures": failures})
	}

	body := map[string]interface{}{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	}
	if len(failures) > 0 {
		body["failures"] = failures
	}
	writeJSON(w, code, body)
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.errors.WriteHTTPError(w, r, fmt.Errorf("panic: %v", rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func mapTurnError(id string, err error) error {
	switch {
	case errors.Is(err, session.ErrSessionBusy):
		return apperrors.NewSessionBusyError(id)
	case errors.Is(err, session.ErrSessionEnded):
		return apperrors.NewSessionEndedError(id)
	case errors.Is(err, receptionist.ErrEmptyUtterance):
		return apperrors.NewInvalidRequestError("text must not be empty")
	}
	return err
}

// decode validates the JSON body against schema before decoding it into
// dst. An empty body is accepted when optional is set.
func decode(r *http.Request, schema validation.JSONSchema, dst interface{}, optional bool) error {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return apperrors.NewInvalidRequestError(err.Error())
	}
	if len(raw) == 0 && optional {
		return nil
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return apperrors.NewInvalidRequestError("body must be a JSON object")
	}
	if res := validation.ValidateInput(fields, schema); !res.Valid {
		stdErr := apperrors.NewInvalidRequestError("request body failed validation")
		stdErr.Metadata = map[string]interface{}{"errors": res.GetErrorMessages()}
		return stdErr
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return apperrors.NewInvalidRequestError(err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
