package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"triage-agent/internal/domain"
	"triage-agent/internal/session"
)

// maxBodyBytes bounds a turn request; message length itself is enforced by
// the use case.
const maxBodyBytes = 64 << 10

// SessionStore is the subset of *session.Registry the router needs.
type SessionStore interface {
	Create() domain.Session
	Get(id string) (domain.Session, error)
	Update(id string, fn func(domain.Session) (domain.Session, error)) (domain.Session, error)
	Delete(id string)
}

type server struct {
	uc       TurnProcessor
	sessions SessionStore
	logger   *slog.Logger
}

type messageRequest struct {
	Message string `json:"message"`
}

// NewRouter serves consultations kept in sessions. Turns on one session are
// serialized by the store.
func NewRouter(uc TurnProcessor, sessions SessionStore, logger *slog.Logger) (http.Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	if sessions == nil {
		return nil, errors.New("handler: session store must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &server{uc: uc, sessions: sessions, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api/consultations", func(r chi.Router) {
		r.Post("/", s.createConsultation)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getConsultation)
			r.Delete("/", s.deleteConsultation)
			r.Post("/turns", s.postTurn)
		})
	})
	return r, nil
}

func (s *server) createConsultation(w http.ResponseWriter, _ *http.Request) {
	sess := s.sessions.Create()
	writeJSON(w, http.StatusCreated, newTurnResponse(sess))
}

func (s *server) getConsultation(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTurnResponse(sess))
}

func (s *server) deleteConsultation(w http.ResponseWriter, r *http.Request) {
	s.sessions.Delete(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) postTurn(w http.ResponseWriter, r *http.Request) {
	var in messageRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "INVALID_INPUT", Reason: "invalid_json"})
		return
	}

	ctx := r.Context()
	sess, err := s.sessions.Update(chi.URLParam(r, "id"), func(cur domain.Session) (domain.Session, error) {
		return s.uc.ProcessTurn(ctx, cur, in.Message)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTurnResponse(sess))
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, session.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "NOT_FOUND", Reason: "unknown_session"})
		return
	}
	status, body := mapError(err)
	s.logger.Warn("turn failed",
		"request_id", middleware.GetReqID(r.Context()),
		"status", status,
		"err", err,
	)
	writeJSON(w, status, body)
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
