package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ddt-tool/ddt"
	"github.com/ddt-tool/ddt/internal/logging"
	"github.com/ddt-tool/ddt/internal/presentation/graph"
	"github.com/ddt-tool/ddt/pkg/domain"
	"github.com/ddt-tool/ddt/pkg/observability"
	"github.com/ddt-tool/ddt/pkg/ports"
	"github.com/ddt-tool/ddt/pkg/runner"
	"github.com/ddt-tool/ddt/pkg/session"
	"github.com/getkin/kin-openapi/routers"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

var errStreamingUnsupported = errors.New("streaming not supported")

// errBadRequest marks request decoding and input validation failures.
type errBadRequest struct{ err error }

func (e errBadRequest) Error() string { return e.err.Error() }
func (e errBadRequest) Unwrap() error { return e.err }

// Server exposes sessions and packs over a JSON API.
type Server struct {
	sessions *session.Manager
	loader   ports.PackLoader
	lister   ports.Lister
	streams  *StreamManager
	metrics  http.Handler
	logger   *slog.Logger
	validate *validator.Validate
	cases    *observability.CaseWatcher

	apiVersion      string
	router          routers.Router
	validateAgainst bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLister enables GET /packs.
func WithLister(l ports.Lister) Option {
	return func(s *Server) {
		s.lister = l
	}
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithStreams shares a StreamManager with the caller.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		if sm != nil {
			s.streams = sm
		}
	}
}

// WithCaseWatcher mounts the watcher's case status under /debug/cases.
func WithCaseWatcher(w *observability.CaseWatcher) Option {
	return func(s *Server) {
		s.cases = w
	}
}

// WithRequestValidation checks request parameters and bodies against the
// embedded OpenAPI document before they reach a handler.
func WithRequestValidation(enabled bool) Option {
	return func(s *Server) {
		s.validateAgainst = enabled
	}
}

// NewServer creates a Server. loader resolves packs for the /packs routes.
func NewServer(sessions *session.Manager, loader ports.PackLoader, opts ...Option) *Server {
	s := &Server{
		sessions: sessions,
		loader:   loader,
		logger:   logging.NewNop(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.streams == nil {
		s.streams = NewStreamManager(s.logger)
	}

	s.apiVersion = "unknown"
	if doc, err := Spec(); err != nil {
		s.logger.Warn("openapi document unavailable", "err", err)
	} else {
		if doc.Info != nil {
			s.apiVersion = doc.Info.Version
		}
		if s.validateAgainst {
			if s.router, err = newSpecRouter(doc); err != nil {
				s.logger.Warn("request validation disabled", "err", err)
			}
		}
	}
	return s
}

// Streams returns the server's event fan-out.
func (s *Server) Streams() *StreamManager {
	return s.streams
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)
	if s.router != nil {
		r.Use(s.validateRequests)
	}

	r.Get("/health", s.health)
	r.Get("/info", s.info)
	r.Get("/openapi.yaml", s.openAPI)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/packs", func(r chi.Router) {
		r.Get("/", s.listPacks)
		r.Get("/{packID}", s.getPack)
		r.Get("/{packID}/graph", s.getGraph)
	})

	if s.cases != nil {
		r.Get("/debug/cases", s.listCaseStatus)
		r.Get("/debug/cases/{caseID}", s.getCaseStatus)
	}

	r.Route("/cases", func(r chi.Router) {
		r.Post("/", s.createCase)
		r.Get("/", s.listCases)
		r.Route("/{caseID}", func(r chi.Router) {
			r.Get("/", s.getCase)
			r.Delete("/", s.deleteCase)
			r.Get("/export", s.exportCase)
			r.Get("/events", s.events)
			r.Post("/answer", s.answer)
			r.Post("/continue", s.transition("continue", (*ddt.Engine).Continue))
			r.Post("/handoff", s.transition("handoff", (*ddt.Engine).Handoff))
			r.Post("/back", s.transition("back", (*ddt.Engine).Back))
			r.Post("/restart", s.transition("restart", (*ddt.Engine).Restart))
		})
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// TransitionResponse is returned by every transition endpoint.
type TransitionResponse struct {
	CaseID string            `json:"caseId"`
	View   domain.View       `json:"view"`
	Diff   *domain.StateDiff `json:"diff,omitempty"`
}

type createCaseRequest struct {
	PackID string `json:"packId" validate:"required,max=128,excludesall=/\\"`
}

type answerRequest struct {
	Key string `json:"key" validate:"required"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) info(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":         "ddt-http",
		"version":     ddt.Version,
		"api_version": s.apiVersion,
	})
}

func (s *Server) listCaseStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.cases.Cases())
}

func (s *Server) getCaseStatus(w http.ResponseWriter, r *http.Request) {
	status, ok := s.cases.Case(chi.URLParam(r, "caseID"))
	if !ok {
		s.writeError(w, r, domain.ErrCaseNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) listPacks(w http.ResponseWriter, r *http.Request) {
	if s.lister == nil {
		s.writeJSON(w, http.StatusOK, []string{})
		return
	}
	ids, err := s.lister.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ids)
}

func (s *Server) getPack(w http.ResponseWriter, r *http.Request) {
	p, err := s.loader.Load(r.Context(), chi.URLParam(r, "packID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) getGraph(w http.ResponseWriter, r *http.Request) {
	packID := chi.URLParam(r, "packID")
	p, err := s.loader.Load(r.Context(), packID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var overlay *graph.GraphOverlay
	if caseID := r.URL.Query().Get("case"); caseID != "" {
		export, err := s.sessions.Export(r.Context(), caseID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		current := ""
		if export.Meta.PackID == packID {
			current = export.Meta.NodeID
		}
		overlay = graph.OverlayFromTrace(packID, export.Trace, current)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, graph.GenerateMermaid(p, overlay))
}

func (s *Server) createCase(w http.ResponseWriter, r *http.Request) {
	var body createCaseRequest
	if err := s.decode(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	caseID, view, err := s.sessions.Create(r.Context(), body.PackID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/cases/"+caseID)
	s.writeJSON(w, http.StatusCreated, TransitionResponse{CaseID: caseID, View: view})
}

func (s *Server) listCases(w http.ResponseWriter, r *http.Request) {
	ids, err := s.sessions.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, ids)
}

func (s *Server) getCase(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "caseID")
	view, err := s.sessions.View(r.Context(), caseID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, TransitionResponse{CaseID: caseID, View: view})
}

func (s *Server) deleteCase(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "caseID")
	if err := s.sessions.Delete(r.Context(), caseID); err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.cases != nil {
		s.cases.Forget(caseID)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) exportCase(w http.ResponseWriter, r *http.Request) {
	export, err := s.sessions.Export(r.Context(), chi.URLParam(r, "caseID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, export)
}

func (s *Server) answer(w http.ResponseWriter, r *http.Request) {
	var body answerRequest
	if err := s.decode(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	key, err := runner.SanitizeInput(body.Key)
	if err != nil {
		s.logger.Warn("answer input rejected", "err", err, "size", len(body.Key))
		s.writeError(w, r, errBadRequest{err})
		return
	}
	s.transition("answer", func(eng *ddt.Engine, ctx context.Context) (domain.View, error) {
		return eng.Answer(ctx, key)
	})(w, r)
}

// step is a transition applied to a case engine. Engine method expressions
// such as (*ddt.Engine).Back satisfy it.
type step func(eng *ddt.Engine, ctx context.Context) (domain.View, error)

// transition runs fn under the case lock, diffs the case state around it and
// broadcasts the result to event subscribers.
func (s *Server) transition(op string, fn step) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caseID := chi.URLParam(r, "caseID")
		var diff *domain.StateDiff
		view, err := s.sessions.Do(r.Context(), caseID, func(ctx context.Context, eng *ddt.Engine) (domain.View, error) {
			before := eng.Store().State()
			view, err := fn(eng, ctx)
			if err == nil {
				diff = domain.DiffState(before, eng.Store().State())
			}
			return view, err
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		s.logger.Debug("transition applied", "op", op, "case_id", caseID, "node_id", view.NodeID)
		s.streams.Broadcast(Event{CaseID: caseID, Op: op, PackID: view.PackID, NodeID: view.NodeID, Diff: diff})
		s.writeJSON(w, http.StatusOK, TransitionResponse{CaseID: caseID, View: view, Diff: diff})
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errBadRequest{fmt.Errorf("invalid request body: %w", err)}
	}
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return errBadRequest{fmt.Errorf("invalid request body: %s fails %q", verrs[0].Field(), verrs[0].Tag())}
		}
		return errBadRequest{err}
	}
	return nil
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var (
		badReq     errBadRequest
		validation *domain.ValidationError
		acq        *domain.AcquisitionError
		trans      *domain.TransitionError
	)
	switch {
	case errors.As(err, &badReq):
		return http.StatusBadRequest
	case errors.As(err, &validation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrCaseNotFound), errors.Is(err, domain.ErrPackNotFound):
		return http.StatusNotFound
	case errors.As(err, &acq):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrBusy), errors.As(err, &trans),
		errors.Is(err, domain.ErrNotStarted), errors.Is(err, domain.ErrNoPack):
		return http.StatusConflict
	case errors.Is(err, errStreamingUnsupported):
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	} else {
		s.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}
