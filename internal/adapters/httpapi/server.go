package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ghalamif/SlopeGuard/internal/domain"
)

// HistoryReader exposes the recent assessment window.
type HistoryReader interface {
	Snapshot() []*domain.ScoredFrame
	Latest() (*domain.ScoredFrame, bool)
}

// AlertReader exposes the retained alerts, newest first.
type AlertReader interface {
	Alerts() []domain.Alert
}

type Server struct {
	history  HistoryReader
	alerts   AlertReader
	hub      *Hub
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

type Option func(*Server)

// WithGatherer serves /metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

func NewServer(history HistoryReader, alerts AlertReader, hub *Hub, opts ...Option) *Server {
	s := &Server{
		history:  history,
		alerts:   alerts,
		hub:      hub,
		gatherer: prometheus.DefaultGatherer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes builds the dashboard router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/risk/current", s.handleCurrent)
		r.Get("/risk/history", s.handleHistory)
		r.Post("/risk/compute", s.handleCompute)
		r.Get("/alerts", s.handleAlerts)
		if s.hub != nil {
			r.Get("/stream", s.hub.ServeWS)
		}
	})
	return r
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

// ComputeRequest is the body of POST /api/v1/risk/compute.
type ComputeRequest struct {
	Reading     domain.SensorReading `json:"reading"`
	MotionScore float64              `json:"motion_score"`
}

// ComputeResponse is the stateless scoring result.
type ComputeResponse struct {
	Assessment   domain.RiskAssessment `json:"assessment"`
	Level        domain.RiskLevel      `json:"level"`
	Explanations []string              `json:"explanations"`
	Emergency    bool                  `json:"emergency"`
	HeatZone     bool                  `json:"heat_zone"`
	MotionZone   bool                  `json:"motion_zone"`
}

func (s *Server) handleCurrent(w http.ResponseWriter, _ *http.Request) {
	latest, ok := s.history.Latest()
	if !ok {
		s.writeError(w, http.StatusNotFound, "not_found", "no assessment yet")
		return
	}
	s.writeJSON(w, http.StatusOK, latest)
}

func (s *Server) handleHistory(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.history.Snapshot())
}

func (s *Server) handleAlerts(w http.ResponseWriter, _ *http.Request) {
	alerts := s.alerts.Alerts()
	if alerts == nil {
		alerts = []domain.Alert{}
	}
	s.writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleCompute(w http.ResponseWriter, r *http.Request) {
	var req ComputeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	a, err := domain.AssessReading(req.Reading, req.MotionScore)
	if err != nil {
		code := "bad_request"
		if errors.Is(err, domain.ErrInvalidInput) {
			code = "invalid_input"
		}
		s.writeError(w, http.StatusBadRequest, code, err.Error())
		return
	}

	explanations := domain.ExplainRiskFactors(a)
	if explanations == nil {
		explanations = []string{}
	}
	s.writeJSON(w, http.StatusOK, ComputeResponse{
		Assessment:   a,
		Level:        domain.Classify(a.TotalRisk),
		Explanations: explanations,
		Emergency:    domain.EmergencyProtocol(a.TotalRisk),
		HeatZone:     domain.HeatZoneActive(a.TotalRisk),
		MotionZone:   domain.MotionZoneActive(req.MotionScore),
	})
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, msg string) {
	s.writeJSON(w, status, errorResponse{Error: apiError{Code: code, Message: msg}})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("response encode failed", "error", err)
	}
}
