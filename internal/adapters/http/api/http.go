// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/assay/internal/domain/model"
	"github.com/okian/assay/internal/domain/psychometrics"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	ScoringDependencies
	ItemDependencies
	PsychometricsDependencies
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	health        *HealthHandler
	stats         *StatsHandler
	sessions      *SessionsHandler
	items         *ItemsHandler
	psychometrics *PsychometricsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		health:        NewHealthHandler(),
		stats:         NewStatsHandler(deps),
		sessions:      NewSessionsHandler(deps),
		items:         NewItemsHandler(deps),
		psychometrics: NewPsychometricsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.health.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", s.health.HandleMetrics)
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.stats.HandleStats, "stats"))

	mux.HandleFunc("POST /sessions/{id}/score", MetricsMiddleware(s.sessions.HandleScore, "score"))
	mux.HandleFunc("GET /sessions/{id}/result", MetricsMiddleware(s.sessions.HandleResult, "result"))

	mux.HandleFunc("GET /items/{id}", MetricsMiddleware(s.items.HandleGet, "item"))
	mux.HandleFunc("POST /items/{id}/retire", MetricsMiddleware(s.items.HandleRetire, "retire"))
	mux.HandleFunc("POST /items/{id}/activate", MetricsMiddleware(s.items.HandleActivate, "activate"))

	mux.HandleFunc("GET /psychometrics/health", MetricsMiddleware(s.psychometrics.HandleHealth, "psychometrics_health"))
	mux.HandleFunc("POST /psychometrics/recalculate", MetricsMiddleware(s.psychometrics.HandleRecalculate, "recalculate"))
	mux.HandleFunc("POST /competencies/{id}/recalculate",
		MetricsMiddleware(s.psychometrics.HandleRecalculateCompetency, "recalculate_competency"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// resultResponse is the wire shape of a scored session.
type resultResponse = model.TestResult

// recalcResponse reports a bulk recalculation.
type recalcResponse struct {
	Items        int    `json:"items"`
	Competencies int    `json:"competencies"`
	Took         string `json:"took"`
}

func newRecalcResponse(s psychometrics.RecalcSummary) recalcResponse {
	return recalcResponse{Items: s.Items, Competencies: s.Competencies, Took: s.Duration.String()}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	if l, ok := w.(errorLabeler); ok {
		l.labelError(code)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure picks the status from the error kind.
func writeFailure(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}
