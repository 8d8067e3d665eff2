package api

import (
	"context"
	"net/http"

	"github.com/okian/assay/internal/domain/model"
	"github.com/okian/assay/internal/domain/psychometrics"
)

// PsychometricsDependencies exposes item-bank analysis.
type PsychometricsDependencies interface {
	Recalculate(ctx context.Context) (psychometrics.RecalcSummary, error)
	RecalculateCompetency(ctx context.Context, competencyID string) (model.CompetencyReliability, error)
	HealthReport(ctx context.Context) (model.HealthReport, error)
}

// PsychometricsHandler serves /psychometrics routes.
type PsychometricsHandler struct {
	deps PsychometricsDependencies
}

// NewPsychometricsHandler creates a new psychometrics handler.
func NewPsychometricsHandler(deps PsychometricsDependencies) *PsychometricsHandler {
	return &PsychometricsHandler{deps: deps}
}

// HandleHealth handles GET /psychometrics/health.
func (h *PsychometricsHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	report, err := h.deps.HealthReport(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleRecalculate handles POST /psychometrics/recalculate.
func (h *PsychometricsHandler) HandleRecalculate(w http.ResponseWriter, r *http.Request) {
	summary, err := h.deps.Recalculate(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRecalcResponse(summary))
}

// HandleRecalculateCompetency handles POST /competencies/{id}/recalculate.
func (h *PsychometricsHandler) HandleRecalculateCompetency(w http.ResponseWriter, r *http.Request) {
	rel, err := h.deps.RecalculateCompetency(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rel)
}
