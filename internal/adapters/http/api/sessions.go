package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/assay/internal/domain/model"
)

// ScoringDependencies scores sessions and reads their results.
type ScoringDependencies interface {
	Score(ctx context.Context, sessionID string) (model.TestResult, error)
	Enqueue(ctx context.Context, sessionID string) (string, error)
	Result(ctx context.Context, sessionID string) (model.TestResult, error)
}

// SessionsHandler serves /sessions routes.
type SessionsHandler struct {
	deps ScoringDependencies
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps ScoringDependencies) *SessionsHandler {
	return &SessionsHandler{deps: deps}
}

type acceptedResponse struct {
	Status    string `json:"status"`
	JobID     string `json:"job_id"`
	SessionID string `json:"session_id"`
}

// HandleScore handles POST /sessions/{id}/score. With ?async=true the session
// is queued and 202 is returned.
func (h *SessionsHandler) HandleScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.score"
	id := r.PathValue("id")

	async := false
	if v := r.URL.Query().Get("async"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeFailure(w, WrapKind(op, ErrBadRequest, err))
			return
		}
		async = b
	}

	if async {
		jobID, err := h.deps.Enqueue(r.Context(), id)
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "accepted", JobID: jobID, SessionID: id})
		return
	}

	res, err := h.deps.Score(r.Context(), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resultResponse(res))
}

// HandleResult handles GET /sessions/{id}/result.
func (h *SessionsHandler) HandleResult(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.Result(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resultResponse(res))
}
