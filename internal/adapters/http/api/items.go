package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/okian/assay/internal/domain/model"
)

const maxRetireBody = 64 << 10

// retireSchema describes the body of POST /items/{id}/retire.
var retireSchema = gojsonschema.NewStringLoader(`{
  "type": "object",
  "properties": {
    "reason": {"type": "string", "minLength": 1, "maxLength": 1000}
  },
  "required": ["reason"],
  "additionalProperties": false
}`)

// ItemDependencies reads and changes the lifecycle of question items.
type ItemDependencies interface {
	Item(ctx context.Context, questionID string) (model.ItemStatistics, error)
	Retire(ctx context.Context, questionID, reason string) (model.ItemStatistics, error)
	Activate(ctx context.Context, questionID string) (model.ItemStatistics, error)
}

// ItemsHandler serves /items routes.
type ItemsHandler struct {
	deps ItemDependencies
}

// NewItemsHandler creates a new items handler.
func NewItemsHandler(deps ItemDependencies) *ItemsHandler {
	return &ItemsHandler{deps: deps}
}

// HandleGet handles GET /items/{id}.
func (h *ItemsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.Item(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type retireRequest struct {
	Reason string `json:"reason"`
}

// decodeRetire validates the raw body against retireSchema before decoding.
func decodeRetire(body io.Reader) (retireRequest, error) {
	raw, err := io.ReadAll(io.LimitReader(body, maxRetireBody))
	if err != nil {
		return retireRequest{}, err
	}
	doc := gojsonschema.NewBytesLoader(raw)
	res, err := gojsonschema.Validate(retireSchema, doc)
	if err != nil {
		return retireRequest{}, fmt.Errorf("invalid json: %w", err)
	}
	if !res.Valid() {
		msgs := make([]string, len(res.Errors()))
		for i, desc := range res.Errors() {
			msgs[i] = desc.String()
		}
		return retireRequest{}, fmt.Errorf("invalid body: %s", strings.Join(msgs, "; "))
	}

	var req retireRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return retireRequest{}, err
	}
	return req, nil
}

// HandleRetire handles POST /items/{id}/retire.
func (h *ItemsHandler) HandleRetire(w http.ResponseWriter, r *http.Request) {
	const op = "api.retire"
	req, err := decodeRetire(r.Body)
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	st, err := h.deps.Retire(r.Context(), r.PathValue("id"), req.Reason)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleActivate handles POST /items/{id}/activate. It answers 409 when the
// item's metrics do not qualify it.
func (h *ItemsHandler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.Activate(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
