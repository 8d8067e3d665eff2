package api

import (
	"errors"
	"net/http"

	"github.com/okian/assay/internal/adapters/mq/queue"
	"github.com/okian/assay/internal/adapters/repository"
	service "github.com/okian/assay/internal/app"
	"github.com/okian/assay/internal/domain/dedupe"
	"github.com/okian/assay/internal/domain/psychometrics"
)

// ErrBadRequest marks malformed input caught by the HTTP layer.
var ErrBadRequest = errors.New("bad request")

// Error codes returned in error bodies and used as error metric labels.
const (
	codeBadRequest      = "bad_request"
	codeNotFound        = "not_found"
	codeUnknownItem     = "unknown_item"
	codeIllegalState    = "illegal_state"
	codeSessionBusy     = "session_busy"
	codeResultConflict  = "result_conflict"
	codeQueueFull       = "queue_full"
	codeTooManySessions = "too_many_sessions"
	codeUnavailable     = "unavailable"
	codeInternal        = "internal_error"
)

// kindError tags an error with the operation that produced it and a
// sentinel kind callers can match with errors.Is.
type kindError struct {
	op   string
	kind error
	err  error
}

func (e *kindError) Error() string {
	if e.err == nil {
		return e.op + ": " + e.kind.Error()
	}
	return e.op + ": " + e.kind.Error() + ": " + e.err.Error()
}

func (e *kindError) Unwrap() []error {
	if e.err == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.err}
}

// WrapKind tags err with kind and op.
func WrapKind(op string, kind, err error) error {
	return &kindError{op: op, kind: kind, err: err}
}

// classify maps domain errors to an HTTP status and a stable error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, psychometrics.ErrInvalidArgument),
		errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, codeBadRequest
	case errors.Is(err, psychometrics.ErrUnknownItem):
		return http.StatusNotFound, codeUnknownItem
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, psychometrics.ErrIllegalState):
		return http.StatusConflict, codeIllegalState
	case errors.Is(err, service.ErrSessionBusy):
		return http.StatusConflict, codeSessionBusy
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, codeResultConflict
	case errors.Is(err, queue.ErrFull):
		return http.StatusTooManyRequests, codeQueueFull
	case errors.Is(err, dedupe.ErrGuardFull):
		return http.StatusTooManyRequests, codeTooManySessions
	case errors.Is(err, service.ErrNotStarted),
		errors.Is(err, queue.ErrClosed):
		return http.StatusServiceUnavailable, codeUnavailable
	default:
		return http.StatusInternalServerError, codeInternal
	}
}
