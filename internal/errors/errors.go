// Package errors maps optimizer failures onto HTTP and JSON-RPC responses.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/copyleftdev/pigeon/internal/optimization"
)

// Kind classifies an error for responses and metrics labels.
type Kind string

const (
	KindInvalidConfiguration Kind = "invalid_configuration"
	KindUnknownObjective     Kind = "unknown_objective"
	KindLifecycle            Kind = "lifecycle"
	KindNumericInstability   Kind = "numeric_instability"
	KindNotFound             Kind = "not_found"
	KindTooManyRuns          Kind = "too_many_runs"
	KindBadRequest           Kind = "bad_request"
	KindInternal             Kind = "internal"
)

var (
	// ErrRunNotFound is returned when a run id is not known to the server.
	ErrRunNotFound = stderrors.New("run not found")
	// ErrTooManyRuns is returned when the server already holds its limit of runs.
	ErrTooManyRuns = stderrors.New("too many runs")
	// ErrBadRequest marks malformed request bodies and query parameters.
	ErrBadRequest = stderrors.New("bad request")
)

// KindOf returns the classification of err. Unknown errors are internal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case stderrors.Is(err, optimization.ErrUnknownObjective):
		return KindUnknownObjective
	case stderrors.Is(err, optimization.ErrInvalidConfiguration):
		return KindInvalidConfiguration
	case stderrors.Is(err, optimization.ErrNumericInstability):
		return KindNumericInstability
	case stderrors.Is(err, optimization.ErrNotConfigured),
		stderrors.Is(err, optimization.ErrNotStarted),
		stderrors.Is(err, optimization.ErrRunFinished):
		return KindLifecycle
	case stderrors.Is(err, ErrRunNotFound):
		return KindNotFound
	case stderrors.Is(err, ErrTooManyRuns):
		return KindTooManyRuns
	case stderrors.Is(err, ErrBadRequest):
		return KindBadRequest
	default:
		return KindInternal
	}
}

// HTTPStatus returns the status code a handler should answer err with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case "":
		return http.StatusOK
	case KindInvalidConfiguration, KindUnknownObjective, KindBadRequest:
		return http.StatusBadRequest
	case KindLifecycle:
		return http.StatusConflict
	case KindNumericInstability:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindTooManyRuns:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Response is the JSON error body.
type Response struct {
	Error  string   `json:"error"`
	Kind   Kind     `json:"kind"`
	Params []string `json:"params,omitempty"`
}

// NewResponse builds the body for err. Internal errors are not echoed.
func NewResponse(err error) Response {
	kind := KindOf(err)
	msg := err.Error()
	if kind == KindInternal {
		msg = http.StatusText(http.StatusInternalServerError)
	}
	return Response{
		Error:  msg,
		Kind:   kind,
		Params: optimization.Params(err),
	}
}

// Write answers the request with err's status and JSON body.
func Write(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(HTTPStatus(err))
	_ = json.NewEncoder(w).Encode(NewResponse(err))
}
