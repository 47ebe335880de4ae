package httpx

import (
	"errors"
	"net/http"

	"github.com/sundayezeilo/linkpool/internal/errx"
)

// Error codes carried in ErrorResponse.Error.
const (
	CodeInvalidRequest = "invalid_request" // the body could not be decoded
	CodeInvalidInput   = "invalid_input"
	CodeNotFound       = "not_found"
	CodeConflict       = "conflict"
	CodeUnavailable    = "unavailable"
	CodeInternal       = "internal_error"
)

type kindResponse struct {
	status int
	code   string
}

var kindResponses = map[errx.Kind]kindResponse{
	errx.NotFound:    {http.StatusNotFound, CodeNotFound},
	errx.Conflict:    {http.StatusConflict, CodeConflict},
	errx.Invalid:     {http.StatusBadRequest, CodeInvalidInput},
	errx.Unavailable: {http.StatusServiceUnavailable, CodeUnavailable},
	errx.Internal:    {http.StatusInternalServerError, CodeInternal},
}

func responseFor(err error) kindResponse {
	var be *BodyError
	if errors.As(err, &be) {
		return kindResponse{http.StatusBadRequest, CodeInvalidRequest}
	}
	if resp, ok := kindResponses[errx.KindOf(err)]; ok {
		return resp
	}
	return kindResponse{http.StatusInternalServerError, CodeInternal}
}

// StatusOf returns the status WriteErrx would answer err with.
func StatusOf(err error) int {
	return responseFor(err).status
}

// WriteErrx writes err as an ErrorResponse. Status and code follow the
// error's kind and the message is errx.Message(err), so store failures
// never leak their cause. Undecodable bodies are reported as
// invalid_request.
func WriteErrx(w http.ResponseWriter, r *http.Request, err error) {
	resp := responseFor(err)
	WriteError(w, r, resp.status, resp.code, errx.Message(err))
}
