package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sundayezeilo/linkpool/internal/errx"
)

// MaxRequestBodySize is the maximum allowed request body size (1MB).
const MaxRequestBodySize = 1 << 20

// BodyError describes a request body that could not be decoded.
type BodyError struct {
	Reason string
}

func (e *BodyError) Error() string { return e.Reason }

func bodyError(format string, args ...any) error {
	return errx.E("httpx.DecodeJSON", errx.Invalid, &BodyError{Reason: fmt.Sprintf(format, args...)})
}

// DecodeJSON decodes exactly one JSON value of type T from the request body.
// Failures are Invalid errors wrapping a *BodyError whose text is safe to
// return to the client.
func DecodeJSON[T any](r *http.Request) (T, error) {
	var zero T

	r.Body = http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var v T
	if err := dec.Decode(&v); err != nil {
		return zero, decodeError(err)
	}

	// One value per body; anything after it is an error.
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return zero, bodyError("request body contains multiple JSON objects")
	}

	return v, nil
}

func decodeError(err error) error {
	var (
		syntaxErr   *json.SyntaxError
		typeErr     *json.UnmarshalTypeError
		maxBytesErr *http.MaxBytesError
	)
	switch {
	case errors.As(err, &syntaxErr):
		return bodyError("malformed JSON at position %d", syntaxErr.Offset)
	case errors.As(err, &typeErr):
		return bodyError("invalid value for field %q: want %s", typeErr.Field, typeErr.Type)
	case errors.As(err, &maxBytesErr):
		return bodyError("request body too large (max %d bytes)", MaxRequestBodySize)
	case errors.Is(err, io.EOF):
		return bodyError("request body is empty")
	case errors.Is(err, io.ErrUnexpectedEOF):
		return bodyError("malformed JSON: unexpected end of body")
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		return bodyError("%s", strings.TrimPrefix(err.Error(), "json: "))
	default:
		return bodyError("failed to decode JSON: %v", err)
	}
}
