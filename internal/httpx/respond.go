package httpx

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
)

// ErrorResponse is the body of every JSON error. RequestID echoes the
// X-Request-ID header so a client report can be matched to the logs.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// internalErrorBody is written when a response value cannot be encoded.
var internalErrorBody = []byte(`{"error":"` + CodeInternal + `","message":"an unexpected error occurred"}` + "\n")

// WriteJSON encodes v and writes it with status. v is encoded before any
// header is sent, so a value that fails to encode turns into a 500 rather
// than a truncated success.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err, "type", fmt.Sprintf("%T", v))
		_ = writeBody(w, http.StatusInternalServerError, "application/json", internalErrorBody)
		return
	}
	_ = writeBody(w, status, "application/json", append(body, '\n'))
}

// WriteError writes an ErrorResponse tagged with the request's id.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	WriteJSON(w, status, ErrorResponse{
		Error:     code,
		Message:   message,
		RequestID: GetRequestID(r.Context()),
	})
}

// WritePNG writes an inline PNG image offered for download as name.png.
func WritePNG(w http.ResponseWriter, name string, png []byte) error {
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s.png"`, name))
	return writeBody(w, http.StatusOK, "image/png", png)
}

func writeBody(w http.ResponseWriter, status int, contentType string, body []byte) error {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	_, err := w.Write(body)
	return err
}
