package httpx

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
)

// linkBody and pageBody mirror the link API payloads.
type linkBody struct {
	ID        string `json:"id"`
	ShortCode string `json:"shortCode"`
	ShortURL  string `json:"shortUrl"`
	Status    string `json:"status"`
	Clicks    int64  `json:"clicks"`
}

type pageBody struct {
	Data      []linkBody `json:"data"`
	Total     int64      `json:"total"`
	Page      int        `json:"page"`
	PerPage   int        `json:"perPage"`
	PageCount int        `json:"pageCount"`
}

func TestWriteJSON(t *testing.T) {
	link := linkBody{
		ID:        "0191b6a0-0000-7000-8000-000000000001",
		ShortCode: "abcd1234",
		ShortURL:  "https://sho.rt/abcd1234",
		Status:    "ACTIVE",
	}

	tests := []struct {
		name       string
		status     int
		data       any
		wantStatus int
		wantJSON   string
	}{
		{
			name:       "created link",
			status:     http.StatusCreated,
			data:       link,
			wantStatus: http.StatusCreated,
			wantJSON:   `{"id":"0191b6a0-0000-7000-8000-000000000001","shortCode":"abcd1234","shortUrl":"https://sho.rt/abcd1234","status":"ACTIVE","clicks":0}`,
		},
		{
			name:       "page of links",
			status:     http.StatusOK,
			data:       pageBody{Data: []linkBody{link}, Total: 11, Page: 2, PerPage: 10, PageCount: 2},
			wantStatus: http.StatusOK,
			wantJSON:   `{"data":[{"id":"0191b6a0-0000-7000-8000-000000000001","shortCode":"abcd1234","shortUrl":"https://sho.rt/abcd1234","status":"ACTIVE","clicks":0}],"total":11,"page":2,"perPage":10,"pageCount":2}`,
		},
		{
			name:       "empty page keeps an empty array",
			status:     http.StatusOK,
			data:       pageBody{Data: []linkBody{}},
			wantStatus: http.StatusOK,
			wantJSON:   `{"data":[],"total":0,"page":0,"perPage":0,"pageCount":0}`,
		},
		{
			name:       "unencodable value becomes a 500",
			status:     http.StatusOK,
			data:       map[string]float64{"clicks": math.NaN()},
			wantStatus: http.StatusInternalServerError,
			wantJSON:   `{"error":"internal_error","message":"an unexpected error occurred"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()

			WriteJSON(rr, tt.status, tt.data)

			if rr.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected Content-Type application/json, got %q", ct)
			}
			if cl := rr.Header().Get("Content-Length"); cl != strconv.Itoa(rr.Body.Len()) {
				t.Errorf("Content-Length = %s, body is %d bytes", cl, rr.Body.Len())
			}
			if got := bytes.TrimSpace(rr.Body.Bytes()); string(got) != tt.wantJSON {
				t.Errorf("expected JSON %s, got %s", tt.wantJSON, got)
			}
		})
	}
}

func TestWriteError_EchoesRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/links/nope", nil)
	req = req.WithContext(WithRequestID(req.Context(), "req-123"))
	rr := httptest.NewRecorder()

	WriteError(rr, req, http.StatusBadRequest, CodeInvalidInput, "id must be a UUID")

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	want := ErrorResponse{Error: CodeInvalidInput, Message: "id must be a UUID", RequestID: "req-123"}
	if resp != want {
		t.Errorf("response = %+v, want %+v", resp, want)
	}
}

func TestWriteError_OmitsEmptyFields(t *testing.T) {
	rr := httptest.NewRecorder()

	WriteError(rr, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusNotFound, CodeNotFound, "")

	if got := bytes.TrimSpace(rr.Body.Bytes()); string(got) != `{"error":"not_found"}` {
		t.Errorf("body = %s, want only the error code", got)
	}
}

func TestWritePNG(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.White)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}

	rr := httptest.NewRecorder()
	if err := WritePNG(rr, "abcd1234", buf.Bytes()); err != nil {
		t.Fatalf("WritePNG() error = %v", err)
	}

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); cd != `inline; filename="abcd1234.png"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if cl := rr.Header().Get("Content-Length"); cl != strconv.Itoa(buf.Len()) {
		t.Errorf("Content-Length = %s, want %d", cl, buf.Len())
	}
	if _, err := png.Decode(rr.Body); err != nil {
		t.Errorf("body is not a PNG: %v", err)
	}
}
