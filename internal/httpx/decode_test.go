package httpx

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sundayezeilo/linkpool/internal/errx"
)

type testRequest struct {
	OriginalURL string `json:"originalUrl"`
	Status      string `json:"status"`
	Clicks      int    `json:"clicks"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
		wantErr     bool
		errContains string
		validate    func(*testing.T, testRequest)
	}{
		{
			name:        "valid JSON",
			body:        `{"originalUrl":"https://example.com","status":"ACTIVE","clicks":30}`,
			contentType: "application/json",
			wantErr:     false,
			validate: func(t *testing.T, req testRequest) {
				if req.OriginalURL != "https://example.com" {
					t.Errorf("expected originalUrl 'https://example.com', got %q", req.OriginalURL)
				}
				if req.Status != "ACTIVE" {
					t.Errorf("expected status 'ACTIVE', got %q", req.Status)
				}
				if req.Clicks != 30 {
					t.Errorf("expected clicks 30, got %d", req.Clicks)
				}
			},
		},
		{
			name:        "empty body",
			body:        "",
			contentType: "application/json",
			wantErr:     true,
			errContains: "request body is empty",
		},
		{
			name:        "malformed JSON - missing quote",
			body:        `{"originalUrl":"https://example.com,"status":"ACTIVE"}`,
			contentType: "application/json",
			wantErr:     true,
			errContains: "malformed JSON",
		},
		{
			name:        "malformed JSON - trailing comma",
			body:        `{"originalUrl":"https://example.com","status":"ACTIVE",}`,
			contentType: "application/json",
			wantErr:     true,
			errContains: "malformed JSON",
		},
		{
			name:        "unknown field",
			body:        `{"originalUrl":"https://example.com","status":"ACTIVE","unknown":"field"}`,
			contentType: "application/json",
			wantErr:     true,
			errContains: `unknown field "unknown"`,
		},
		{
			name:        "truncated object",
			body:        `{"originalUrl":"https://example.com"`,
			contentType: "application/json",
			wantErr:     true,
			errContains: "unexpected end of body",
		},
		{
			name:        "invalid type for field",
			body:        `{"originalUrl":"https://example.com","status":"ACTIVE","clicks":"thirty"}`,
			contentType: "application/json",
			wantErr:     true,
			errContains: "invalid value for field",
		},
		{
			name:        "multiple JSON objects",
			body:        `{"originalUrl":"https://example.com","status":"ACTIVE"}{"originalUrl":"https://example.org"}`,
			contentType: "application/json",
			wantErr:     true,
			errContains: "multiple JSON objects",
		},
		{
			name:        "body too large",
			body:        `{"originalUrl":"` + strings.Repeat("x", MaxRequestBodySize+1) + `"}`,
			contentType: "application/json",
			wantErr:     true,
			errContains: "request body too large",
		},
		{
			name:        "partial JSON - can decode but more data exists",
			body:        `{"originalUrl":"https://example.com","status":"ACTIVE","clicks":30}extra`,
			contentType: "application/json",
			wantErr:     true,
			errContains: "multiple JSON objects",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/test", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}

			result, err := DecodeJSON[testRequest](req)

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("expected error to contain %q, got %q", tt.errContains, err.Error())
				}
				if errx.KindOf(err) != errx.Invalid {
					t.Errorf("KindOf() = %v, want Invalid", errx.KindOf(err))
				}
				var be *BodyError
				if !errors.As(err, &be) {
					t.Errorf("expected a *BodyError in %v", err)
				} else if strings.HasPrefix(be.Reason, "json: ") {
					t.Errorf("reason keeps the decoder prefix: %q", be.Reason)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if tt.validate != nil {
				tt.validate(t, result)
			}
		})
	}
}

func TestDecodeJSON_ZeroValueOnError(t *testing.T) {
	req := httptest.NewRequest("POST", "/test", strings.NewReader("invalid json"))

	result, err := DecodeJSON[testRequest](req)

	if err == nil {
		t.Fatal("expected error, got nil")
	}

	// Verify zero value is returned
	var zero testRequest
	if result != zero {
		t.Errorf("expected zero value on error, got %+v", result)
	}
}

func TestDecodeJSON_ClosesBody(t *testing.T) {
	body := &testReadCloser{
		Reader: strings.NewReader(`{"originalUrl":"https://example.com","status":"INACTIVE","clicks":25}`),
		closed: false,
	}

	req := httptest.NewRequest("POST", "/test", body)

	_, err := DecodeJSON[testRequest](req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !body.closed {
		t.Error("expected body to be closed")
	}
}

// testReadCloser helps verify that body is closed
type testReadCloser struct {
	io.Reader
	closed bool
}

func (t *testReadCloser) Close() error {
	t.closed = true
	return nil
}
