package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"routinely/internal/service"
)

func TestRespondWithErrorWritesStatusAndBody(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondWithError(recorder, 418, "TEAPOT", "Teapot", "", nil)

	if recorder.Code != 418 {
		t.Fatalf("expected status 418, got %d", recorder.Code)
	}
	var body errorResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if body.Error != "Teapot" || body.Code != "TEAPOT" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestRespondWithErrorLogsMessage(t *testing.T) {
	var buf bytes.Buffer
	logger := log.Default()
	originalOutput := logger.Writer()
	logger.SetOutput(&buf)
	defer logger.SetOutput(originalOutput)

	recorder := httptest.NewRecorder()
	err := errors.New("boom")

	respondWithError(recorder, 500, CodeInternal, "Internal server error", "", err)

	logOutput := buf.String()
	if !strings.Contains(logOutput, "Internal server error") {
		t.Fatalf("expected log to include user message, got %q", logOutput)
	}
	if !strings.Contains(logOutput, "boom") {
		t.Fatalf("expected log to include error, got %q", logOutput)
	}
}

func TestRespondWithServiceError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantStatus    int
		wantCode      string
		wantRetryable bool
	}{
		{name: "validation", err: &service.ValidationError{Field: "points", Message: "must not be zero"}, wantStatus: http.StatusBadRequest, wantCode: CodeValidation},
		{name: "insufficient", err: fmt.Errorf("%w: balance 3", service.ErrInsufficientPoints), wantStatus: http.StatusBadRequest, wantCode: CodeInsufficientPoints},
		{name: "forbidden", err: service.ErrForbidden, wantStatus: http.StatusForbidden, wantCode: CodeForbidden},
		{name: "not found", err: service.ErrNotFound, wantStatus: http.StatusNotFound, wantCode: CodeNotFound},
		{name: "already claimed", err: service.ErrAlreadyClaimed, wantStatus: http.StatusConflict, wantCode: CodeAlreadyClaimed},
		{name: "conflict", err: fmt.Errorf("claim: %w", service.ErrConstraintViolation), wantStatus: http.StatusConflict, wantCode: CodeConstraintViolation, wantRetryable: true},
		{name: "unexpected", err: errors.New("disk on fire"), wantStatus: http.StatusInternalServerError, wantCode: CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			respondWithServiceError(recorder, "test", tt.err)

			if recorder.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", recorder.Code, tt.wantStatus)
			}
			var body errorResponse
			if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
				t.Fatalf("body is not JSON: %v", err)
			}
			if body.Code != tt.wantCode || body.Retryable != tt.wantRetryable {
				t.Errorf("body = %+v, want code %s retryable %v", body, tt.wantCode, tt.wantRetryable)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight should not reach the handler")
	})
	handler := CORS([]string{"https://app.example.com"}, false)(next)

	tests := []struct {
		name        string
		origin      string
		wantOrigin  string
		wantHeaders string
	}{
		{name: "allowed origin", origin: "https://app.example.com", wantOrigin: "https://app.example.com", wantHeaders: "authorization"},
		{name: "other origin", origin: "https://evil.example.com", wantOrigin: "", wantHeaders: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/api/rewards/x/claim", nil)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			req.Header.Set("Access-Control-Request-Headers", "authorization")
			recorder := httptest.NewRecorder()

			handler.ServeHTTP(recorder, req)

			if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := recorder.Header().Get("Access-Control-Allow-Headers"); got != tt.wantHeaders {
				t.Errorf("Access-Control-Allow-Headers = %q, want %q", got, tt.wantHeaders)
			}
		})
	}
}
