package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/abrezinsky/rafflebook/internal/errors"
	"github.com/abrezinsky/rafflebook/internal/testutil"
)

func TestToAPIError_Kinds(t *testing.T) {
	tests := []struct {
		kind      errors.Kind
		status    int
		code      string
		retryable bool
	}{
		{errors.ErrNotFound, http.StatusNotFound, ErrCodeNotFound, false},
		{errors.ErrValidation, http.StatusBadRequest, ErrCodeValidation, false},
		{errors.ErrInvalidInput, http.StatusBadRequest, ErrCodeValidation, false},
		{errors.ErrConflict, http.StatusConflict, ErrCodeConflict, false},
		{errors.ErrUnauthorized, http.StatusForbidden, ErrCodeForbidden, false},
		{errors.ErrNumberUnavailable, http.StatusConflict, ErrCodeNumberUnavailable, true},
		{errors.ErrConflictingConfirmation, http.StatusConflict, ErrCodeConflictingConfirmation, true},
		{errors.ErrContention, http.StatusServiceUnavailable, ErrCodeContention, true},
		{errors.ErrAlreadyResolved, http.StatusConflict, ErrCodeAlreadyResolved, false},
		{errors.ErrTimeout, http.StatusGatewayTimeout, ErrCodeTimeout, true},
		{errors.ErrInternal, http.StatusInternalServerError, ErrCodeInternalServer, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			apiErr := ToAPIError(&errors.Error{Kind: tt.kind, Message: "boom"})
			if apiErr.Status != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, apiErr.Status)
			}
			if apiErr.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, apiErr.Code)
			}
			if apiErr.Retryable != tt.retryable {
				t.Errorf("expected retryable %v, got %v", tt.retryable, apiErr.Retryable)
			}
		})
	}
}

func TestToAPIError_WrappedServiceError(t *testing.T) {
	err := fmt.Errorf("claim: %w", errors.NumberUnavailable([]int{7}))

	apiErr := ToAPIError(err)
	if apiErr.Status != http.StatusConflict || apiErr.Code != ErrCodeNumberUnavailable {
		t.Errorf("unexpected mapping: %+v", apiErr)
	}
	if apiErr.Message != "numbers already taken: [7]" {
		t.Errorf("expected service message, got %q", apiErr.Message)
	}
}

func TestToAPIError_PlainErrorIsInternal(t *testing.T) {
	apiErr := ToAPIError(fmt.Errorf("disk on fire"))
	if apiErr.Status != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", apiErr.Status)
	}
	if strings.Contains(apiErr.Message, "disk") {
		t.Errorf("internal details leaked: %q", apiErr.Message)
	}
}

func TestRespondError_RetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	h := &Handlers{Log: NoopHTTPLogger{}}
	h.respondError(rec, httptest.NewRequest(http.MethodPost, "/api/draws/d1/claims", nil), errors.Contention(3, nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Errorf("expected Retry-After header, got %q", rec.Header().Get("Retry-After"))
	}

	var body APIError
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != ErrCodeContention || !body.Retryable {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestRespondError_APIErrorPassesThrough(t *testing.T) {
	rec := httptest.NewRecorder()
	h := &Handlers{Log: NoopHTTPLogger{}}
	h.respondError(rec, httptest.NewRequest(http.MethodGet, "/", nil), BadRequest("nope"))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "" {
		t.Error("non-retryable errors must not set Retry-After")
	}
}

func TestRespondError_LogsInternalErrors(t *testing.T) {
	log, logs := testutil.NewLogger()
	h := &Handlers{Log: log}

	rec := httptest.NewRecorder()
	h.respondError(rec, httptest.NewRequest(http.MethodGet, "/api/draws/d1", nil), fmt.Errorf("disk I/O error"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	out := logs.String()
	if !strings.Contains(out, "Internal error") || !strings.Contains(out, "disk I/O error") || !strings.Contains(out, "/api/draws/d1") {
		t.Errorf("expected structured internal error log, got %q", out)
	}

	rec = httptest.NewRecorder()
	h.respondError(rec, httptest.NewRequest(http.MethodGet, "/api/draws/d2", nil), errors.NumberUnavailable([]int{3}))
	if strings.Contains(logs.String(), "/api/draws/d2") {
		t.Error("client errors should not be logged as internal")
	}
}

func TestDecodeJSON(t *testing.T) {
	var req ClaimRequest

	empty := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	if err := decodeJSON(empty, &req); err == nil || err.(*APIError).Message != "Request body is empty" {
		t.Errorf("expected empty body error, got %v", err)
	}

	bad := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{numbers:"))
	if err := decodeJSON(bad, &req); err == nil || err.(*APIError).Code != ErrCodeBadRequest {
		t.Errorf("expected bad request, got %v", err)
	}

	ok := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"numbers":[3,4]}`))
	if err := decodeJSON(ok, &req); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(req.Numbers) != 2 {
		t.Errorf("expected 2 numbers, got %v", req.Numbers)
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		query   string
		want    int
		wantErr bool
	}{
		{"", 0, false},
		{"limit=25", 25, false},
		{"limit=0", 0, false},
		{"limit=-1", 0, true},
		{"limit=abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/audit?"+tt.query, nil)
			got, err := parseLimit(r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}
