package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"FriendFeedwebserver/internal/domain"
)

func TestWriteDomainErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{domain.NewValidationError(map[string]string{"uid": "required"}), http.StatusBadRequest, "validation_error"},
		{domain.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{domain.ErrPermissionDenied, http.StatusForbidden, "permission_denied"},
		{fmt.Errorf("get user: %w", domain.ErrNotFound), http.StatusNotFound, "not_found"},
		{&domain.TransitionError{Op: "accept_request", Reason: "no pending request"}, http.StatusConflict, "invalid_transition"},
		{domain.ErrAlreadyPending, http.StatusConflict, "already_pending"},
		{domain.ErrAlreadyAccepted, http.StatusConflict, "already_accepted"},
		{&domain.TransitionError{Op: "accept_request", Reason: "already friends", Cause: domain.ErrAlreadyAccepted}, http.StatusConflict, "already_accepted"},
		{fmt.Errorf("list edges: %w: %w", domain.ErrUnavailable, context.DeadlineExceeded), http.StatusServiceUnavailable, "unavailable"},
		{domain.ErrExternalAccountExists, http.StatusConflict, "external_account_exists"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			rr := httptest.NewRecorder()
			WriteDomainError(rr, tt.err)
			expectStatus(t, rr, tt.status)
			got := decodeBody[errorEnvelope](t, rr)
			if got.Error.Code != tt.code {
				t.Fatalf("code = %q, want %q", got.Error.Code, tt.code)
			}
		})
	}
}

func TestValidationErrorListsFields(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteDomainError(rr, domain.NewValidationError(map[string]string{"caption": "too long"}))
	got := decodeBody[errorEnvelope](t, rr)
	if got.Error.Fields["caption"] != "too long" {
		t.Fatalf("unexpected fields: %+v", got.Error.Fields)
	}
}

func TestUnavailableSetsRetryAfter(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteDomainError(rr, fmt.Errorf("update pair: %w", domain.ErrUnavailable))
	if got := rr.Header().Get("Retry-After"); got != "1" {
		t.Fatalf("Retry-After = %q", got)
	}

	rr = httptest.NewRecorder()
	WriteDomainError(rr, domain.ErrNotFound)
	if got := rr.Header().Get("Retry-After"); got != "" {
		t.Fatalf("unexpected Retry-After %q on 404", got)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetRequestID(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{"client id kept", "abc-123", true},
		{"missing", "", false},
		{"control chars", "abc\x01", false},
		{"too long", strings.Repeat("x", maxRequestIDLen+1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			if tt.header != "" {
				req.Header.Set("X-Request-Id", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if got := rr.Header().Get("X-Request-Id"); got != seen || got == "" {
				t.Fatalf("response id %q, context id %q", got, seen)
			}
			if (seen == tt.header) != tt.keep {
				t.Fatalf("id %q kept=%v, want %v", seen, seen == tt.header, tt.keep)
			}
		})
	}
}

func TestRecovererWritesInternalError(t *testing.T) {
	h := Recoverer(nil, true)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	expectStatus(t, rr, http.StatusInternalServerError)
}
