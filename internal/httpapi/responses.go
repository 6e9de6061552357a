package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"FriendFeedwebserver/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, errorEnvelope{Error: apiError{Code: code, Message: message}})
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Debug("write json response", "err", err)
	}
}

// errorMapping is checked in order; the first sentinel matched by
// errors.Is decides the response.
var errorMapping = []struct {
	err     error
	status  int
	code    string
	message string
}{
	{domain.ErrValidation, http.StatusBadRequest, "validation_error", "invalid request"},
	{domain.ErrEmailTaken, http.StatusConflict, "email_taken", "email already taken"},
	{domain.ErrExternalAccountExists, http.StatusConflict, "external_account_exists", "account is linked to another sign-in"},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials", "invalid email or password"},
	{domain.ErrUnauthorized, http.StatusUnauthorized, "unauthorized", "unauthorized"},
	{domain.ErrPermissionDenied, http.StatusForbidden, "permission_denied", "not allowed to act for this user"},
	{domain.ErrAlreadyPending, http.StatusConflict, "already_pending", "friend request already pending"},
	{domain.ErrAlreadyAccepted, http.StatusConflict, "already_accepted", "already friends"},
	{domain.ErrInvalidTransition, http.StatusConflict, "invalid_transition", "operation not allowed in the current state"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found", "not found"},
	{domain.ErrUnavailable, http.StatusServiceUnavailable, "unavailable", "service temporarily unavailable, retry later"},
}

func WriteDomainError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		WriteJSON(w, http.StatusBadRequest, errorEnvelope{Error: apiError{
			Code:    "validation_error",
			Message: "invalid request",
			Fields:  verr.Fields,
		}})
		return
	}
	var terr *domain.TransitionError
	if errors.As(err, &terr) && terr.Cause == nil {
		WriteError(w, http.StatusConflict, "invalid_transition", terr.Reason)
		return
	}

	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			if m.status == http.StatusServiceUnavailable {
				w.Header().Set("Retry-After", "1")
			}
			WriteError(w, m.status, m.code, m.message)
			return
		}
	}

	slog.Default().Error("unhandled error", "err", err)
	WriteError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}
