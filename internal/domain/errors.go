package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrPermissionDenied   = errors.New("permission_denied")
	ErrNotFound           = errors.New("not_found")
	ErrEmailTaken         = errors.New("email_taken")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrValidation         = errors.New("validation")

	ErrExternalAccountExists = errors.New("external_account_exists")

	ErrInvalidTransition = errors.New("invalid_transition")
	ErrAlreadyPending    = errors.New("already_pending")
	ErrAlreadyAccepted   = errors.New("already_accepted")
	ErrUnavailable       = errors.New("unavailable")

	// ErrConflict reports that a store transaction lost an optimistic
	// concurrency race. It is retried by the friends service and never
	// returned to HTTP callers.
	ErrConflict = errors.New("conflict")
)

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(fields map[string]string) error {
	return &ValidationError{Fields: fields}
}

// TransitionError describes a relationship operation whose precondition
// did not hold for the pair's current state.
type TransitionError struct {
	Op     string
	From   EdgeStatus
	Reason string

	// Cause is a more specific sentinel such as ErrAlreadyAccepted. It is
	// matched by errors.Is alongside ErrInvalidTransition.
	Cause error
}

func (e *TransitionError) Error() string {
	from := string(e.From)
	if from == "" {
		from = "none"
	}
	return fmt.Sprintf("invalid transition: %s from %s: %s", e.Op, from, e.Reason)
}

func (e *TransitionError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrInvalidTransition, e.Cause}
	}
	return []error{ErrInvalidTransition}
}
