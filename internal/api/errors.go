package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrUnauthenticated is matched by every AuthError.
	ErrUnauthenticated = errors.New("fixora api: not authenticated")

	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("fixora api: not found")
)

// ValidationError is malformed input, found either locally before any
// request was sent or by the server (400/422).
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// ConflictError means the server refused because the booking changed
// under us or the provider is not available (409).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return "conflict: " + e.Message
}

// AuthError is 401/403. Callers redirect to login; this layer only
// propagates it.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth failed (%d): %s", e.StatusCode, e.Message)
}

func (e *AuthError) Unwrap() error { return ErrUnauthenticated }

// Forbidden reports whether the session is valid but lacks permission.
func (e *AuthError) Forbidden() bool { return e.StatusCode == http.StatusForbidden }

// TransportError covers network failures, 5xx and undecodable bodies.
type TransportError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: http %d: %s", e.Op, e.StatusCode, e.Message)
	default:
		return e.Op + ": " + e.Message
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// serverMessage pulls the human message out of an error body. The API uses
// {"error": "..."} and occasionally {"message": "..."}.
func serverMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
		return ""
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 || strings.HasPrefix(text, "<") {
		return ""
	}
	return text
}

// errorFromStatus maps a non-2xx response onto the error taxonomy.
func errorFromStatus(op string, status int, body []byte) error {
	msg := serverMessage(body)
	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return &ValidationError{Message: msg}
	case status == http.StatusConflict:
		return &ConflictError{Message: msg}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &AuthError{StatusCode: status, Message: msg}
	case status == http.StatusNotFound:
		if msg == "" {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return fmt.Errorf("%s: %w: %s", op, ErrNotFound, msg)
	default:
		return &TransportError{Op: op, StatusCode: status, Message: msg}
	}
}

// UserMessage returns the server-provided message carried by err verbatim,
// or fallback when there is none.
func UserMessage(err error, fallback string) string {
	var (
		verr *ValidationError
		cerr *ConflictError
		aerr *AuthError
		terr *TransportError
	)
	switch {
	case errors.As(err, &verr) && verr.Message != "":
		return verr.Message
	case errors.As(err, &cerr) && cerr.Message != "":
		return cerr.Message
	case errors.As(err, &aerr) && aerr.Message != "":
		return aerr.Message
	case errors.As(err, &terr) && terr.StatusCode != 0 && terr.Message != "":
		return terr.Message
	}
	return fallback
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var cerr *ConflictError
	return errors.As(err, &cerr)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// CreateBookingMessage is the user-facing text for a failed CreateBooking.
func CreateBookingMessage(err error) string {
	var (
		verr *ValidationError
		cerr *ConflictError
	)
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "You must be logged in to book this provider."
	case errors.As(err, &cerr):
		return UserMessage(err, "Provider not available at the selected time.")
	case errors.As(err, &verr):
		return UserMessage(err, "Invalid booking data.")
	}
	return UserMessage(err, "Failed to create booking. Try again.")
}
