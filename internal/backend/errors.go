package backend

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrConfidenceRange is wrapped by the error returned for a match whose
// confidence lies outside [0,1].
var ErrConfidenceRange = errors.New("confidence outside [0,1]")

// ErrorKind classifies a failure reported by the backend.
type ErrorKind string

// Backend failure kinds.
const (
	KindValidation    ErrorKind = "validation"
	KindDuplicateFace ErrorKind = "duplicate_face"
	KindNotFound      ErrorKind = "not_found"
	KindUnknown       ErrorKind = "unknown"
)

// Error is a failure the backend reported, or a response that could not be
// interpreted. Message is rendered verbatim.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("backend request failed with status %d", e.Status)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// TransportError means the request never produced an HTTP response
// (connection refused, DNS, timeout, cancelled context).
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("could not reach backend (%s): %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// AsError extracts a backend Error from err.
func AsError(err error) (*Error, bool) {
	var be *Error
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// DefaultDuplicateMarkers are message fragments the backend uses when it
// rejects an enrollment because the face is already on record.
var DefaultDuplicateMarkers = []string{"already enrolled", "already belongs to"}

func isDuplicateMessage(msg string, markers []string) bool {
	lower := strings.ToLower(msg)
	for _, m := range markers {
		if m != "" && strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

// kindFor derives the failure kind from an explicit code, falling back to
// the HTTP status.
func kindFor(code string, status int) ErrorKind {
	switch strings.ToLower(code) {
	case "duplicate_face":
		return KindDuplicateFace
	case "validation", "validation_error", "invalid_request", "missing_fields":
		return KindValidation
	case "not_found":
		return KindNotFound
	}

	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindValidation
	case http.StatusNotFound:
		return KindNotFound
	default:
		return KindUnknown
	}
}
