package common

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Failure kinds of the ticket engine. Callers match them with errors.Is;
// messages are wrapped with fmt.Errorf("%w: ...").
var (
	// Credential failures
	ErrUnsupportedCredentials = errors.New("unsupported credentials")
	ErrBadCredentials         = errors.New("bad credentials")

	// Caller bugs, never retried
	ErrInvalidArgument = errors.New("invalid argument")

	// Ticket-state failures, terminal for the request but not for the system
	ErrTicketNotFound      = errors.New("ticket not found")
	ErrTicketKindMismatch  = errors.New("ticket kind mismatch")
	ErrTicketExpired       = errors.New("ticket expired")
	ErrTicketConsumed      = errors.New("ticket already consumed")
	ErrMismatchedPrincipal = errors.New("mismatched principal")
	ErrInvalidService      = errors.New("invalid service")

	// Registry integrity violation, logged as severe
	ErrDuplicateID = errors.New("duplicate ticket id")

	// A concurrent update won the version race; retried internally
	ErrConflict = errors.New("ticket version conflict")

	// Transient infrastructure failure; the only kind worth retrying
	ErrRegistryUnavailable = errors.New("ticket registry unavailable")
)

// HTTPStatus maps a failure kind to an HTTP status code.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrUnsupportedCredentials):
		return http.StatusBadRequest
	case errors.Is(err, ErrBadCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrMismatchedPrincipal), errors.Is(err, ErrInvalidService):
		return http.StatusForbidden
	case errors.Is(err, ErrTicketNotFound), errors.Is(err, ErrTicketKindMismatch):
		return http.StatusNotFound
	case errors.Is(err, ErrTicketExpired), errors.Is(err, ErrTicketConsumed):
		return http.StatusGone
	case errors.Is(err, ErrDuplicateID), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrRegistryUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse writes an error to the HTTP ResponseWriter
func ErrorResponse(code int, msg string, w http.ResponseWriter) {
	// Error describes an API error (serializable in JSON)
	type Error struct {
		// Code is the (http) code of the error
		Code int `json:"code"`
		// Message is the (human-readable) error message
		Message string `json:"message"`
	}

	e := &Error{
		code,
		msg,
	}
	b, _ := json.Marshal(e)
	w.Header().Set("Content-Type", DefaultMIMEType)
	w.WriteHeader(code)
	w.Write(b)
}
