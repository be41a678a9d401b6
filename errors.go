package hxlive

import (
	"errors"
	"net/http"

	"github.com/pthm/hxlive/lib/node"
	"github.com/pthm/hxlive/lib/state"
)

// Sentinel errors for component operations.
var (
	ErrNotFound             = errors.New("hxlive: resource not found")
	ErrUninitializedContext = errors.New("hxlive: uninitialized context")
	ErrNoSession            = errors.New("hxlive: session not found")
	ErrStaleComponent       = errors.New("hxlive: component instance not found")
	ErrCSRF                 = errors.New("hxlive: csrf token mismatch")
	ErrNoState              = errors.New("hxlive: session has no state of this type")
	ErrDecryptFailed        = errors.New("hxlive: parameter decryption failed")
	ErrSignatureInvalid     = errors.New("hxlive: signature verification failed")
	ErrInvalidFormat        = errors.New("hxlive: invalid parameter format")
	ErrHydrationFailed      = errors.New("hxlive: hydration failed")
)

// Errors raised while building node trees and mutating state.
var (
	ErrMisuse        = node.ErrMisuse
	ErrValidation    = node.ErrValidation
	ErrBracketOpen   = state.ErrBracketOpen
	ErrBracketClosed = state.ErrBracketClosed
)

// IsNotFound checks if err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDecryptionError checks if err is a decryption or signature error.
func IsDecryptionError(err error) bool {
	return errors.Is(err, ErrDecryptFailed) || errors.Is(err, ErrSignatureInvalid) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsStale checks if err means the browser refers to a session or component
// instance the server no longer has.
func IsStale(err error) bool {
	return errors.Is(err, ErrStaleComponent) || errors.Is(err, ErrNoSession)
}

// IsCSRF checks if err is a CSRF token mismatch.
func IsCSRF(err error) bool {
	return errors.Is(err, ErrCSRF)
}

// IsMisuse checks if err comes from invalid view code: node construction
// errors, missing context and state bracket misuse.
func IsMisuse(err error) bool {
	return errors.Is(err, ErrMisuse) || errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrUninitializedContext) ||
		errors.Is(err, ErrBracketOpen) || errors.Is(err, ErrBracketClosed)
}

// StatusCode maps an error to the HTTP status the default error handler
// responds with.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsCSRF(err):
		return http.StatusForbidden
	case IsStale(err):
		return http.StatusGone
	case IsNotFound(err):
		return http.StatusNotFound
	case IsDecryptionError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
