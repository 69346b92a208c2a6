// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors the domain packages wrap before calling RespondError.
var (
	ErrNotFound    = errors.New("resource not found")
	ErrConflict    = errors.New("conflict")
	ErrValidation  = errors.New("validation failed")
	ErrUnavailable = errors.New("temporarily unavailable")
)

// RespondError maps err to an RFC7807 problem. Unknown errors become a 500 with no
// detail so internals never leak to clients.
func RespondError(w http.ResponseWriter, err error) {
	status, title := StatusOf(err)
	detail := err.Error()
	if status == http.StatusInternalServerError {
		detail = ""
	}
	Problem(w, status, title, detail)
}

// StatusOf returns the HTTP status and problem title for err.
func StatusOf(err error) (int, string) {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "Not Found"
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, "Conflict"
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, "Validation Failed"
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable, "Unavailable"
	default:
		return http.StatusInternalServerError, "Internal Error"
	}
}
