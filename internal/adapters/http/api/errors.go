package api

import (
	"errors"
	"net/http"

	"github.com/okian/stomp/internal/adapters/repository"
	"github.com/okian/stomp/internal/auth"
	"github.com/okian/stomp/internal/domain/message"
	"github.com/okian/stomp/internal/domain/policy"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrDuplicateID), errors.Is(err, repository.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, auth.ErrValidation), errors.Is(err, ErrBadRequest),
		errors.Is(err, message.ErrMalformed), errors.Is(err, repository.ErrInvalidRecord):
		return http.StatusBadRequest
	case errors.Is(err, policy.ErrUnauthorized), errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, policy.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrBackpressure):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
