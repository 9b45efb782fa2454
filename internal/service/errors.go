package service

import "errors"

// Errors returned at the service boundary. The HTTP adapter maps each one to
// a status code; anything else is an unexpected store or broker failure.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("email already in use")
	ErrNotFound     = errors.New("user not found")
)
