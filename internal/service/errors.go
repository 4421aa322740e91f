package service

import "errors"

// Error taxonomy for the authentication core. The HTTP layer maps each of
// these to a status code; none of them carry internal detail.
var (
	ErrMissingCredentials = errors.New("email and password are required")
	ErrNotFound           = errors.New("not found")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token expired")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrForbidden          = errors.New("forbidden")
	ErrStoreUnavailable   = errors.New("credential store unavailable")
	ErrConflict           = errors.New("already exists")
	ErrSetupComplete      = errors.New("initial setup already completed")
)
