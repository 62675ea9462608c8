package auth

import "errors"

// Sentinel errors for the ingress gate.
var (
	// ErrMissingCredentials is returned when no API key header is present.
	ErrMissingCredentials = errors.New("auth: missing credentials")

	// ErrInvalidCredentials is returned when the presented key is unknown.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrKeyExpired is returned when the presented key is known but lapsed.
	ErrKeyExpired = errors.New("auth: key expired")
)
