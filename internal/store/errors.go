package store

import "errors"

var (
	ErrJobCardNotFound    = errors.New("job card not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionNotFound    = errors.New("session not found")
	ErrStoreUnavailable   = errors.New("store unavailable")
)
