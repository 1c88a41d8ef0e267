package model

import "errors"

var (
	// ErrInvalidInterval rejects malformed or inverted bounds and unknown categories.
	ErrInvalidInterval = errors.New("invalid interval")
	// ErrNotFound covers missing segments and segments that are no longer active.
	ErrNotFound = errors.New("segment not found")
	// ErrTransportUnavailable is returned by the client when the backend cannot be reached.
	ErrTransportUnavailable = errors.New("transport unavailable")
)
