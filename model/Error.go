package model

import "errors"

// Every error family the core can produce. Callers match
// them with errors.Is after any number of wraps
var (
	// ErrAuth is returned when no user is signed in, or the
	// signed-in user may not perform the action
	ErrAuth = errors.New("unauthorized")
	// ErrValidation is returned on bad input: empty text,
	// oversized or non-image file, malformed stored document
	ErrValidation = errors.New("invalid input")
	// ErrNotFound is returned when a referenced post, comment
	// or user does not exist
	ErrNotFound = errors.New("not found")
	// ErrNetwork is returned on transient store failures;
	// optimistic mutations roll back when they see it
	ErrNetwork = errors.New("network failure")
	// ErrExhausted is returned when paginating past the last page
	ErrExhausted = errors.New("feed exhausted")
)

// RequestError defines how API errors are sent
type RequestError struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}
