package secret

import "errors"

// Failure taxonomy for the secret lifecycle. NotFound and Unauthorized are
// deliberately surfaced to callers with the same generic message; they stay
// distinct here for logging and metrics.
var (
	// ErrInvalidInput rejects creation input outside accepted bounds. No side
	// effects.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound covers a malformed or tampered token, a missing record, and
	// an expired record alike. An expired record discovered on the way is
	// deleted before this is returned.
	ErrNotFound = errors.New("secret not found or already accessed")

	// ErrPasswordRequired means the secret needs a password and none was
	// supplied. The record survives.
	ErrPasswordRequired = errors.New("password required")

	// ErrUnauthorized means decryption failed: wrong key, wrong password, or
	// a corrupted envelope. The record survives so a later correct attempt
	// still succeeds.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTooManyAttempts means an attempt counter is exhausted. The record
	// survives; the caller should back off.
	ErrTooManyAttempts = errors.New("too many attempts")
)
