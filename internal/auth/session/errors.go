package session

import "errors"

var (
	// ErrInvalidToken is returned when an access token fails verification or validation.
	ErrInvalidToken = errors.New("invalid token")

	// ErrRecordNotFound is returned by the ledger when no row matches.
	ErrRecordNotFound = errors.New("refresh token record not found")

	// ErrConflict is returned by the ledger when a concurrent writer won a race
	// (active-device unique violation, stale version, busy database).
	// Callers may retry.
	ErrConflict = errors.New("concurrent session update")

	// ErrFatal marks infrastructure failures surfaced by Service methods.
	ErrFatal = errors.New("session: fatal")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)

type fatalError struct {
	op  string
	err error
}

func (e fatalError) Error() string { return e.op + ": " + e.err.Error() }

// Is lets errors.Is(err, ErrFatal) match while Unwrap keeps the cause reachable.
func (e fatalError) Is(target error) bool { return target == ErrFatal }

func (e fatalError) Unwrap() error { return e.err }

func fatal(op string, err error) error {
	return fatalError{op: op, err: err}
}
