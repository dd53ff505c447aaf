package budget

import "errors"

var (
	// ErrInvalidArgument reports a bad role, empty content, or an
	// out-of-range configuration value.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidFormat reports a malformed or oversized snapshot payload.
	ErrInvalidFormat = errors.New("invalid snapshot format")
)
