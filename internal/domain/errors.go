package domain

import "errors"

// Configuration errors abort before any I/O.
var (
	ErrMissingCredentials = errors.New("warehouse credentials are not configured")
	ErrUnknownDriver      = errors.New("unsupported repository driver")
)
