package errors

import "errors"

var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrForbidden           = errors.New("forbidden")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrStorage marks transient persistence failures; callers may retry.
	ErrStorage = errors.New("storage unavailable")
)
