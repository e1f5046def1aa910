package scans

import "errors"

var (
	// ErrInvalidInput is returned before any lookup or persistence happens.
	ErrInvalidInput = errors.New("invalid scan input")
	// ErrStorage wraps failures of the persistence layer.
	ErrStorage = errors.New("scan storage unavailable")
)
