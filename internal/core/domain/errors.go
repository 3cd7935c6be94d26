package domain

import "errors"

var (
	// ErrNotFound is returned by repositories when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput wraps any input rejected at the boundary.
	ErrInvalidInput = errors.New("invalid input")
)
