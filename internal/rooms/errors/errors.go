package errors

import "errors"

var (
	ErrNotFound = errors.New("room not found")

	ErrInvalidID = errors.New("invalid room ID format")

	// ErrDuplicateName is returned when another room already uses the name.
	ErrDuplicateName = errors.New("room name already in use")
)
