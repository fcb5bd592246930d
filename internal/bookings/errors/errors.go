package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	// ErrSlotTaken is returned by repositories when the storage constraint
	// rejected an overlapping active booking.
	ErrSlotTaken = errors.New("room slot already taken")

	// ErrWriteConflict means a concurrent transaction touched the same room.
	ErrWriteConflict = errors.New("concurrent write on room")

	// ErrLockHeld means another writer holds the room's serialization point.
	ErrLockHeld = errors.New("room lock held by another writer")
)
