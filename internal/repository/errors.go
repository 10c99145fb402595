package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrInsufficientCapacity is returned when a reservation would push a
	// truck's filled capacity past its total.
	ErrInsufficientCapacity = errors.New("insufficient capacity")

	// ErrUnavailable is returned when reserving on a truck that is not
	// accepting bookings.
	ErrUnavailable = errors.New("truck unavailable")

	// ErrAlreadyReleased is returned when releasing a reservation that is no
	// longer held.
	ErrAlreadyReleased = errors.New("reservation already released")

	// ErrStatusConflict is returned when a conditional status update finds the
	// row in a different status than expected.
	ErrStatusConflict = errors.New("status conflict")
)
