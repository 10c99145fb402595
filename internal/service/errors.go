package service

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by this package matches exactly one of
// these with errors.Is.
var (
	// ErrValidation is the kind of every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrCapacityExceeded is returned when a truck has no room for the load.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrTruckNotFound is returned when the referenced truck does not exist.
	ErrTruckNotFound = errors.New("truck not found")

	// ErrTruckUnavailable is returned when the truck exists but is not
	// accepting bookings.
	ErrTruckUnavailable = errors.New("truck unavailable")

	// ErrPersistence is the kind of every *PersistenceError.
	ErrPersistence = errors.New("persistence failure")

	// ErrCompensation is the kind of every *CompensationError.
	ErrCompensation = errors.New("compensation failure")

	// ErrBookingNotFound is returned when the referenced booking does not exist.
	ErrBookingNotFound = errors.New("booking not found")

	// ErrInvalidStatusTransition is returned when a booking cannot move to the
	// requested status from its current one.
	ErrInvalidStatusTransition = errors.New("invalid booking status transition")

	// ErrBookingStateConflict is returned when a booking changed status
	// concurrently with the requested transition.
	ErrBookingStateConflict = errors.New("booking status changed concurrently")
)

// Field validation errors.
var (
	ErrInvalidTruckID      = &ValidationError{Field: "truck_id", Reason: "must not be empty"}
	ErrInvalidUserID       = &ValidationError{Field: "user_id", Reason: "caller identity is required"}
	ErrInvalidBookingID    = &ValidationError{Field: "booking_id", Reason: "must not be empty"}
	ErrInvalidPickup       = &ValidationError{Field: "pickup_location", Reason: "must not be empty"}
	ErrInvalidDropoff      = &ValidationError{Field: "dropoff_location", Reason: "must not be empty"}
	ErrInvalidDistance     = &ValidationError{Field: "distance_km", Reason: "must be a positive finite number"}
	ErrInvalidWeight       = &ValidationError{Field: "weight_kg", Reason: "must be a positive finite number"}
	ErrWeightPrecision     = &ValidationError{Field: "weight_kg", Reason: "must be below 1000000000 with at most 3 decimal places"}
	ErrDistancePrecision   = &ValidationError{Field: "distance_km", Reason: "must be below 1000000000 with at most 3 decimal places"}
	ErrInvalidBasePrice    = &ValidationError{Field: "base_price", Reason: "must be a non-negative finite number"}
	ErrInvalidPricePerKm   = &ValidationError{Field: "price_per_km", Reason: "must be a non-negative finite number"}
	ErrInvalidPricePerKg   = &ValidationError{Field: "price_per_kg", Reason: "must be a non-negative finite number"}
	ErrInvalidEstimate     = &ValidationError{Field: "estimated_price", Reason: "must be a positive finite number"}
	ErrInvalidCounterOffer = &ValidationError{Field: "counter_offer", Reason: "must be a positive finite number"}
	ErrUnexpectedOffer     = &ValidationError{Field: "counter_offer", Reason: "only allowed in negotiated mode"}
	ErrInvalidMode         = &ValidationError{Field: "mode", Reason: "must be direct or negotiated"}
	ErrNothingToNegotiate  = &ValidationError{Field: "mode", Reason: "truck has no price to negotiate against; book in direct mode"}
	ErrInvalidStatus       = &ValidationError{Field: "status", Reason: "must be pending, completed or cancelled"}
	ErrInvalidLocation     = &ValidationError{Field: "location", Reason: "latitude/longitude out of range"}
	ErrInvalidRadius       = &ValidationError{Field: "radius_km", Reason: "must be a positive finite number"}
)

// ValidationError reports a malformed or out-of-range input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is makes every ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// PersistenceError reports a storage failure. Any capacity reserved for the
// failed operation has already been returned.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is makes every PersistenceError match ErrPersistence.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// CompensationError reports that reserved capacity could not be returned
// after a failure. The reservation is still held and needs reconciliation.
type CompensationError struct {
	ReservationID string
	TruckID       string
	WeightKg      float64
	// Cause is the failure that triggered compensation.
	Cause error
	// Err is the last release failure.
	Err error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("release of reservation %s (truck %s, %.3f kg) failed after %v: %v",
		e.ReservationID, e.TruckID, e.WeightKg, e.Cause, e.Err)
}

func (e *CompensationError) Unwrap() error { return e.Err }

// Is makes every CompensationError match ErrCompensation.
func (e *CompensationError) Is(target error) bool {
	return target == ErrCompensation
}
