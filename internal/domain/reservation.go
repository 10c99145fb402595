package domain

import "time"

// ReservationStatus represents the lifecycle of a capacity reservation.
type ReservationStatus string

const (
	ReservationStatusHeld     ReservationStatus = "held"
	ReservationStatusReleased ReservationStatus = "released"
)

// Reservation is the token returned by a successful capacity reservation.
// Releasing it returns WeightKg to the truck exactly once.
type Reservation struct {
	ID         string
	TruckID    string
	WeightKg   float64
	Status     ReservationStatus
	CreatedAt  time.Time
	ReleasedAt time.Time
}
