package domain

import "time"

// BookingStatus represents the current status of a booking.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Valid reports whether s is a known booking status.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusPending, BookingStatusCompleted, BookingStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether a booking in status s may move to next.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	return s == BookingStatusPending &&
		(next == BookingStatusCompleted || next == BookingStatusCancelled)
}

// BookingMode selects how the final price is reached.
type BookingMode string

const (
	BookingModeDirect     BookingMode = "direct"
	BookingModeNegotiated BookingMode = "negotiated"
)

// Booking is a user's committed request for cargo space on a truck.
type Booking struct {
	ID            string
	UserID        string
	TruckID       string
	ReservationID string

	PickupLocation  string
	DropoffLocation string
	DistanceKm      float64
	CargoWeightKg   float64

	EstimatedPrice float64
	FinalPrice     float64

	Mode BookingMode
	// Set only for negotiated bookings.
	CounterOffer        *float64
	NegotiationAccepted *bool

	Status    BookingStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}
