// Package events publishes booking domain events to RabbitMQ.
package events

import (
	"time"

	"github.com/google/uuid"

	"freight/internal/domain"
)

const (
	// EventsExchange is the topic exchange all booking events go to.
	EventsExchange = "freight.events"

	BookingCreatedRoutingKey       = "booking.created.v1"
	BookingStatusChangedRoutingKey = "booking.status_changed.v1"
	CompensationFailedRoutingKey   = "capacity.compensation_failed.v1"

	producer = "freight-booking"
)

// Envelope wraps every published payload.
type Envelope struct {
	EventID    string    `json:"eventId"`
	EventName  string    `json:"eventName"`
	Version    int       `json:"eventVersion"`
	Producer   string    `json:"producer"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

func newEnvelope(name string, payload any) Envelope {
	return Envelope{
		EventID:    uuid.NewString(),
		EventName:  name,
		Version:    1,
		Producer:   producer,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// BookingCreated is published once a booking is committed.
type BookingCreated struct {
	BookingID           string   `json:"bookingId"`
	UserID              string   `json:"userId"`
	TruckID             string   `json:"truckId"`
	ReservationID       string   `json:"reservationId"`
	CargoWeightKg       float64  `json:"cargoWeightKg"`
	EstimatedPrice      float64  `json:"estimatedPrice"`
	FinalPrice          float64  `json:"finalPrice"`
	Mode                string   `json:"mode"`
	CounterOffer        *float64 `json:"counterOffer,omitempty"`
	NegotiationAccepted *bool    `json:"negotiationAccepted,omitempty"`
}

// NewBookingCreated builds the payload for b.
func NewBookingCreated(b *domain.Booking) BookingCreated {
	return BookingCreated{
		BookingID:           b.ID,
		UserID:              b.UserID,
		TruckID:             b.TruckID,
		ReservationID:       b.ReservationID,
		CargoWeightKg:       b.CargoWeightKg,
		EstimatedPrice:      b.EstimatedPrice,
		FinalPrice:          b.FinalPrice,
		Mode:                string(b.Mode),
		CounterOffer:        b.CounterOffer,
		NegotiationAccepted: b.NegotiationAccepted,
	}
}

// BookingStatusChanged is published after a status transition.
type BookingStatusChanged struct {
	BookingID string `json:"bookingId"`
	UserID    string `json:"userId"`
	TruckID   string `json:"truckId"`
	From      string `json:"from"`
	To        string `json:"to"`
}

// CompensationFailed is published when a reservation is stranded and needs
// reconciliation by an operator or sweeper.
type CompensationFailed struct {
	ReservationID string  `json:"reservationId"`
	TruckID       string  `json:"truckId"`
	WeightKg      float64 `json:"weightKg"`
	Cause         string  `json:"cause"`
	ReleaseError  string  `json:"releaseError"`
}
