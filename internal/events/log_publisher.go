package events

import (
	"context"
	"log"
)

// LogPublisher writes events to the process log. It is used when no broker
// is configured.
type LogPublisher struct{}

// NewLogPublisher creates a new LogPublisher.
func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (p *LogPublisher) PublishBookingCreated(_ context.Context, ev BookingCreated) error {
	log.Printf("[EVENT] %s booking=%s truck=%s weight=%.3f final_price=%.0f",
		BookingCreatedRoutingKey, ev.BookingID, ev.TruckID, ev.CargoWeightKg, ev.FinalPrice)
	return nil
}

func (p *LogPublisher) PublishBookingStatusChanged(_ context.Context, ev BookingStatusChanged) error {
	log.Printf("[EVENT] %s booking=%s %s -> %s", BookingStatusChangedRoutingKey, ev.BookingID, ev.From, ev.To)
	return nil
}

func (p *LogPublisher) PublishCompensationFailed(_ context.Context, ev CompensationFailed) error {
	log.Printf("[EVENT] %s reservation=%s truck=%s weight=%.3f cause=%q release_error=%q",
		CompensationFailedRoutingKey, ev.ReservationID, ev.TruckID, ev.WeightKg, ev.Cause, ev.ReleaseError)
	return nil
}
