package tests

import (
	"time"

	"freight/internal/domain"
	"freight/internal/repository/memory"
	"freight/internal/service"
)

type bookingHarness struct {
	fleet     *memory.Fleet
	capacity  *FlakyCapacityRepository
	bookings  *MockBookingRepository
	publisher *MockPublisher
	cache     *MockTruckCache
	ledger    *service.CapacityLedger
	service   *service.BookingService
}

func testBookingConfig() service.BookingConfig {
	return service.BookingConfig{
		WriteTimeout:         200 * time.Millisecond,
		CompensationAttempts: 3,
		CompensationBackoff:  time.Millisecond,
	}
}

// newBookingHarness wires a booking service over an in-memory fleet. draw
// pins the negotiation outcome: below 0.5 accepts.
func newBookingHarness(draw float64, trucks ...*domain.Truck) *bookingHarness {
	h := &bookingHarness{
		fleet:     newFleet(trucks...),
		bookings:  NewMockBookingRepository(),
		publisher: NewMockPublisher(),
		cache:     NewMockTruckCache(),
	}
	h.capacity = NewFlakyCapacityRepository(h.fleet)
	h.ledger = service.NewCapacityLedger(h.capacity, h.cache)
	h.service = service.NewBookingService(
		h.fleet,
		h.bookings,
		h.ledger,
		service.NewNegotiationResolver(fixedDraw(draw)),
		h.publisher,
		testBookingConfig(),
	)
	return h
}

func directRequest(truckID string, weightKg float64) service.CreateBookingRequest {
	return service.CreateBookingRequest{
		TruckID:         truckID,
		UserID:          "user-1",
		PickupLocation:  "Pune",
		DropoffLocation: "Mumbai",
		DistanceKm:      20,
		WeightKg:        weightKg,
		Mode:            domain.BookingModeDirect,
	}
}

func negotiatedRequest(truckID string, weightKg, offer float64) service.CreateBookingRequest {
	req := directRequest(truckID, weightKg)
	req.Mode = domain.BookingModeNegotiated
	req.CounterOffer = &offer
	return req
}
