package repository

import (
	"context"

	"freight/internal/domain"
)

// TruckRepository defines the read side of the fleet plus position updates.
// Capacity is mutated only through CapacityRepository.
type TruckRepository interface {
	// GetByID retrieves a truck by ID.
	GetByID(ctx context.Context, id string) (*domain.Truck, error)

	// ListAvailable returns trucks accepting bookings, optionally filtered by type.
	ListAvailable(ctx context.Context, truckType string) ([]*domain.Truck, error)

	// ListTypes returns the distinct types of available trucks.
	ListTypes(ctx context.Context) ([]string, error)

	// UpdateLocation stores the last reported position of a truck.
	UpdateLocation(ctx context.Context, id string, lat, lng float64) error
}

// CapacityRepository is the persistent capacity ledger.
type CapacityRepository interface {
	// Reserve atomically adds res.WeightKg to the truck's filled capacity and
	// records the reservation. It fails with ErrNotFound, ErrUnavailable or
	// ErrInsufficientCapacity without changing anything.
	Reserve(ctx context.Context, res *domain.Reservation) error

	// Release marks a held reservation released and returns its weight to the
	// truck. It fails with ErrNotFound or ErrAlreadyReleased without changing
	// anything.
	Release(ctx context.Context, reservationID string) (*domain.Reservation, error)

	// Capacity returns the current capacity snapshot of a truck.
	Capacity(ctx context.Context, truckID string) (*domain.Capacity, error)
}
