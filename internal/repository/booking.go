package repository

import (
	"context"

	"freight/internal/domain"
)

// BookingRepository defines the persistence operations for bookings.
type BookingRepository interface {
	// Create persists a new booking.
	Create(ctx context.Context, booking *domain.Booking) error

	// GetByID retrieves a booking by ID.
	GetByID(ctx context.Context, id string) (*domain.Booking, error)

	// ListByUser returns a user's bookings, newest first. An empty status
	// returns all of them.
	ListByUser(ctx context.Context, userID string, status domain.BookingStatus) ([]*domain.Booking, error)

	// UpdateStatus moves a booking from one status to another. It returns
	// ErrStatusConflict if the booking is no longer in status from.
	UpdateStatus(ctx context.Context, id string, from, to domain.BookingStatus) error
}
