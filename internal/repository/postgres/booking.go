package postgres

import (
	"context"
	"database/sql"
	"errors"

	"freight/internal/domain"
	"freight/internal/repository"
)

const bookingColumns = `id, user_id, truck_id, reservation_id, pickup_location, dropoff_location,
	distance_km, cargo_weight, estimated_price, final_price, mode, counter_offer,
	negotiation_accepted, status, created_at, updated_at`

// BookingRepository is a PostgreSQL implementation of repository.BookingRepository.
type BookingRepository struct {
	q Querier
}

// NewBookingRepository creates a new PostgreSQL booking repository.
func NewBookingRepository(db *sql.DB) *BookingRepository {
	return &BookingRepository{q: db}
}

// NewBookingRepositoryWithTx creates a booking repository using a transaction.
func NewBookingRepositoryWithTx(tx *sql.Tx) *BookingRepository {
	return &BookingRepository{q: tx}
}

// Create persists a new booking.
func (r *BookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	query := `INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := r.q.ExecContext(ctx, query,
		b.ID,
		b.UserID,
		b.TruckID,
		b.ReservationID,
		b.PickupLocation,
		b.DropoffLocation,
		b.DistanceKm,
		b.CargoWeightKg,
		b.EstimatedPrice,
		b.FinalPrice,
		string(b.Mode),
		nullFloat(b.CounterOffer),
		nullBool(b.NegotiationAccepted),
		string(b.Status),
		b.CreatedAt,
		b.UpdatedAt,
	)
	return err
}

func scanBooking(row rowScanner) (*domain.Booking, error) {
	var (
		b            domain.Booking
		mode, status string
		counterOffer sql.NullFloat64
		accepted     sql.NullBool
	)
	err := row.Scan(
		&b.ID,
		&b.UserID,
		&b.TruckID,
		&b.ReservationID,
		&b.PickupLocation,
		&b.DropoffLocation,
		&b.DistanceKm,
		&b.CargoWeightKg,
		&b.EstimatedPrice,
		&b.FinalPrice,
		&mode,
		&counterOffer,
		&accepted,
		&status,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Mode = domain.BookingMode(mode)
	b.Status = domain.BookingStatus(status)
	if counterOffer.Valid {
		v := counterOffer.Float64
		b.CounterOffer = &v
	}
	if accepted.Valid {
		v := accepted.Bool
		b.NegotiationAccepted = &v
	}
	return &b, nil
}

// GetByID retrieves a booking by ID.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	b, err := scanBooking(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

// ListByUser returns a user's bookings, newest first.
func (r *BookingRepository) ListByUser(ctx context.Context, userID string, status domain.BookingStatus) ([]*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE user_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC`

	rows, err := r.q.QueryContext(ctx, query, userID, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []*domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// UpdateStatus moves a booking from one status to another.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id string, from, to domain.BookingStatus) error {
	query := `UPDATE bookings SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`

	result, err := r.q.ExecContext(ctx, query, id, string(from), string(to))
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}

	var exists bool
	if err := r.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrStatusConflict
}
