package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"freight/internal/domain"
	"freight/internal/repository"
)

// The WHERE clause is the capacity check; the row lock taken by the UPDATE
// serializes concurrent reservations on the same truck.
const reserveCapacityQuery = `
	UPDATE trucks
	SET filled_capacity = filled_capacity + $2, updated_at = NOW()
	WHERE id = $1 AND available = TRUE AND filled_capacity + $2 <= capacity_kg
	RETURNING filled_capacity`

const insertReservationQuery = `
	INSERT INTO capacity_reservations (id, truck_id, weight_kg, status, created_at)
	VALUES ($1, $2, $3, $4, $5)`

const markReleasedQuery = `
	UPDATE capacity_reservations
	SET status = $2, released_at = $3
	WHERE id = $1 AND status = $4
	RETURNING truck_id, weight_kg, created_at`

const returnCapacityQuery = `
	UPDATE trucks
	SET filled_capacity = GREATEST(filled_capacity - $2, 0), updated_at = NOW()
	WHERE id = $1`

// CapacityRepository is a PostgreSQL implementation of
// repository.CapacityRepository.
type CapacityRepository struct {
	db TxBeginner
	q  Querier
}

// NewCapacityRepository creates a new PostgreSQL capacity ledger.
func NewCapacityRepository(db *sql.DB) *CapacityRepository {
	return &CapacityRepository{db: db, q: db}
}

// Reserve adds the reservation's weight to the truck and records the
// reservation in one transaction.
func (r *CapacityRepository) Reserve(ctx context.Context, res *domain.Reservation) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reserve: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var filled float64
	err = tx.QueryRowContext(ctx, reserveCapacityQuery, res.TruckID, res.WeightKg).Scan(&filled)
	if errors.Is(err, sql.ErrNoRows) {
		return classifyRejection(ctx, tx, res)
	}
	if err != nil {
		return fmt.Errorf("reserve capacity: %w", err)
	}

	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}
	res.Status = domain.ReservationStatusHeld

	if _, err = tx.ExecContext(ctx, insertReservationQuery,
		res.ID, res.TruckID, res.WeightKg, string(res.Status), res.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit reserve: %w", err)
	}
	return nil
}

// classifyRejection explains why the conditional update matched no row. It
// always returns a non-nil error so the caller rolls back.
func classifyRejection(ctx context.Context, tx *sql.Tx, res *domain.Reservation) error {
	var (
		capacity, filled float64
		available        bool
	)
	err := tx.QueryRowContext(ctx,
		`SELECT capacity_kg, filled_capacity, available FROM trucks WHERE id = $1`,
		res.TruckID,
	).Scan(&capacity, &filled, &available)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return repository.ErrNotFound
	case err != nil:
		return fmt.Errorf("classify reservation rejection: %w", err)
	case !available:
		return repository.ErrUnavailable
	default:
		return fmt.Errorf("%w: requested %.3f kg, remaining %.3f kg",
			repository.ErrInsufficientCapacity, res.WeightKg, capacity-filled)
	}
}

// Release marks the reservation released and returns its weight to the truck
// in one transaction.
func (r *CapacityRepository) Release(ctx context.Context, reservationID string) (_ *domain.Reservation, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin release: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res := &domain.Reservation{
		ID:         reservationID,
		Status:     domain.ReservationStatusReleased,
		ReleasedAt: time.Now().UTC(),
	}
	err = tx.QueryRowContext(ctx, markReleasedQuery,
		reservationID, string(domain.ReservationStatusReleased), res.ReleasedAt, string(domain.ReservationStatusHeld),
	).Scan(&res.TruckID, &res.WeightKg, &res.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, classifyMissingReservation(ctx, tx, reservationID)
	}
	if err != nil {
		return nil, fmt.Errorf("mark reservation released: %w", err)
	}

	if _, err = tx.ExecContext(ctx, returnCapacityQuery, res.TruckID, res.WeightKg); err != nil {
		return nil, fmt.Errorf("return capacity: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit release: %w", err)
	}
	return res, nil
}

func classifyMissingReservation(ctx context.Context, tx *sql.Tx, reservationID string) error {
	var status string
	err := tx.QueryRowContext(ctx,
		`SELECT status FROM capacity_reservations WHERE id = $1`, reservationID,
	).Scan(&status)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return repository.ErrNotFound
	case err != nil:
		return fmt.Errorf("look up reservation: %w", err)
	default:
		return repository.ErrAlreadyReleased
	}
}

// Capacity returns the current capacity snapshot of a truck.
func (r *CapacityRepository) Capacity(ctx context.Context, truckID string) (*domain.Capacity, error) {
	query := `SELECT capacity_kg, filled_capacity, available, NOW() FROM trucks WHERE id = $1`

	c := domain.Capacity{TruckID: truckID}
	err := r.q.QueryRowContext(ctx, query, truckID).Scan(&c.TotalKg, &c.FilledKg, &c.Available, &c.ObservedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}
