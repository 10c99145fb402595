package postgres

import (
	"context"
	"database/sql"
	"errors"

	"freight/internal/domain"
	"freight/internal/repository"
)

const truckColumns = `id, name, COALESCE(owner_name, ''), COALESCE(phone_number, ''), type,
	COALESCE(image_url, ''), capacity_kg, filled_capacity, base_price, price_per_km,
	price_per_kg, available, latitude, longitude, updated_at`

// TruckRepository is a PostgreSQL implementation of repository.TruckRepository.
type TruckRepository struct {
	q Querier
}

// NewTruckRepository creates a new PostgreSQL truck repository.
func NewTruckRepository(db *sql.DB) *TruckRepository {
	return &TruckRepository{q: db}
}

// NewTruckRepositoryWithTx creates a truck repository using a transaction.
func NewTruckRepositoryWithTx(tx *sql.Tx) *TruckRepository {
	return &TruckRepository{q: tx}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTruck(row rowScanner) (*domain.Truck, error) {
	var (
		truck    domain.Truck
		lat, lng sql.NullFloat64
	)
	err := row.Scan(
		&truck.ID,
		&truck.Name,
		&truck.OwnerName,
		&truck.PhoneNumber,
		&truck.Type,
		&truck.ImageURL,
		&truck.CapacityKg,
		&truck.FilledKg,
		&truck.BasePrice,
		&truck.PricePerKm,
		&truck.PricePerKg,
		&truck.Available,
		&lat,
		&lng,
		&truck.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lat.Valid && lng.Valid {
		truck.Latitude = lat.Float64
		truck.Longitude = lng.Float64
		truck.HasLocation = true
	}
	return &truck, nil
}

// GetByID retrieves a truck by ID.
func (r *TruckRepository) GetByID(ctx context.Context, id string) (*domain.Truck, error) {
	query := `SELECT ` + truckColumns + ` FROM trucks WHERE id = $1`

	truck, err := scanTruck(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return truck, nil
}

// ListAvailable returns available trucks, optionally restricted to one type.
func (r *TruckRepository) ListAvailable(ctx context.Context, truckType string) ([]*domain.Truck, error) {
	query := `SELECT ` + truckColumns + ` FROM trucks
		WHERE available = TRUE AND ($1 = '' OR type = $1)
		ORDER BY name, id`

	rows, err := r.q.QueryContext(ctx, query, truckType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trucks []*domain.Truck
	for rows.Next() {
		truck, err := scanTruck(rows)
		if err != nil {
			return nil, err
		}
		trucks = append(trucks, truck)
	}
	return trucks, rows.Err()
}

// ListTypes returns the distinct types of available trucks.
func (r *TruckRepository) ListTypes(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT type FROM trucks WHERE available = TRUE AND type <> '' ORDER BY type`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

// UpdateLocation stores the last reported position of a truck.
func (r *TruckRepository) UpdateLocation(ctx context.Context, id string, lat, lng float64) error {
	query := `UPDATE trucks SET latitude = $2, longitude = $3, updated_at = NOW() WHERE id = $1`

	result, err := r.q.ExecContext(ctx, query, id, lat, lng)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}
