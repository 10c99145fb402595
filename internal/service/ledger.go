package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"freight/internal/domain"
	"freight/internal/metrics"
	"freight/internal/redis"
	"freight/internal/repository"
)

// CapacityLedgerInterface defines the capacity ledger contract used by the
// booking orchestrator.
type CapacityLedgerInterface interface {
	TryReserve(ctx context.Context, truckID string, weightKg float64) (*domain.Reservation, error)
	Release(ctx context.Context, token *domain.Reservation) error
}

// Ensure CapacityLedger implements CapacityLedgerInterface.
var _ CapacityLedgerInterface = (*CapacityLedger)(nil)

// CapacityLedger reserves and releases truck capacity. The check and the
// increment happen in one atomic step in the repository, so concurrent
// callers can never push filled capacity past the total.
type CapacityLedger struct {
	repo  repository.CapacityRepository
	cache redis.TruckCacheInterface
}

// NewCapacityLedger creates a new CapacityLedger. cache may be nil.
func NewCapacityLedger(repo repository.CapacityRepository, cache redis.TruckCacheInterface) *CapacityLedger {
	return &CapacityLedger{repo: repo, cache: cache}
}

// TryReserve reserves weightKg on the truck and returns the reservation
// token. On ErrCapacityExceeded, ErrTruckNotFound or ErrTruckUnavailable
// nothing has changed.
func (l *CapacityLedger) TryReserve(ctx context.Context, truckID string, weightKg float64) (*domain.Reservation, error) {
	if strings.TrimSpace(truckID) == "" {
		return nil, ErrInvalidTruckID
	}
	if !isPositiveFinite(weightKg) {
		return nil, ErrInvalidWeight
	}
	if !isStorableQuantity(weightKg) {
		return nil, ErrWeightPrecision
	}

	token := &domain.Reservation{
		ID:        uuid.New().String(),
		TruckID:   truckID,
		WeightKg:  weightKg,
		Status:    domain.ReservationStatusHeld,
		CreatedAt: time.Now().UTC(),
	}

	if err := l.repo.Reserve(ctx, token); err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientCapacity):
			metrics.IncReservation("capacity_exceeded")
			return nil, fmt.Errorf("%w: %v", ErrCapacityExceeded, err)
		case errors.Is(err, repository.ErrNotFound):
			metrics.IncReservation("truck_not_found")
			return nil, ErrTruckNotFound
		case errors.Is(err, repository.ErrUnavailable):
			metrics.IncReservation("truck_unavailable")
			return nil, ErrTruckUnavailable
		default:
			metrics.IncReservation("error")
			return nil, &PersistenceError{Op: "reserve capacity", Err: err}
		}
	}

	metrics.IncReservation("reserved")
	l.invalidate(ctx, truckID)
	return token, nil
}

// Release returns the token's weight to its truck. Releasing an unknown or
// already released token is a no-op.
func (l *CapacityLedger) Release(ctx context.Context, token *domain.Reservation) error {
	if token == nil || token.ID == "" {
		log.Printf("[LEDGER] release called without a reservation token, ignoring")
		return nil
	}

	released, err := l.repo.Release(ctx, token.ID)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyReleased) || errors.Is(err, repository.ErrNotFound) {
			metrics.IncRelease("noop")
			log.Printf("[LEDGER] release of reservation %s is a no-op: %v", token.ID, err)
			return nil
		}
		metrics.IncRelease("error")
		return fmt.Errorf("release reservation %s: %w", token.ID, err)
	}

	metrics.IncRelease("released")
	l.invalidate(ctx, released.TruckID)
	return nil
}

// Capacity returns the current capacity snapshot of a truck.
func (l *CapacityLedger) Capacity(ctx context.Context, truckID string) (*domain.Capacity, error) {
	if strings.TrimSpace(truckID) == "" {
		return nil, ErrInvalidTruckID
	}
	c, err := l.repo.Capacity(ctx, truckID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTruckNotFound
		}
		return nil, &PersistenceError{Op: "read capacity", Err: err}
	}
	return c, nil
}

func (l *CapacityLedger) invalidate(ctx context.Context, truckID string) {
	if l.cache == nil {
		return
	}
	if err := l.cache.InvalidateTruck(context.WithoutCancel(ctx), truckID); err != nil {
		log.Printf("[LEDGER] failed to invalidate cache for truck %s: %v", truckID, err)
	}
}
