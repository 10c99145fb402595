// Package memory provides in-process implementations of the repository
// interfaces for local development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"freight/internal/domain"
	"freight/internal/repository"
)

// truckEntry guards one truck's row. Reservations on different trucks never
// contend for the same lock.
type truckEntry struct {
	mu     sync.Mutex
	truck  domain.Truck
	filled decimal.Decimal
}

func (e *truckEntry) snapshot() *domain.Truck {
	t := e.truck
	t.FilledKg = e.filled.InexactFloat64()
	return &t
}

// Fleet keeps trucks and their capacity reservations in memory. It
// implements TruckRepository and CapacityRepository.
type Fleet struct {
	trucksMu sync.RWMutex
	trucks   map[string]*truckEntry

	reservationsMu sync.Mutex
	reservations   map[string]*domain.Reservation
}

// Ensure Fleet implements the repository interfaces.
var (
	_ repository.TruckRepository    = (*Fleet)(nil)
	_ repository.CapacityRepository = (*Fleet)(nil)
)

// NewFleet creates an empty Fleet.
func NewFleet() *Fleet {
	return &Fleet{
		trucks:       make(map[string]*truckEntry),
		reservations: make(map[string]*domain.Reservation),
	}
}

// PutTruck inserts or replaces a truck. It stands in for the external fleet
// process that owns truck records.
func (s *Fleet) PutTruck(t *domain.Truck) error {
	if t.CapacityKg < 0 || t.FilledKg < 0 || t.FilledKg > t.CapacityKg {
		return fmt.Errorf("truck %s: filled %.3f outside [0, %.3f]", t.ID, t.FilledKg, t.CapacityKg)
	}
	entry := &truckEntry{truck: *t, filled: decimal.NewFromFloat(t.FilledKg)}
	if entry.truck.UpdatedAt.IsZero() {
		entry.truck.UpdatedAt = time.Now().UTC()
	}

	s.trucksMu.Lock()
	defer s.trucksMu.Unlock()
	s.trucks[t.ID] = entry
	return nil
}

func (s *Fleet) entry(id string) (*truckEntry, bool) {
	s.trucksMu.RLock()
	defer s.trucksMu.RUnlock()
	e, ok := s.trucks[id]
	return e, ok
}

// GetByID retrieves a truck by ID.
func (s *Fleet) GetByID(_ context.Context, id string) (*domain.Truck, error) {
	e, ok := s.entry(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot(), nil
}

func (s *Fleet) allEntries() []*truckEntry {
	s.trucksMu.RLock()
	defer s.trucksMu.RUnlock()
	entries := make([]*truckEntry, 0, len(s.trucks))
	for _, e := range s.trucks {
		entries = append(entries, e)
	}
	return entries
}

// ListAvailable returns available trucks, optionally restricted to one type.
func (s *Fleet) ListAvailable(_ context.Context, truckType string) ([]*domain.Truck, error) {
	var trucks []*domain.Truck
	for _, e := range s.allEntries() {
		e.mu.Lock()
		if e.truck.Available && (truckType == "" || e.truck.Type == truckType) {
			trucks = append(trucks, e.snapshot())
		}
		e.mu.Unlock()
	}
	sort.Slice(trucks, func(i, j int) bool {
		if trucks[i].Name != trucks[j].Name {
			return trucks[i].Name < trucks[j].Name
		}
		return trucks[i].ID < trucks[j].ID
	})
	return trucks, nil
}

// ListTypes returns the distinct types of available trucks.
func (s *Fleet) ListTypes(_ context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	for _, e := range s.allEntries() {
		e.mu.Lock()
		if e.truck.Available && e.truck.Type != "" {
			seen[e.truck.Type] = struct{}{}
		}
		e.mu.Unlock()
	}
	types := make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Strings(types)
	return types, nil
}

// UpdateLocation stores the last reported position of a truck.
func (s *Fleet) UpdateLocation(_ context.Context, id string, lat, lng float64) error {
	e, ok := s.entry(id)
	if !ok {
		return repository.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.truck.Latitude = lat
	e.truck.Longitude = lng
	e.truck.HasLocation = true
	e.truck.UpdatedAt = time.Now().UTC()
	return nil
}

// Reserve checks and adds the weight under the truck's lock.
func (s *Fleet) Reserve(ctx context.Context, res *domain.Reservation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e, ok := s.entry(res.TruckID)
	if !ok {
		return repository.ErrNotFound
	}
	weight := decimal.NewFromFloat(res.WeightKg)

	e.mu.Lock()
	if !e.truck.Available {
		e.mu.Unlock()
		return repository.ErrUnavailable
	}
	total := decimal.NewFromFloat(e.truck.CapacityKg)
	next := e.filled.Add(weight)
	if next.GreaterThan(total) {
		remaining := total.Sub(e.filled)
		e.mu.Unlock()
		return fmt.Errorf("%w: requested %s kg, remaining %s kg",
			repository.ErrInsufficientCapacity, weight.String(), remaining.String())
	}
	e.filled = next
	e.truck.UpdatedAt = time.Now().UTC()
	e.mu.Unlock()

	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}
	res.Status = domain.ReservationStatusHeld
	stored := *res

	s.reservationsMu.Lock()
	s.reservations[res.ID] = &stored
	s.reservationsMu.Unlock()
	return nil
}

// Release flips the reservation to released, then returns its weight. Only
// one caller can win the flip, so the weight is returned at most once.
func (s *Fleet) Release(ctx context.Context, reservationID string) (*domain.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.reservationsMu.Lock()
	res, ok := s.reservations[reservationID]
	if !ok {
		s.reservationsMu.Unlock()
		return nil, repository.ErrNotFound
	}
	if res.Status != domain.ReservationStatusHeld {
		s.reservationsMu.Unlock()
		return nil, repository.ErrAlreadyReleased
	}
	res.Status = domain.ReservationStatusReleased
	res.ReleasedAt = time.Now().UTC()
	released := *res
	s.reservationsMu.Unlock()

	if e, ok := s.entry(released.TruckID); ok {
		e.mu.Lock()
		e.filled = decimal.Max(e.filled.Sub(decimal.NewFromFloat(released.WeightKg)), decimal.Zero)
		e.truck.UpdatedAt = time.Now().UTC()
		e.mu.Unlock()
	}
	return &released, nil
}

// Capacity returns the current capacity snapshot of a truck.
func (s *Fleet) Capacity(_ context.Context, truckID string) (*domain.Capacity, error) {
	e, ok := s.entry(truckID)
	if !ok {
		return nil, repository.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return &domain.Capacity{
		TruckID:    truckID,
		TotalKg:    e.truck.CapacityKg,
		FilledKg:   e.filled.InexactFloat64(),
		Available:  e.truck.Available,
		ObservedAt: time.Now().UTC(),
	}, nil
}
