package tests

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"freight/internal/domain"
	"freight/internal/events"
	"freight/internal/redis"
	"freight/internal/repository"
	"freight/internal/repository/memory"
)

// errInjected is the failure returned by mocks configured to fail.
var errInjected = errors.New("injected failure")

// ──────────────────────────────────────────────
// FLEET FIXTURES
// ──────────────────────────────────────────────

// newTruck returns an available truck with the rates used across tests:
// base 10, 5 per km, 2 per kg.
func newTruck(id string, capacityKg, filledKg float64) *domain.Truck {
	return &domain.Truck{
		ID:         id,
		Name:       "Truck " + id,
		Type:       "medium",
		CapacityKg: capacityKg,
		FilledKg:   filledKg,
		BasePrice:  10,
		PricePerKm: 5,
		PricePerKg: 2,
		Available:  true,
	}
}

// newFleet builds an in-memory fleet holding trucks.
func newFleet(trucks ...*domain.Truck) *memory.Fleet {
	fleet := memory.NewFleet()
	for _, truck := range trucks {
		if err := fleet.PutTruck(truck); err != nil {
			panic(err)
		}
	}
	return fleet
}

// filledKg returns the truck's filled capacity as the ledger sees it.
func filledKg(fleet *memory.Fleet, truckID string) float64 {
	c, err := fleet.Capacity(context.Background(), truckID)
	if err != nil {
		panic(err)
	}
	return c.FilledKg
}

// ──────────────────────────────────────────────
// FLAKY CAPACITY REPOSITORY
// ──────────────────────────────────────────────

// FlakyCapacityRepository wraps a fleet and fails releases on demand.
type FlakyCapacityRepository struct {
	*memory.Fleet

	// Counters
	ReleaseCallCount int32

	// Error injection. ReleaseFailures is the number of release calls that
	// fail before releases start succeeding; a negative value fails forever.
	ReleaseError    error
	ReleaseFailures int32
}

// NewFlakyCapacityRepository creates a wrapper around fleet.
func NewFlakyCapacityRepository(fleet *memory.Fleet) *FlakyCapacityRepository {
	return &FlakyCapacityRepository{Fleet: fleet}
}

func (m *FlakyCapacityRepository) Release(ctx context.Context, reservationID string) (*domain.Reservation, error) {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	if m.ReleaseError != nil {
		remaining := atomic.LoadInt32(&m.ReleaseFailures)
		if remaining < 0 {
			return nil, m.ReleaseError
		}
		if remaining > 0 && atomic.CompareAndSwapInt32(&m.ReleaseFailures, remaining, remaining-1) {
			return nil, m.ReleaseError
		}
	}
	return m.Fleet.Release(ctx, reservationID)
}

// ──────────────────────────────────────────────
// MOCK BOOKING REPOSITORY
// ──────────────────────────────────────────────

// MockBookingRepository is a mock implementation of BookingRepository.
type MockBookingRepository struct {
	mu       sync.RWMutex
	bookings map[string]*domain.Booking

	// Counters for verification
	CreateCallCount       int32
	UpdateStatusCallCount int32

	// Error injection. CreateHook runs before the write and its error, if
	// any, is returned instead of storing the booking.
	CreateError       error
	CreateHook        func(ctx context.Context) error
	GetError          error
	UpdateStatusError error
}

// NewMockBookingRepository creates a new mock booking repository.
func NewMockBookingRepository() *MockBookingRepository {
	return &MockBookingRepository{
		bookings: make(map[string]*domain.Booking),
	}
}

// AddBooking adds a booking to the mock repository.
func (m *MockBookingRepository) AddBooking(b *domain.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	m.bookings[b.ID] = &cp
}

func (m *MockBookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateHook != nil {
		if err := m.CreateHook(ctx); err != nil {
			return err
		}
	}
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	m.bookings[b.ID] = &cp
	return nil
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *MockBookingRepository) ListByUser(ctx context.Context, userID string, status domain.BookingStatus) ([]*domain.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Booking
	for _, b := range m.bookings {
		if b.UserID != userID || (status != "" && b.Status != status) {
			continue
		}
		cp := *b
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *MockBookingRepository) UpdateStatus(ctx context.Context, id string, from, to domain.BookingStatus) error {
	atomic.AddInt32(&m.UpdateStatusCallCount, 1)
	if m.UpdateStatusError != nil {
		return m.UpdateStatusError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return repository.ErrNotFound
	}
	if b.Status != from {
		return repository.ErrStatusConflict
	}
	b.Status = to
	return nil
}

// GetBooking returns a booking for test assertions.
func (m *MockBookingRepository) GetBooking(id string) *domain.Booking {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bookings[id]
}

// CountBookings returns the number of stored bookings.
func (m *MockBookingRepository) CountBookings() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bookings)
}

// ──────────────────────────────────────────────
// MOCK EVENT PUBLISHER
// ──────────────────────────────────────────────

// MockPublisher records published events.
type MockPublisher struct {
	mu                  sync.Mutex
	Created             []events.BookingCreated
	StatusChanged       []events.BookingStatusChanged
	CompensationsFailed []events.CompensationFailed

	// Error injection
	PublishError error
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishBookingCreated(ctx context.Context, ev events.BookingCreated) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Created = append(m.Created, ev)
	return m.PublishError
}

func (m *MockPublisher) PublishBookingStatusChanged(ctx context.Context, ev events.BookingStatusChanged) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StatusChanged = append(m.StatusChanged, ev)
	return m.PublishError
}

func (m *MockPublisher) PublishCompensationFailed(ctx context.Context, ev events.CompensationFailed) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CompensationsFailed = append(m.CompensationsFailed, ev)
	return m.PublishError
}

// Counts returns the number of created, status changed and compensation
// failed events.
func (m *MockPublisher) Counts() (created, changed, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Created), len(m.StatusChanged), len(m.CompensationsFailed)
}

// ──────────────────────────────────────────────
// MOCK LOCATION STORE
// ──────────────────────────────────────────────

// MockLocationStore is a mock implementation of LocationStore.
type MockLocationStore struct {
	mu        sync.RWMutex
	locations []redis.TruckLocation

	// Counters
	UpdateLocationCallCount int32

	RemoveLocationCallCount int32

	// Error injection
	UpdateLocationError   error
	FindNearbyTrucksError error
	RemoveLocationError   error
}

// NewMockLocationStore creates a new mock location store.
func NewMockLocationStore() *MockLocationStore {
	return &MockLocationStore{
		locations: make([]redis.TruckLocation, 0),
	}
}

// SetLocations sets all locations (for test setup).
func (m *MockLocationStore) SetLocations(locations []redis.TruckLocation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations = locations
}

func (m *MockLocationStore) UpdateLocation(ctx context.Context, truckID string, lat, lng float64) error {
	atomic.AddInt32(&m.UpdateLocationCallCount, 1)
	if m.UpdateLocationError != nil {
		return m.UpdateLocationError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, loc := range m.locations {
		if loc.TruckID == truckID {
			m.locations[i].Lat = lat
			m.locations[i].Lng = lng
			return nil
		}
	}
	m.locations = append(m.locations, redis.TruckLocation{TruckID: truckID, Lat: lat, Lng: lng})
	return nil
}

func (m *MockLocationStore) FindNearbyTrucks(ctx context.Context, lat, lng, radiusKm float64) ([]redis.TruckLocation, error) {
	if m.FindNearbyTrucksError != nil {
		return nil, m.FindNearbyTrucksError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	// No real geo filtering; returns everything in insertion order.
	result := make([]redis.TruckLocation, len(m.locations))
	copy(result, m.locations)
	return result, nil
}

func (m *MockLocationStore) RemoveLocation(ctx context.Context, truckID string) error {
	atomic.AddInt32(&m.RemoveLocationCallCount, 1)
	if m.RemoveLocationError != nil {
		return m.RemoveLocationError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, loc := range m.locations {
		if loc.TruckID == truckID {
			m.locations = append(m.locations[:i], m.locations[i+1:]...)
			return nil
		}
	}
	return nil
}

// HasLocation checks if a truck location exists.
func (m *MockLocationStore) HasLocation(truckID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, loc := range m.locations {
		if loc.TruckID == truckID {
			return true
		}
	}
	return false
}

// ──────────────────────────────────────────────
// MOCK TRUCK CACHE
// ──────────────────────────────────────────────

// MockTruckCache is a mock implementation of the truck read cache. Writes
// carrying a generation older than the truck's current one are dropped.
type MockTruckCache struct {
	mu          sync.RWMutex
	trucks      map[string]*redis.CachedTruck
	generations map[string]int64

	// Counters
	InvalidateCallCount int32

	// Error injection
	GetError error
}

// NewMockTruckCache creates a new mock truck cache.
func NewMockTruckCache() *MockTruckCache {
	return &MockTruckCache{
		trucks:      make(map[string]*redis.CachedTruck),
		generations: make(map[string]int64),
	}
}

func (m *MockTruckCache) GetTruck(ctx context.Context, truckID string) (*redis.CachedTruck, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.trucks[truckID], nil
}

func (m *MockTruckCache) SetTruck(ctx context.Context, truck *redis.CachedTruck) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(truck)
	return nil
}

func (m *MockTruckCache) setLocked(truck *redis.CachedTruck) {
	if truck.Generation != m.generations[truck.ID] {
		return
	}
	m.trucks[truck.ID] = truck
}

func (m *MockTruckCache) InvalidateTruck(ctx context.Context, truckID string) error {
	atomic.AddInt32(&m.InvalidateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.trucks, truckID)
	m.generations[truckID]++
	return nil
}

func (m *MockTruckCache) GetTrucksBatch(ctx context.Context, truckIDs []string) (map[string]*redis.CachedTruck, []string, error) {
	if m.GetError != nil {
		return nil, nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	found := make(map[string]*redis.CachedTruck)
	var missing []string
	for _, id := range truckIDs {
		if c, ok := m.trucks[id]; ok {
			found[id] = c
		} else {
			missing = append(missing, id)
		}
	}
	return found, missing, nil
}

func (m *MockTruckCache) SetTrucksBatch(ctx context.Context, trucks []*redis.CachedTruck) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range trucks {
		m.setLocked(c)
	}
	return nil
}

func (m *MockTruckCache) Generations(ctx context.Context, truckIDs []string) (map[string]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	gens := make(map[string]int64, len(truckIDs))
	for _, id := range truckIDs {
		gens[id] = m.generations[id]
	}
	return gens, nil
}

// Cached reports whether a truck is in the cache.
func (m *MockTruckCache) Cached(truckID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.trucks[truckID]
	return ok
}

// ──────────────────────────────────────────────
// FIXED RANDOM SOURCE
// ──────────────────────────────────────────────

// fixedDraw always returns the same value, pinning negotiation outcomes.
type fixedDraw float64

func (f fixedDraw) Float64() float64 { return float64(f) }

// Ensure mocks implement interfaces.
var (
	_ repository.CapacityRepository = (*FlakyCapacityRepository)(nil)
	_ repository.BookingRepository  = (*MockBookingRepository)(nil)
	_ redis.LocationStoreInterface  = (*MockLocationStore)(nil)
	_ redis.TruckCacheInterface     = (*MockTruckCache)(nil)
)
