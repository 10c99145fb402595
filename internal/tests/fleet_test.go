package tests

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"freight/internal/domain"
	"freight/internal/redis"
	"freight/internal/repository/memory"
	"freight/internal/service"
)

// racingFleet runs afterRead once, between reading a truck and returning it.
type racingFleet struct {
	*memory.Fleet
	afterRead func()
}

func (f *racingFleet) GetByID(ctx context.Context, id string) (*domain.Truck, error) {
	truck, err := f.Fleet.GetByID(ctx, id)
	if hook := f.afterRead; hook != nil {
		f.afterRead = nil
		hook()
	}
	return truck, err
}

// ──────────────────────────────────────────────
// 8. FLEET BROWSING
// ──────────────────────────────────────────────

func TestGetTruck_ReadsThroughCache(t *testing.T) {
	t.Parallel()

	fleet := newFleet(newTruck("truck-1", 1000, 0))
	cache := NewMockTruckCache()
	svc := service.NewTruckService(fleet, cache, nil)

	truck, err := svc.GetTruck(context.Background(), "truck-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if truck.Name != "Truck truck-1" {
		t.Errorf("unexpected truck %+v", truck)
	}
	if !cache.Cached("truck-1") {
		t.Fatal("expected truck to be cached after first read")
	}

	stale := redis.NewCachedTruck(truck)
	stale.Name = "From cache"
	_ = cache.SetTruck(context.Background(), stale)

	again, err := svc.GetTruck(context.Background(), "truck-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.Name != "From cache" {
		t.Errorf("expected second read served from cache, got %q", again.Name)
	}

	if _, err := svc.GetTruck(context.Background(), "ghost"); !errors.Is(err, service.ErrTruckNotFound) {
		t.Errorf("expected ErrTruckNotFound, got %v", err)
	}
}

func TestGetTruck_ReservationDuringLoadIsNotCachedStale(t *testing.T) {
	t.Parallel()

	fleet := newFleet(newTruck("truck-1", 1000, 0))
	cache := NewMockTruckCache()
	ledger := service.NewCapacityLedger(fleet, cache)
	repo := &racingFleet{Fleet: fleet}
	repo.afterRead = func() {
		if _, err := ledger.TryReserve(context.Background(), "truck-1", 300); err != nil {
			t.Errorf("reserve: %v", err)
		}
	}
	svc := service.NewTruckService(repo, cache, nil)

	first, err := svc.GetTruck(context.Background(), "truck-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.FilledKg != 0 {
		t.Fatalf("expected the pre-reservation snapshot, got filled=%v", first.FilledKg)
	}
	if cache.Cached("truck-1") {
		t.Fatal("snapshot read before the reservation must not be cached")
	}

	second, err := svc.GetTruck(context.Background(), "truck-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.FilledKg != 300 {
		t.Errorf("expected filled=300 after reservation, got %v", second.FilledKg)
	}
	if !cache.Cached("truck-1") {
		t.Error("expected fresh snapshot to be cached")
	}
}

func TestGetTruck_CacheErrorFallsBack(t *testing.T) {
	t.Parallel()

	cache := NewMockTruckCache()
	cache.GetError = errInjected
	svc := service.NewTruckService(newFleet(newTruck("truck-1", 1000, 0)), cache, nil)

	if _, err := svc.GetTruck(context.Background(), "truck-1"); err != nil {
		t.Fatalf("expected repository fallback, got %v", err)
	}
}

func TestListAvailableTrucks(t *testing.T) {
	t.Parallel()

	mini := newTruck("truck-2", 500, 0)
	mini.Type = "mini"
	parked := newTruck("truck-3", 500, 0)
	parked.Available = false
	svc := service.NewTruckService(newFleet(newTruck("truck-1", 1000, 0), mini, parked), nil, nil)

	all, err := svc.ListAvailableTrucks(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 available trucks, got %d", len(all))
	}

	minis, err := svc.ListAvailableTrucks(context.Background(), "mini")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(minis) != 1 || minis[0].ID != "truck-2" {
		t.Errorf("expected only truck-2, got %d trucks", len(minis))
	}

	types, err := svc.ListTruckTypes(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(types) != 2 || types[0] != "medium" || types[1] != "mini" {
		t.Errorf("unexpected types %v", types)
	}
}

func TestEstimateForTruck(t *testing.T) {
	t.Parallel()

	svc := service.NewTruckService(newFleet(newTruck("truck-1", 1000, 900)), nil, nil)

	est, err := svc.EstimateForTruck(context.Background(), "truck-1", 20, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if est.Price != 310 {
		t.Errorf("expected price 310, got %v", est.Price)
	}
	if !est.Fits || est.RemainingKg != 100 {
		t.Errorf("expected load to fit exactly, got fits=%v remaining=%v", est.Fits, est.RemainingKg)
	}

	est, err = svc.EstimateForTruck(context.Background(), "truck-1", 20, 101)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if est.Fits {
		t.Error("expected 101 kg not to fit")
	}

	if _, err := svc.EstimateForTruck(context.Background(), "truck-1", 0, 10); !errors.Is(err, service.ErrInvalidDistance) {
		t.Errorf("expected ErrInvalidDistance, got %v", err)
	}
}

func TestUpdateTruckLocation(t *testing.T) {
	t.Parallel()

	fleet := newFleet(newTruck("truck-1", 1000, 0))
	locations := NewMockLocationStore()
	cache := NewMockTruckCache()
	svc := service.NewTruckService(fleet, cache, locations)

	if err := svc.UpdateTruckLocation(context.Background(), "truck-1", 18.52, 73.85); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !locations.HasLocation("truck-1") {
		t.Error("expected truck to be geo-indexed")
	}
	if atomic.LoadInt32(&cache.InvalidateCallCount) != 1 {
		t.Error("expected cache invalidation")
	}
	truck, _ := fleet.GetByID(context.Background(), "truck-1")
	if !truck.HasLocation || truck.Latitude != 18.52 {
		t.Errorf("expected stored position, got %+v", truck)
	}

	if err := svc.UpdateTruckLocation(context.Background(), "truck-1", 91, 0); !errors.Is(err, service.ErrInvalidLocation) {
		t.Errorf("expected ErrInvalidLocation, got %v", err)
	}
	if err := svc.UpdateTruckLocation(context.Background(), "ghost", 10, 10); !errors.Is(err, service.ErrTruckNotFound) {
		t.Errorf("expected ErrTruckNotFound, got %v", err)
	}

	locations.UpdateLocationError = errInjected
	if err := svc.UpdateTruckLocation(context.Background(), "truck-1", 10, 10); err != nil {
		t.Errorf("geo index failure should not fail the update, got %v", err)
	}
}

func TestFindNearbyTrucks(t *testing.T) {
	t.Parallel()

	parked := newTruck("truck-2", 500, 0)
	parked.Available = false
	fleet := newFleet(newTruck("truck-1", 1000, 0), parked)
	locations := NewMockLocationStore()
	locations.SetLocations([]redis.TruckLocation{
		{TruckID: "truck-1", Lat: 18.5, Lng: 73.8, DistanceKm: 1.2},
		{TruckID: "truck-2", Lat: 18.6, Lng: 73.9, DistanceKm: 2.5},
		{TruckID: "retired", Lat: 18.7, Lng: 73.9, DistanceKm: 3.1},
	})
	cache := NewMockTruckCache()
	svc := service.NewTruckService(fleet, cache, locations)

	nearby, err := svc.FindNearbyTrucks(context.Background(), 18.5, 73.8, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nearby) != 1 || nearby[0].Truck.ID != "truck-1" || nearby[0].DistanceKm != 1.2 {
		t.Fatalf("expected only truck-1, got %+v", nearby)
	}
	if locations.HasLocation("retired") {
		t.Error("expected unknown truck to be dropped from the geo index")
	}
	if !cache.Cached("truck-1") {
		t.Error("expected hydrated trucks to be cached")
	}

	if _, err := svc.FindNearbyTrucks(context.Background(), 18.5, 73.8, 0); !errors.Is(err, service.ErrInvalidRadius) {
		t.Errorf("expected ErrInvalidRadius, got %v", err)
	}

	locations.FindNearbyTrucksError = errInjected
	if _, err := svc.FindNearbyTrucks(context.Background(), 18.5, 73.8, 10); !errors.Is(err, service.ErrPersistence) {
		t.Errorf("expected persistence failure, got %v", err)
	}
}

func TestFindNearbyTrucks_LogsGeoRemovalFailure(t *testing.T) {
	// Not parallel: captures the process-wide logger.
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	locations := NewMockLocationStore()
	locations.SetLocations([]redis.TruckLocation{
		{TruckID: "truck-1", Lat: 18.5, Lng: 73.8, DistanceKm: 1.2},
		{TruckID: "retired", Lat: 18.7, Lng: 73.9, DistanceKm: 3.1},
	})
	locations.RemoveLocationError = errInjected
	svc := service.NewTruckService(newFleet(newTruck("truck-1", 1000, 0)), nil, locations)

	nearby, err := svc.FindNearbyTrucks(context.Background(), 18.5, 73.8, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nearby) != 1 {
		t.Fatalf("expected 1 nearby truck, got %d", len(nearby))
	}
	if got := atomic.LoadInt32(&locations.RemoveLocationCallCount); got != 1 {
		t.Errorf("expected 1 removal attempt, got %d", got)
	}
	if !strings.Contains(buf.String(), "[FLEET] geo index removal failed for truck retired") {
		t.Errorf("expected removal failure to be logged, got %q", buf.String())
	}
}
