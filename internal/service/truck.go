package service

import (
	"context"
	"errors"
	"log"
	"strings"

	"freight/internal/domain"
	"freight/internal/redis"
	"freight/internal/repository"
)

// TruckService serves fleet browsing: lookups, listings, estimates and
// nearby search.
type TruckService struct {
	truckRepo repository.TruckRepository
	cache     redis.TruckCacheInterface
	locations redis.LocationStoreInterface
}

// NewTruckService creates a new TruckService. cache and locations may be nil.
func NewTruckService(
	truckRepo repository.TruckRepository,
	cache redis.TruckCacheInterface,
	locations redis.LocationStoreInterface,
) *TruckService {
	return &TruckService{
		truckRepo: truckRepo,
		cache:     cache,
		locations: locations,
	}
}

// GetTruck returns a truck, reading through the cache.
func (s *TruckService) GetTruck(ctx context.Context, truckID string) (*domain.Truck, error) {
	if strings.TrimSpace(truckID) == "" {
		return nil, ErrInvalidTruckID
	}

	if s.cache != nil {
		cached, err := s.cache.GetTruck(ctx, truckID)
		if err != nil {
			log.Printf("[FLEET] cache read failed for truck %s: %v", truckID, err)
		} else if cached != nil {
			return cached.Truck(), nil
		}
	}

	// The generation is read before the load so a reservation landing in
	// between makes the write-back a no-op.
	gens := s.generations(ctx, []string{truckID})

	truck, err := s.loadTruck(ctx, truckID)
	if err != nil {
		return nil, err
	}

	if gen, ok := gens[truckID]; ok {
		entry := redis.NewCachedTruck(truck)
		entry.Generation = gen
		if err := s.cache.SetTruck(ctx, entry); err != nil {
			log.Printf("[FLEET] cache write failed for truck %s: %v", truckID, err)
		}
	}
	return truck, nil
}

// generations returns the cache generation of each truck, or nil when the
// cache is absent or failing, in which case nothing should be written back.
func (s *TruckService) generations(ctx context.Context, ids []string) map[string]int64 {
	if s.cache == nil || len(ids) == 0 {
		return nil
	}
	gens, err := s.cache.Generations(ctx, ids)
	if err != nil {
		log.Printf("[FLEET] cache generation read failed: %v", err)
		return nil
	}
	return gens
}

func (s *TruckService) loadTruck(ctx context.Context, truckID string) (*domain.Truck, error) {
	truck, err := s.truckRepo.GetByID(ctx, truckID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTruckNotFound
		}
		return nil, &PersistenceError{Op: "load truck", Err: err}
	}
	return truck, nil
}

// ListAvailableTrucks returns trucks accepting bookings. An empty truckType
// returns every type.
func (s *TruckService) ListAvailableTrucks(ctx context.Context, truckType string) ([]*domain.Truck, error) {
	trucks, err := s.truckRepo.ListAvailable(ctx, strings.TrimSpace(truckType))
	if err != nil {
		return nil, &PersistenceError{Op: "list trucks", Err: err}
	}
	return trucks, nil
}

// ListTruckTypes returns the distinct types of available trucks.
func (s *TruckService) ListTruckTypes(ctx context.Context) ([]string, error) {
	types, err := s.truckRepo.ListTypes(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "list truck types", Err: err}
	}
	return types, nil
}

// Estimate is a price quote for a load on a specific truck.
type Estimate struct {
	Truck       *domain.Truck
	DistanceKm  float64
	WeightKg    float64
	Price       float64
	RemainingKg float64
	// Fits reports whether the load fits right now. It is advisory; only a
	// reservation commits capacity.
	Fits bool
}

// EstimateForTruck prices a load on a truck without reserving anything.
func (s *TruckService) EstimateForTruck(ctx context.Context, truckID string, distanceKm, weightKg float64) (*Estimate, error) {
	if strings.TrimSpace(truckID) == "" {
		return nil, ErrInvalidTruckID
	}

	truck, err := s.loadTruck(ctx, truckID)
	if err != nil {
		return nil, err
	}

	price, err := EstimatePrice(truck.Rates(), distanceKm, weightKg)
	if err != nil {
		return nil, err
	}

	remaining := truck.RemainingKg()
	return &Estimate{
		Truck:       truck,
		DistanceKm:  distanceKm,
		WeightKg:    weightKg,
		Price:       price,
		RemainingKg: remaining,
		Fits:        truck.Available && weightKg <= remaining,
	}, nil
}

// UpdateTruckLocation records a truck's reported position.
func (s *TruckService) UpdateTruckLocation(ctx context.Context, truckID string, lat, lng float64) error {
	if strings.TrimSpace(truckID) == "" {
		return ErrInvalidTruckID
	}
	if !isValidLatitude(lat) || !isValidLongitude(lng) {
		return ErrInvalidLocation
	}

	if err := s.truckRepo.UpdateLocation(ctx, truckID, lat, lng); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTruckNotFound
		}
		return &PersistenceError{Op: "update truck location", Err: err}
	}

	if s.locations != nil {
		if err := s.locations.UpdateLocation(ctx, truckID, lat, lng); err != nil {
			log.Printf("[FLEET] geo index update failed for truck %s: %v", truckID, err)
		}
	}
	if s.cache != nil {
		if err := s.cache.InvalidateTruck(ctx, truckID); err != nil {
			log.Printf("[FLEET] cache invalidation failed for truck %s: %v", truckID, err)
		}
	}
	return nil
}

// NearbyTruck is an available truck and its distance from the search point.
type NearbyTruck struct {
	Truck      *domain.Truck
	DistanceKm float64
}

// FindNearbyTrucks returns available trucks within radiusKm, nearest first.
func (s *TruckService) FindNearbyTrucks(ctx context.Context, lat, lng, radiusKm float64) ([]NearbyTruck, error) {
	if !isValidLatitude(lat) || !isValidLongitude(lng) {
		return nil, ErrInvalidLocation
	}
	if !isPositiveFinite(radiusKm) {
		return nil, ErrInvalidRadius
	}
	if s.locations == nil {
		return nil, nil
	}

	locations, err := s.locations.FindNearbyTrucks(ctx, lat, lng, radiusKm)
	if err != nil {
		return nil, &PersistenceError{Op: "search truck locations", Err: err}
	}
	if len(locations) == 0 {
		return nil, nil
	}

	ids := make([]string, len(locations))
	for i, loc := range locations {
		ids[i] = loc.TruckID
	}
	trucks := s.hydrate(ctx, ids)

	nearby := make([]NearbyTruck, 0, len(locations))
	for _, loc := range locations {
		truck, ok := trucks[loc.TruckID]
		if !ok || !truck.Available {
			continue
		}
		nearby = append(nearby, NearbyTruck{Truck: truck, DistanceKm: loc.DistanceKm})
	}
	return nearby, nil
}

// hydrate loads trucks by ID, serving what it can from the cache. Trucks
// that no longer exist are dropped from the geo index.
func (s *TruckService) hydrate(ctx context.Context, ids []string) map[string]*domain.Truck {
	trucks := make(map[string]*domain.Truck, len(ids))
	missing := ids

	if s.cache != nil {
		cached, miss, err := s.cache.GetTrucksBatch(ctx, ids)
		if err != nil {
			log.Printf("[FLEET] batch cache read failed: %v", err)
		} else {
			for id, c := range cached {
				trucks[id] = c.Truck()
			}
			missing = miss
		}
	}

	gens := s.generations(ctx, missing)

	var fetched []*redis.CachedTruck
	for _, id := range missing {
		truck, err := s.truckRepo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) && s.locations != nil {
				if err := s.locations.RemoveLocation(ctx, id); err != nil {
					log.Printf("[FLEET] geo index removal failed for truck %s: %v", id, err)
				}
			}
			continue
		}
		trucks[id] = truck
		if gen, ok := gens[id]; ok {
			entry := redis.NewCachedTruck(truck)
			entry.Generation = gen
			fetched = append(fetched, entry)
		}
	}

	if s.cache != nil && len(fetched) > 0 {
		if err := s.cache.SetTrucksBatch(ctx, fetched); err != nil {
			log.Printf("[FLEET] batch cache write failed: %v", err)
		}
	}
	return trucks
}

func isValidLatitude(lat float64) bool {
	return isFinite(lat) && lat >= -90 && lat <= 90
}

func isValidLongitude(lng float64) bool {
	return isFinite(lng) && lng >= -180 && lng <= 180
}
