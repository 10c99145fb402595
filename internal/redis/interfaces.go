package redis

import "context"

// LocationStoreInterface defines the interface for truck position operations.
type LocationStoreInterface interface {
	UpdateLocation(ctx context.Context, truckID string, lat, lng float64) error
	FindNearbyTrucks(ctx context.Context, lat, lng, radiusKm float64) ([]TruckLocation, error)
	RemoveLocation(ctx context.Context, truckID string) error
}

// TruckCacheInterface defines the interface for the truck read cache.
type TruckCacheInterface interface {
	GetTruck(ctx context.Context, truckID string) (*CachedTruck, error)
	SetTruck(ctx context.Context, truck *CachedTruck) error
	InvalidateTruck(ctx context.Context, truckID string) error
	GetTrucksBatch(ctx context.Context, truckIDs []string) (map[string]*CachedTruck, []string, error)
	SetTrucksBatch(ctx context.Context, trucks []*CachedTruck) error
	Generations(ctx context.Context, truckIDs []string) (map[string]int64, error)
}

// Ensure concrete types implement interfaces.
var (
	_ LocationStoreInterface = (*LocationStore)(nil)
	_ TruckCacheInterface    = (*CacheStore)(nil)
)
