package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const truckLocationKey = "trucks:locations"

// TruckLocation represents a truck's position and its distance from the
// query point.
type TruckLocation struct {
	TruckID    string
	Lat        float64
	Lng        float64
	DistanceKm float64
}

// LocationStore handles truck location operations in Redis.
type LocationStore struct {
	client *redis.Client
}

// NewLocationStore creates a new LocationStore.
func NewLocationStore(client *redis.Client) *LocationStore {
	return &LocationStore{client: client}
}

// UpdateLocation stores a truck's location using GEOADD.
func (s *LocationStore) UpdateLocation(ctx context.Context, truckID string, lat, lng float64) error {
	return s.client.GeoAdd(ctx, truckLocationKey, &redis.GeoLocation{
		Name:      truckID,
		Longitude: lng,
		Latitude:  lat,
	}).Err()
}

// FindNearbyTrucks returns trucks within radiusKm, nearest first.
func (s *LocationStore) FindNearbyTrucks(ctx context.Context, lat, lng, radiusKm float64) ([]TruckLocation, error) {
	results, err := s.client.GeoRadius(ctx, truckLocationKey, lng, lat, &redis.GeoRadiusQuery{
		Radius:    radiusKm,
		Unit:      "km",
		WithCoord: true,
		WithDist:  true,
		Sort:      "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}

	locations := make([]TruckLocation, 0, len(results))
	for _, r := range results {
		locations = append(locations, TruckLocation{
			TruckID:    r.Name,
			Lat:        r.Latitude,
			Lng:        r.Longitude,
			DistanceKm: r.Dist,
		})
	}
	return locations, nil
}

// RemoveLocation removes a truck from the geo index.
func (s *LocationStore) RemoveLocation(ctx context.Context, truckID string) error {
	return s.client.ZRem(ctx, truckLocationKey, truckID).Err()
}
