package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"freight/internal/domain"
)

// CacheStore handles truck caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// TruckCacheTTL bounds how stale a cached filled capacity can be if an
// invalidation is lost.
const TruckCacheTTL = 30 * time.Second

const (
	truckCachePrefix      = "cache:truck:"
	truckGenerationPrefix = "cache:truck-gen:"
)

// setIfCurrent writes a cache entry only while the truck's generation still
// matches the one read before the entry was loaded.
var setIfCurrent = redis.NewScript(`
local gen = redis.call('GET', KEYS[2]) or '0'
if gen ~= ARGV[2] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// CachedTruck represents a cached truck entity.
type CachedTruck struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	OwnerName   string    `json:"owner_name"`
	PhoneNumber string    `json:"phone_number"`
	Type        string    `json:"type"`
	ImageURL    string    `json:"image_url"`
	CapacityKg  float64   `json:"capacity_kg"`
	FilledKg    float64   `json:"filled_kg"`
	BasePrice   float64   `json:"base_price"`
	PricePerKm  float64   `json:"price_per_km"`
	PricePerKg  float64   `json:"price_per_kg"`
	Available   bool      `json:"available"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	HasLocation bool      `json:"has_location"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Generation is the invalidation count observed before the truck was
	// loaded. A write with an older generation is dropped.
	Generation int64 `json:"generation"`
}

// NewCachedTruck converts a domain truck for caching.
func NewCachedTruck(t *domain.Truck) *CachedTruck {
	return &CachedTruck{
		ID:          t.ID,
		Name:        t.Name,
		OwnerName:   t.OwnerName,
		PhoneNumber: t.PhoneNumber,
		Type:        t.Type,
		ImageURL:    t.ImageURL,
		CapacityKg:  t.CapacityKg,
		FilledKg:    t.FilledKg,
		BasePrice:   t.BasePrice,
		PricePerKm:  t.PricePerKm,
		PricePerKg:  t.PricePerKg,
		Available:   t.Available,
		Latitude:    t.Latitude,
		Longitude:   t.Longitude,
		HasLocation: t.HasLocation,
		UpdatedAt:   t.UpdatedAt,
	}
}

// Truck converts the cached entry back into a domain truck.
func (c *CachedTruck) Truck() *domain.Truck {
	return &domain.Truck{
		ID:          c.ID,
		Name:        c.Name,
		OwnerName:   c.OwnerName,
		PhoneNumber: c.PhoneNumber,
		Type:        c.Type,
		ImageURL:    c.ImageURL,
		CapacityKg:  c.CapacityKg,
		FilledKg:    c.FilledKg,
		BasePrice:   c.BasePrice,
		PricePerKm:  c.PricePerKm,
		PricePerKg:  c.PricePerKg,
		Available:   c.Available,
		Latitude:    c.Latitude,
		Longitude:   c.Longitude,
		HasLocation: c.HasLocation,
		UpdatedAt:   c.UpdatedAt,
	}
}

// GetTruck retrieves a truck from cache. A miss returns nil, nil.
func (s *CacheStore) GetTruck(ctx context.Context, truckID string) (*CachedTruck, error) {
	data, err := s.client.Get(ctx, truckCachePrefix+truckID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var truck CachedTruck
	if err := json.Unmarshal(data, &truck); err != nil {
		return nil, err
	}
	return &truck, nil
}

// SetTruck stores a truck in cache unless it was invalidated after
// truck.Generation was read.
func (s *CacheStore) SetTruck(ctx context.Context, truck *CachedTruck) error {
	data, err := json.Marshal(truck)
	if err != nil {
		return err
	}
	return setIfCurrent.Run(ctx, s.client, truckKeys(truck.ID), setArgs(data, truck.Generation)...).Err()
}

// InvalidateTruck removes a truck from cache and bumps its generation so
// in-flight loads cannot write back what they read before the change.
func (s *CacheStore) InvalidateTruck(ctx context.Context, truckID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, truckCachePrefix+truckID)
		pipe.Incr(ctx, truckGenerationPrefix+truckID)
		return nil
	})
	return err
}

// Generations returns the current generation of each truck. Trucks never
// invalidated are at generation 0.
func (s *CacheStore) Generations(ctx context.Context, truckIDs []string) (map[string]int64, error) {
	gens := make(map[string]int64, len(truckIDs))
	if len(truckIDs) == 0 {
		return gens, nil
	}

	keys := make([]string, len(truckIDs))
	for i, id := range truckIDs {
		keys[i] = truckGenerationPrefix + id
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			gens[truckIDs[i]] = 0
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		gens[truckIDs[i]] = n
	}
	return gens, nil
}

func truckKeys(truckID string) []string {
	return []string{truckCachePrefix + truckID, truckGenerationPrefix + truckID}
}

func setArgs(data []byte, generation int64) []interface{} {
	return []interface{}{data, strconv.FormatInt(generation, 10), TruckCacheTTL.Milliseconds()}
}

// GetTrucksBatch retrieves multiple trucks from cache using a pipeline.
// Returns the hits keyed by ID and the IDs that missed.
func (s *CacheStore) GetTrucksBatch(ctx context.Context, truckIDs []string) (map[string]*CachedTruck, []string, error) {
	result := make(map[string]*CachedTruck, len(truckIDs))
	if len(truckIDs) == 0 {
		return result, nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(truckIDs))
	for i, id := range truckIDs {
		cmds[i] = pipe.Get(ctx, truckCachePrefix+id)
	}

	// Missing keys surface as redis.Nil on the individual commands.
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, nil, err
	}

	var missing []string
	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			missing = append(missing, truckIDs[i])
			continue
		}
		var truck CachedTruck
		if err := json.Unmarshal(data, &truck); err != nil {
			missing = append(missing, truckIDs[i])
			continue
		}
		result[truckIDs[i]] = &truck
	}
	return result, missing, nil
}

// SetTrucksBatch stores multiple trucks in cache using a pipeline. Each
// write is fenced by its generation like SetTruck.
func (s *CacheStore) SetTrucksBatch(ctx context.Context, trucks []*CachedTruck) error {
	if len(trucks) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, truck := range trucks {
		data, err := json.Marshal(truck)
		if err != nil {
			continue
		}
		setIfCurrent.Eval(ctx, pipe, truckKeys(truck.ID), setArgs(data, truck.Generation)...)
	}

	_, err := pipe.Exec(ctx)
	return err
}
