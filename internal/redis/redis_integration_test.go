//go:build integration

package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"freight/internal/domain"
)

func startRedis(ctx context.Context, t *testing.T) *redis.Client {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		terminateCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		require.NoError(t, container.Terminate(terminateCtx))
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisStoresIntegration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	client := startRedis(ctx, t)

	t.Run("truck cache", func(t *testing.T) {
		cache := NewCacheStore(client)

		miss, err := cache.GetTruck(ctx, "truck-1")
		require.NoError(t, err)
		assert.Nil(t, miss)

		truck := &domain.Truck{ID: "truck-1", Name: "Tata 407", CapacityKg: 1000, FilledKg: 250, Available: true}
		require.NoError(t, cache.SetTruck(ctx, NewCachedTruck(truck)))

		hit, err := cache.GetTruck(ctx, "truck-1")
		require.NoError(t, err)
		require.NotNil(t, hit)
		assert.Equal(t, 750.0, hit.Truck().RemainingKg())

		ttl, err := client.TTL(ctx, truckCachePrefix+"truck-1").Result()
		require.NoError(t, err)
		assert.LessOrEqual(t, ttl, TruckCacheTTL)

		require.NoError(t, cache.SetTrucksBatch(ctx, []*CachedTruck{NewCachedTruck(&domain.Truck{ID: "truck-2"})}))
		found, missing, err := cache.GetTrucksBatch(ctx, []string{"truck-1", "truck-2", "truck-3"})
		require.NoError(t, err)
		assert.Len(t, found, 2)
		assert.Equal(t, []string{"truck-3"}, missing)

		require.NoError(t, cache.InvalidateTruck(ctx, "truck-1"))
		gone, err := cache.GetTruck(ctx, "truck-1")
		require.NoError(t, err)
		assert.Nil(t, gone)

		gens, err := cache.Generations(ctx, []string{"truck-1", "truck-2"})
		require.NoError(t, err)
		assert.Equal(t, map[string]int64{"truck-1": 1, "truck-2": 0}, gens)

		// A load that started before the invalidation writes nothing back.
		require.NoError(t, cache.SetTruck(ctx, NewCachedTruck(truck)))
		stale, err := cache.GetTruck(ctx, "truck-1")
		require.NoError(t, err)
		assert.Nil(t, stale)

		stale = NewCachedTruck(truck)
		stale.Generation = 0
		fresh := NewCachedTruck(truck)
		fresh.Generation = gens["truck-1"]
		require.NoError(t, cache.SetTrucksBatch(ctx, []*CachedTruck{stale}))
		found, _, err = cache.GetTrucksBatch(ctx, []string{"truck-1"})
		require.NoError(t, err)
		assert.Empty(t, found)

		require.NoError(t, cache.SetTruck(ctx, fresh))
		hit, err = cache.GetTruck(ctx, "truck-1")
		require.NoError(t, err)
		require.NotNil(t, hit)
		assert.EqualValues(t, 1, hit.Generation)
	})

	t.Run("geo index", func(t *testing.T) {
		locations := NewLocationStore(client)

		require.NoError(t, locations.UpdateLocation(ctx, "pune", 18.5204, 73.8567))
		require.NoError(t, locations.UpdateLocation(ctx, "pimpri", 18.6298, 73.7997))
		require.NoError(t, locations.UpdateLocation(ctx, "mumbai", 19.0760, 72.8777))

		nearby, err := locations.FindNearbyTrucks(ctx, 18.5204, 73.8567, 25)
		require.NoError(t, err)
		require.Len(t, nearby, 2)
		assert.Equal(t, "pune", nearby[0].TruckID)
		assert.Equal(t, "pimpri", nearby[1].TruckID)
		assert.Less(t, nearby[0].DistanceKm, nearby[1].DistanceKm)

		require.NoError(t, locations.RemoveLocation(ctx, "pimpri"))
		nearby, err = locations.FindNearbyTrucks(ctx, 18.5204, 73.8567, 25)
		require.NoError(t, err)
		assert.Len(t, nearby, 1)
	})
}
