//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"freight/internal/domain"
	"freight/internal/repository"
)

func TestCapacityRepositoryIntegration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	pgC, dsn := startPostgres(ctx, t)
	defer terminateContainer(t, pgC)

	db := openWhenReady(ctx, t, dsn)
	defer db.Close()
	require.NoError(t, RunMigrations(dsn))

	_, err := db.ExecContext(ctx, `INSERT INTO trucks (id, name, type, capacity_kg, filled_capacity, base_price, price_per_km, price_per_kg)
		VALUES ('truck-1', 'Tata 407', 'medium', 80, 0, 10, 5, 2)`)
	require.NoError(t, err)

	capacity := NewCapacityRepository(db)

	const workers = 20
	var (
		wg       sync.WaitGroup
		accepted atomic.Int32
		rejected atomic.Int32
		mu       sync.Mutex
		held     []string
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := &domain.Reservation{
				ID:        uuid.NewString(),
				TruckID:   "truck-1",
				WeightKg:  50,
				CreatedAt: time.Now().UTC(),
			}
			err := capacity.Reserve(ctx, res)
			switch {
			case err == nil:
				accepted.Add(1)
				mu.Lock()
				held = append(held, res.ID)
				mu.Unlock()
			case assert.ErrorIs(t, err, repository.ErrInsufficientCapacity):
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, accepted.Load())
	assert.EqualValues(t, workers-1, rejected.Load())

	snapshot, err := capacity.Capacity(ctx, "truck-1")
	require.NoError(t, err)
	assert.Equal(t, 50.0, snapshot.FilledKg)

	require.Len(t, held, 1)
	released, err := capacity.Release(ctx, held[0])
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusReleased, released.Status)

	_, err = capacity.Release(ctx, held[0])
	assert.ErrorIs(t, err, repository.ErrAlreadyReleased)

	snapshot, err = capacity.Capacity(ctx, "truck-1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, snapshot.FilledKg)

	_, err = db.ExecContext(ctx, `UPDATE trucks SET available = FALSE WHERE id = 'truck-1'`)
	require.NoError(t, err)
	err = capacity.Reserve(ctx, &domain.Reservation{ID: uuid.NewString(), TruckID: "truck-1", WeightKg: 1, CreatedAt: time.Now().UTC()})
	assert.ErrorIs(t, err, repository.ErrUnavailable)
}

func startPostgres(ctx context.Context, t *testing.T) (testcontainers.Container, string) {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16",
		Env:          map[string]string{"POSTGRES_PASSWORD": "postgres", "POSTGRES_USER": "postgres", "POSTGRES_DB": "freight"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://postgres:postgres@%s:%s/freight?sslmode=disable", host, mappedPort.Port())
	return container, dsn
}

func openWhenReady(ctx context.Context, t *testing.T, dsn string) *sql.DB {
	t.Helper()

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)

	for {
		if err := db.PingContext(ctx); err == nil {
			return db
		}
		select {
		case <-ctx.Done():
			t.Fatalf("postgres not ready: %v", ctx.Err())
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func terminateContainer(t *testing.T, c testcontainers.Container) {
	t.Helper()
	terminateCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, c.Terminate(terminateCtx))
}
