package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"freight/internal/app"
	"freight/internal/auth"
	"freight/internal/config"
	"freight/internal/handler"
	"freight/internal/metrics"
	internalRedis "freight/internal/redis"
	"freight/internal/repository"
	"freight/internal/repository/memory"
	"freight/internal/repository/postgres"
	"freight/internal/service"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize New Relic first so the database driver can be instrumented.
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Printf("failed to initialize New Relic: %v", err)
		} else {
			log.Printf("New Relic enabled: app=%s", cfg.NewRelic.AppName)
		}
	}

	var db *sql.DB
	if cfg.Database.Driver == config.DriverPostgres {
		db, err = app.NewDatabase(ctx, cfg.Database, nrApp)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		defer db.Close()
		log.Println("Connected to PostgreSQL")
	} else {
		log.Println("Using in-memory storage; data is lost on restart")
	}

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Connected to Redis")

	publisher, publisherCloser, err := app.NewEventPublisher(cfg.AMQP)
	if err != nil {
		log.Fatalf("failed to initialize event publisher: %v", err)
	}
	defer publisherCloser.Close()

	metrics.Register()

	server, err := wireServer(ctx, db, redisClient, publisher, nrApp, cfg)
	if err != nil {
		log.Fatalf("failed to wire server: %v", err)
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
	}
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	log.Println("Server exited")
}

type repositories struct {
	trucks   repository.TruckRepository
	capacity repository.CapacityRepository
	bookings repository.BookingRepository
}

func newRepositories(ctx context.Context, db *sql.DB, seedFile string, locations *internalRedis.LocationStore) (repositories, error) {
	if db == nil {
		fleet := memory.NewFleet()
		if seedFile != "" {
			if err := seedFleet(ctx, fleet, seedFile, locations); err != nil {
				return repositories{}, err
			}
		}
		return repositories{trucks: fleet, capacity: fleet, bookings: memory.NewBookingStore()}, nil
	}
	return repositories{
		trucks:   postgres.NewTruckRepository(db),
		capacity: postgres.NewCapacityRepository(db),
		bookings: postgres.NewBookingRepository(db),
	}, nil
}

func seedFleet(ctx context.Context, fleet *memory.Fleet, path string, locations *internalRedis.LocationStore) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	trucks, err := fleet.LoadTrucks(f)
	if err != nil {
		return fmt.Errorf("load seed file: %w", err)
	}
	for _, t := range trucks {
		if !t.HasLocation {
			continue
		}
		if err := locations.UpdateLocation(ctx, t.ID, t.Latitude, t.Longitude); err != nil {
			log.Printf("failed to index seeded truck %s: %v", t.ID, err)
		}
	}
	log.Printf("Seeded %d trucks from %s", len(trucks), path)
	return nil
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(
	ctx context.Context,
	db *sql.DB,
	redisClient *redis.Client,
	publisher service.EventPublisher,
	nrApp *newrelic.Application,
	cfg *config.Config,
) (*http.Server, error) {
	locationStore := internalRedis.NewLocationStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)

	repos, err := newRepositories(ctx, db, cfg.Database.SeedFile, locationStore)
	if err != nil {
		return nil, err
	}

	var negotiator *service.NegotiationResolver
	if cfg.Booking.NegotiationSeed != 0 {
		negotiator = service.NewSeededNegotiationResolver(cfg.Booking.NegotiationSeed)
	} else {
		negotiator = service.NewNegotiationResolver(nil)
	}

	ledger := service.NewCapacityLedger(repos.capacity, cacheStore)
	truckService := service.NewTruckService(repos.trucks, cacheStore, locationStore)
	bookingService := service.NewBookingService(
		repos.trucks,
		repos.bookings,
		ledger,
		negotiator,
		publisher,
		service.BookingConfig{
			WriteTimeout:         cfg.Booking.WriteTimeout,
			CompensationAttempts: cfg.Booking.CompensationAttempts,
			CompensationBackoff:  cfg.Booking.CompensationBackoff,
		},
	)

	router := app.NewRouter(app.RouterDeps{
		TruckHandler:   handler.NewTruckHandler(truckService, ledger),
		BookingHandler: handler.NewBookingHandler(bookingService),
		Verifier:       auth.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.Audience),
		RedisClient:    redisClient,
		NewRelicApp:    nrApp,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, nil
}
