package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ReadsEnvironment(t *testing.T) {
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("BOOKING_WRITE_TIMEOUT", "750ms")
	t.Setenv("BOOKING_COMPENSATION_ATTEMPTS", "5")
	t.Setenv("BOOKING_NEGOTIATION_SEED", "42")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:8081, https://app.example.com,")
	t.Setenv("AUTH_JWT_SECRET", "secret")

	cfg := Load()

	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, 750*time.Millisecond, cfg.Booking.WriteTimeout)
	assert.Equal(t, 5, cfg.Booking.CompensationAttempts)
	assert.Equal(t, int64(42), cfg.Booking.NegotiationSeed)
	assert.Equal(t, []string{"http://localhost:8081", "https://app.example.com"}, cfg.CORS.AllowedOrigins)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FallsBackOnMalformedValues(t *testing.T) {
	t.Setenv("BOOKING_WRITE_TIMEOUT", "soon")
	t.Setenv("BOOKING_COMPENSATION_ATTEMPTS", "many")

	cfg := Load()

	assert.Equal(t, 5*time.Second, cfg.Booking.WriteTimeout)
	assert.Equal(t, 3, cfg.Booking.CompensationAttempts)
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{Driver: DriverPostgres},
		Booking:  BookingConfig{CompensationAttempts: 1},
	}
	assert.Error(t, cfg.Validate(), "missing secret")

	cfg.Auth.JWTSecret = "secret"
	assert.NoError(t, cfg.Validate())

	cfg.Database.Driver = "mysql"
	assert.Error(t, cfg.Validate())
}
