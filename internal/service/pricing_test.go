package service

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freight/internal/domain"
)

func TestEstimatePrice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		rates    domain.Rates
		distance float64
		weight   float64
		want     float64
	}{
		{"linear sum", domain.Rates{BasePrice: 10, PricePerKm: 5, PricePerKg: 2}, 20, 100, 310},
		{"half rounds up", domain.Rates{PricePerKm: 0.25}, 2, 1, 1},
		{"two and a half rounds up", domain.Rates{BasePrice: 2, PricePerKm: 0.25}, 2, 10, 3},
		{"below half rounds down", domain.Rates{BasePrice: 1, PricePerKg: 0.2}, 1, 2, 1},
		{"fractional rates", domain.Rates{BasePrice: 0.1, PricePerKm: 0.2, PricePerKg: 0.2}, 1, 1, 1},
		{"zero rates", domain.Rates{}, 5, 5, 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := EstimatePrice(tt.rates, tt.distance, tt.weight)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEstimatePrice_Rejects(t *testing.T) {
	t.Parallel()

	valid := domain.Rates{BasePrice: 10, PricePerKm: 5, PricePerKg: 2}
	tests := []struct {
		name     string
		rates    domain.Rates
		distance float64
		weight   float64
		want     error
	}{
		{"zero distance", valid, 0, 10, ErrInvalidDistance},
		{"negative distance", valid, -1, 10, ErrInvalidDistance},
		{"nan distance", valid, math.NaN(), 10, ErrInvalidDistance},
		{"zero weight", valid, 10, 0, ErrInvalidWeight},
		{"infinite weight", valid, 10, math.Inf(1), ErrInvalidWeight},
		{"negative base", domain.Rates{BasePrice: -1}, 10, 10, ErrInvalidBasePrice},
		{"negative per km", domain.Rates{PricePerKm: -1}, 10, 10, ErrInvalidPricePerKm},
		{"nan per kg", domain.Rates{PricePerKg: math.NaN()}, 10, 10, ErrInvalidPricePerKg},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := EstimatePrice(tt.rates, tt.distance, tt.weight)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestEstimatePrice_Deterministic(t *testing.T) {
	t.Parallel()

	rates := domain.Rates{BasePrice: 12.5, PricePerKm: 3.3, PricePerKg: 0.7}
	first, err := EstimatePrice(rates, 17.3, 42.1)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		got, err := EstimatePrice(rates, 17.3, 42.1)
		require.NoError(t, err)
		require.Equal(t, first, got)
	}
}
