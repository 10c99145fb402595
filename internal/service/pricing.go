package service

import (
	"math"

	"github.com/shopspring/decimal"

	"freight/internal/domain"
)

// EstimatePrice returns base + perKm*distanceKm + perKg*weightKg rounded
// half-up to a whole currency unit. The sum is computed in decimal so that
// binary float error cannot move a value across a .5 boundary.
func EstimatePrice(rates domain.Rates, distanceKm, weightKg float64) (float64, error) {
	if !isNonNegativeFinite(rates.BasePrice) {
		return 0, ErrInvalidBasePrice
	}
	if !isNonNegativeFinite(rates.PricePerKm) {
		return 0, ErrInvalidPricePerKm
	}
	if !isNonNegativeFinite(rates.PricePerKg) {
		return 0, ErrInvalidPricePerKg
	}
	if !isPositiveFinite(distanceKm) {
		return 0, ErrInvalidDistance
	}
	if !isPositiveFinite(weightKg) {
		return 0, ErrInvalidWeight
	}

	price := decimal.NewFromFloat(rates.BasePrice).
		Add(decimal.NewFromFloat(rates.PricePerKm).Mul(decimal.NewFromFloat(distanceKm))).
		Add(decimal.NewFromFloat(rates.PricePerKg).Mul(decimal.NewFromFloat(weightKg)))

	// Round is half away from zero, which is half-up for non-negative values.
	return price.Round(0).InexactFloat64(), nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func isPositiveFinite(v float64) bool {
	return isFinite(v) && v > 0
}

func isNonNegativeFinite(v float64) bool {
	return isFinite(v) && v >= 0
}

// Weights and distances are stored as NUMERIC(12,3).
const (
	quantityScale = 3
	maxQuantity   = 1e9
)

// isStorableQuantity reports whether v survives storage without rounding:
// below maxQuantity and with at most quantityScale decimal places.
func isStorableQuantity(v float64) bool {
	if v >= maxQuantity {
		return false
	}
	d := decimal.NewFromFloat(v)
	return d.Equal(d.Truncate(quantityScale))
}
