package service

import (
	"math/rand"
	"sync"
	"time"
)

// acceptThreshold is the probability that a counter-offer is accepted.
const acceptThreshold = 0.5

// RandomSource yields uniform draws in [0, 1). *rand.Rand satisfies it.
type RandomSource interface {
	Float64() float64
}

// NegotiationResolver decides counter-offers with one random draw each.
// It is safe for concurrent use.
type NegotiationResolver struct {
	mu  sync.Mutex
	src RandomSource
}

// NewNegotiationResolver creates a resolver drawing from src. A nil src uses
// a time-seeded generator.
func NewNegotiationResolver(src RandomSource) *NegotiationResolver {
	if src == nil {
		src = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &NegotiationResolver{src: src}
}

// NewSeededNegotiationResolver creates a resolver whose outcomes repeat for
// the same seed.
func NewSeededNegotiationResolver(seed int64) *NegotiationResolver {
	return NewNegotiationResolver(rand.New(rand.NewSource(seed)))
}

// Resolve accepts the counter-offer when the draw is below one half. The
// final price is the counter-offer when accepted and the estimate otherwise.
// The size of the offer does not affect the outcome.
func (r *NegotiationResolver) Resolve(estimatedPrice, counterOffer float64) (finalPrice float64, accepted bool, err error) {
	if !isPositiveFinite(estimatedPrice) {
		return 0, false, ErrInvalidEstimate
	}
	if !isPositiveFinite(counterOffer) {
		return 0, false, ErrInvalidCounterOffer
	}

	r.mu.Lock()
	draw := r.src.Float64()
	r.mu.Unlock()

	if draw < acceptThreshold {
		return counterOffer, true, nil
	}
	return estimatedPrice, false, nil
}
