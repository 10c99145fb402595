package domain

import "time"

// Truck is a vehicle offering cargo capacity for booking.
type Truck struct {
	ID          string
	Name        string
	OwnerName   string
	PhoneNumber string
	Type        string
	ImageURL    string

	CapacityKg float64
	FilledKg   float64

	BasePrice  float64
	PricePerKm float64
	PricePerKg float64

	Available bool

	// Last reported position. HasLocation is false until the fleet reports one.
	Latitude    float64
	Longitude   float64
	HasLocation bool

	UpdatedAt time.Time
}

// Rates holds the pricing parameters of a truck.
type Rates struct {
	BasePrice  float64
	PricePerKm float64
	PricePerKg float64
}

// Rates returns the truck's pricing parameters.
func (t *Truck) Rates() Rates {
	return Rates{
		BasePrice:  t.BasePrice,
		PricePerKm: t.PricePerKm,
		PricePerKg: t.PricePerKg,
	}
}

// RemainingKg returns the uncommitted capacity of the truck.
func (t *Truck) RemainingKg() float64 {
	remaining := t.CapacityKg - t.FilledKg
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Capacity is a point-in-time snapshot of a truck's capacity ledger.
type Capacity struct {
	TruckID    string
	TotalKg    float64
	FilledKg   float64
	Available  bool
	ObservedAt time.Time
}

// RemainingKg returns total minus filled.
func (c Capacity) RemainingKg() float64 {
	remaining := c.TotalKg - c.FilledKg
	if remaining < 0 {
		return 0
	}
	return remaining
}
