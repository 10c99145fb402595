package memory

import (
	"encoding/json"
	"fmt"
	"io"

	"freight/internal/domain"
)

// seedTruck is the JSON shape of a truck in a seed file. Field names follow
// the fleet table columns.
type seedTruck struct {
	ID          string   `json:"truck_id"`
	Name        string   `json:"truck_name"`
	OwnerName   string   `json:"owner_name"`
	PhoneNumber string   `json:"phone_number"`
	Type        string   `json:"type"`
	ImageURL    string   `json:"image"`
	CapacityKg  float64  `json:"capacity_kg"`
	FilledKg    float64  `json:"filled_capacity"`
	BasePrice   float64  `json:"base_price"`
	PricePerKm  float64  `json:"price_per_km"`
	PricePerKg  float64  `json:"price_per_kg"`
	Available   *bool    `json:"availability_status"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

// LoadTrucks reads a JSON array of trucks and adds them to the fleet. It
// returns the loaded trucks so callers can index their positions.
func (s *Fleet) LoadTrucks(r io.Reader) ([]*domain.Truck, error) {
	var seeds []seedTruck
	if err := json.NewDecoder(r).Decode(&seeds); err != nil {
		return nil, fmt.Errorf("decode trucks: %w", err)
	}

	trucks := make([]*domain.Truck, 0, len(seeds))
	for _, st := range seeds {
		if st.ID == "" {
			return nil, fmt.Errorf("truck %q: truck_id is required", st.Name)
		}
		t := &domain.Truck{
			ID:          st.ID,
			Name:        st.Name,
			OwnerName:   st.OwnerName,
			PhoneNumber: st.PhoneNumber,
			Type:        st.Type,
			ImageURL:    st.ImageURL,
			CapacityKg:  st.CapacityKg,
			FilledKg:    st.FilledKg,
			BasePrice:   st.BasePrice,
			PricePerKm:  st.PricePerKm,
			PricePerKg:  st.PricePerKg,
			Available:   st.Available == nil || *st.Available,
		}
		if st.Latitude != nil && st.Longitude != nil {
			t.Latitude, t.Longitude, t.HasLocation = *st.Latitude, *st.Longitude, true
		}
		if err := s.PutTruck(t); err != nil {
			return nil, err
		}
		trucks = append(trucks, t)
	}
	return trucks, nil
}
