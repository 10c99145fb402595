package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"freight/internal/domain"
	"freight/internal/service"
)

// TruckHandler handles HTTP requests for the fleet.
type TruckHandler struct {
	truckService *service.TruckService
	ledger       *service.CapacityLedger
}

// NewTruckHandler creates a new TruckHandler.
func NewTruckHandler(truckService *service.TruckService, ledger *service.CapacityLedger) *TruckHandler {
	return &TruckHandler{
		truckService: truckService,
		ledger:       ledger,
	}
}

// TruckResponse is the HTTP representation of a truck.
type TruckResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	OwnerName   string   `json:"owner_name"`
	PhoneNumber string   `json:"phone_number"`
	Type        string   `json:"type"`
	ImageURL    string   `json:"image_url,omitempty"`
	CapacityKg  float64  `json:"capacity_kg"`
	FilledKg    float64  `json:"filled_capacity"`
	RemainingKg float64  `json:"remaining_kg"`
	BasePrice   float64  `json:"base_price"`
	PricePerKm  float64  `json:"price_per_km"`
	PricePerKg  float64  `json:"price_per_kg"`
	Available   bool     `json:"availability_status"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	DistanceKm  *float64 `json:"distance_km,omitempty"`
}

func toTruckResponse(t *domain.Truck) TruckResponse {
	resp := TruckResponse{
		ID:          t.ID,
		Name:        t.Name,
		OwnerName:   t.OwnerName,
		PhoneNumber: t.PhoneNumber,
		Type:        t.Type,
		ImageURL:    t.ImageURL,
		CapacityKg:  t.CapacityKg,
		FilledKg:    t.FilledKg,
		RemainingKg: t.RemainingKg(),
		BasePrice:   t.BasePrice,
		PricePerKm:  t.PricePerKm,
		PricePerKg:  t.PricePerKg,
		Available:   t.Available,
	}
	if t.HasLocation {
		lat, lng := t.Latitude, t.Longitude
		resp.Latitude = &lat
		resp.Longitude = &lng
	}
	return resp
}

// EstimateRequest is the HTTP request body for a price estimate.
type EstimateRequest struct {
	DistanceKm float64 `json:"distance_km"`
	WeightKg   float64 `json:"weight_kg"`
}

// EstimateResponse is the HTTP response for a price estimate.
type EstimateResponse struct {
	TruckID        string  `json:"truck_id"`
	DistanceKm     float64 `json:"distance_km"`
	WeightKg       float64 `json:"weight_kg"`
	EstimatedPrice float64 `json:"estimated_price"`
	RemainingKg    float64 `json:"remaining_kg"`
	Fits           bool    `json:"fits"`
}

// CapacityResponse is the HTTP response for a capacity snapshot.
type CapacityResponse struct {
	TruckID     string  `json:"truck_id"`
	CapacityKg  float64 `json:"capacity_kg"`
	FilledKg    float64 `json:"filled_capacity"`
	RemainingKg float64 `json:"remaining_kg"`
	Available   bool    `json:"availability_status"`
	ObservedAt  string  `json:"observed_at"`
}

// UpdateLocationRequest is the HTTP request body for a position report.
type UpdateLocationRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ListAvailable handles GET /v1/trucks?type=
func (h *TruckHandler) ListAvailable(c *gin.Context) {
	trucks, err := h.truckService.ListAvailableTrucks(c.Request.Context(), c.Query("type"))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]TruckResponse, 0, len(trucks))
	for _, t := range trucks {
		response = append(response, toTruckResponse(t))
	}
	respondJSON(c, http.StatusOK, response)
}

// ListTypes handles GET /v1/trucks/types
func (h *TruckHandler) ListTypes(c *gin.Context) {
	types, err := h.truckService.ListTruckTypes(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if types == nil {
		types = []string{}
	}
	respondJSON(c, http.StatusOK, gin.H{"types": types})
}

// GetTruck handles GET /v1/trucks/:id
func (h *TruckHandler) GetTruck(c *gin.Context) {
	truck, err := h.truckService.GetTruck(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toTruckResponse(truck))
}

// GetCapacity handles GET /v1/trucks/:id/capacity
func (h *TruckHandler) GetCapacity(c *gin.Context) {
	capacity, err := h.ledger.Capacity(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, CapacityResponse{
		TruckID:     capacity.TruckID,
		CapacityKg:  capacity.TotalKg,
		FilledKg:    capacity.FilledKg,
		RemainingKg: capacity.RemainingKg(),
		Available:   capacity.Available,
		ObservedAt:  capacity.ObservedAt.Format(time.RFC3339),
	})
}

// Estimate handles POST /v1/trucks/:id/estimate
func (h *TruckHandler) Estimate(c *gin.Context) {
	var req EstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	est, err := h.truckService.EstimateForTruck(c.Request.Context(), c.Param("id"), req.DistanceKm, req.WeightKg)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, EstimateResponse{
		TruckID:        est.Truck.ID,
		DistanceKm:     est.DistanceKm,
		WeightKg:       est.WeightKg,
		EstimatedPrice: est.Price,
		RemainingKg:    est.RemainingKg,
		Fits:           est.Fits,
	})
}

// UpdateLocation handles POST /v1/trucks/:id/location
func (h *TruckHandler) UpdateLocation(c *gin.Context) {
	var req UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	if err := h.truckService.UpdateTruckLocation(c.Request.Context(), c.Param("id"), req.Lat, req.Lng); err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"status": "location updated"})
}

// FindNearby handles GET /v1/trucks/nearby?lat=&lng=&radius_km=
func (h *TruckHandler) FindNearby(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil {
		badRequest(c, "lat and lng query parameters are required")
		return
	}

	radius := 10.0
	if raw := c.Query("radius_km"); raw != "" {
		r, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			badRequest(c, "radius_km must be a number")
			return
		}
		radius = r
	}

	nearby, err := h.truckService.FindNearbyTrucks(c.Request.Context(), lat, lng, radius)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]TruckResponse, 0, len(nearby))
	for _, n := range nearby {
		resp := toTruckResponse(n.Truck)
		d := n.DistanceKm
		resp.DistanceKm = &d
		response = append(response, resp)
	}
	respondJSON(c, http.StatusOK, response)
}
