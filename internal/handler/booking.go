package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"freight/internal/domain"
	"freight/internal/middleware"
	"freight/internal/service"
)

// BookingHandler handles HTTP requests for bookings.
type BookingHandler struct {
	bookingService *service.BookingService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(bookingService *service.BookingService) *BookingHandler {
	return &BookingHandler{bookingService: bookingService}
}

// CreateBookingRequest is the HTTP request body for creating a booking. The
// caller is taken from the access token, never from the body.
type CreateBookingRequest struct {
	TruckID         string   `json:"truck_id"`
	PickupLocation  string   `json:"pickup_location"`
	DropoffLocation string   `json:"dropoff_location"`
	DistanceKm      float64  `json:"distance_km"`
	WeightKg        float64  `json:"weight_kg"`
	Mode            string   `json:"mode,omitempty"` // direct (default) or negotiated
	CounterOffer    *float64 `json:"counter_offer,omitempty"`
}

// BookingResponse is the HTTP representation of a booking.
type BookingResponse struct {
	ID                  string   `json:"id"`
	UserID              string   `json:"user_id"`
	TruckID             string   `json:"truck_id"`
	ReservationID       string   `json:"reservation_id"`
	PickupLocation      string   `json:"pickup_location"`
	DropoffLocation     string   `json:"dropoff_location"`
	DistanceKm          float64  `json:"distance_km"`
	CargoWeightKg       float64  `json:"cargo_weight"`
	EstimatedPrice      float64  `json:"estimated_price"`
	FinalPrice          float64  `json:"final_price"`
	Mode                string   `json:"mode"`
	CounterOffer        *float64 `json:"counter_offer,omitempty"`
	NegotiationAccepted *bool    `json:"negotiation_accepted,omitempty"`
	Status              string   `json:"status"`
	CreatedAt           string   `json:"created_at"`
	UpdatedAt           string   `json:"updated_at"`
}

func toBookingResponse(b *domain.Booking) BookingResponse {
	return BookingResponse{
		ID:                  b.ID,
		UserID:              b.UserID,
		TruckID:             b.TruckID,
		ReservationID:       b.ReservationID,
		PickupLocation:      b.PickupLocation,
		DropoffLocation:     b.DropoffLocation,
		DistanceKm:          b.DistanceKm,
		CargoWeightKg:       b.CargoWeightKg,
		EstimatedPrice:      b.EstimatedPrice,
		FinalPrice:          b.FinalPrice,
		Mode:                string(b.Mode),
		CounterOffer:        b.CounterOffer,
		NegotiationAccepted: b.NegotiationAccepted,
		Status:              string(b.Status),
		CreatedAt:           b.CreatedAt.Format(time.RFC3339),
		UpdatedAt:           b.UpdatedAt.Format(time.RFC3339),
	}
}

// CreateBooking handles POST /v1/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	booking, err := h.bookingService.CreateBooking(c.Request.Context(), service.CreateBookingRequest{
		TruckID:         req.TruckID,
		UserID:          middleware.UserID(c),
		PickupLocation:  req.PickupLocation,
		DropoffLocation: req.DropoffLocation,
		DistanceKm:      req.DistanceKm,
		WeightKg:        req.WeightKg,
		Mode:            domain.BookingMode(req.Mode),
		CounterOffer:    req.CounterOffer,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toBookingResponse(booking))
}

// ListBookings handles GET /v1/bookings?status=
func (h *BookingHandler) ListBookings(c *gin.Context) {
	bookings, err := h.bookingService.ListBookings(
		c.Request.Context(),
		middleware.UserID(c),
		domain.BookingStatus(c.Query("status")),
	)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		response = append(response, toBookingResponse(b))
	}
	respondJSON(c, http.StatusOK, response)
}

// GetBooking handles GET /v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	booking, err := h.bookingService.GetBooking(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

// CompleteBooking handles POST /v1/bookings/:id/complete
func (h *BookingHandler) CompleteBooking(c *gin.Context) {
	booking, err := h.bookingService.CompleteBooking(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

// CancelBooking handles POST /v1/bookings/:id/cancel
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	booking, err := h.bookingService.CancelBooking(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}
