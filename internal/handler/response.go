package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"freight/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	status, code := mapError(err)
	resp := ErrorResponse{Error: err.Error(), Code: code}

	var verr *service.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
	}

	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		log.Printf("[HTTP] %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		if status == http.StatusServiceUnavailable {
			resp.Error = "storage temporarily unavailable, please retry"
		}
	}
	c.JSON(status, resp)
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// badRequest rejects a malformed request body or query.
func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: "bad_request"})
}

// mapError maps service errors to an HTTP status and a stable error code.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, "validation_error"

	case errors.Is(err, service.ErrTruckNotFound):
		return http.StatusNotFound, "truck_not_found"
	case errors.Is(err, service.ErrBookingNotFound):
		return http.StatusNotFound, "booking_not_found"

	case errors.Is(err, service.ErrBookingNotOwned):
		return http.StatusForbidden, "forbidden"

	case errors.Is(err, service.ErrCapacityExceeded):
		return http.StatusConflict, "capacity_exceeded"
	case errors.Is(err, service.ErrTruckUnavailable):
		return http.StatusConflict, "truck_unavailable"
	case errors.Is(err, service.ErrInvalidStatusTransition):
		return http.StatusConflict, "invalid_status_transition"
	case errors.Is(err, service.ErrBookingStateConflict):
		return http.StatusConflict, "status_conflict"

	// Checked before persistence: a stranded reservation is not retryable.
	case errors.Is(err, service.ErrCompensation):
		return http.StatusInternalServerError, "compensation_failure"
	case errors.Is(err, service.ErrPersistence):
		return http.StatusServiceUnavailable, "persistence_failure"

	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
