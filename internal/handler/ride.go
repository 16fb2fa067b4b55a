package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taxitap/internal/middleware"
	"taxitap/internal/service"
)

// RideHandler handles HTTP requests for rides.
type RideHandler struct {
	rideService *service.RideService
}

// NewRideHandler creates a new RideHandler.
func NewRideHandler(rideService *service.RideService) *RideHandler {
	return &RideHandler{rideService: rideService}
}

// RequestRideRequest is the HTTP request body for requesting a ride.
type RequestRideRequest struct {
	DriverID      string   `json:"driver_id,omitempty"`
	RouteID       string   `json:"route_id,omitempty"`
	Pickup        string   `json:"pickup"`
	Destination   string   `json:"destination"`
	EstimatedFare *float64 `json:"estimated_fare,omitempty"`
}

// ReasonRequest is the optional body of decline and cancel.
type ReasonRequest struct {
	Reason string `json:"reason,omitempty"`
}

// VerifyPinRequest is the HTTP request body for PIN verification.
type VerifyPinRequest struct {
	Pin string `json:"pin"`
}

// VerifyPinResponse is the outcome of a PIN check. A wrong PIN is a 200 with success=false.
type VerifyPinResponse struct {
	Success           bool          `json:"success"`
	Message           string        `json:"message"`
	AttemptsRemaining int           `json:"attempts_remaining"`
	Ride              *RideResponse `json:"ride,omitempty"`
	TripID            string        `json:"trip_id,omitempty"`
}

// RegeneratePinResponse carries the new PIN.
type RegeneratePinResponse struct {
	Success bool         `json:"success"`
	NewPin  string       `json:"new_pin"`
	Ride    RideResponse `json:"ride"`
}

// ConfirmPaymentRequest is the HTTP request body for payment confirmation.
type ConfirmPaymentRequest struct {
	Paid *bool `json:"paid"`
}

// RequestRide handles POST /v1/rides
func (h *RideHandler) RequestRide(c *gin.Context) {
	var req RequestRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	userID := middleware.UserID(c)
	ride, err := h.rideService.RequestRide(c.Request.Context(), service.RequestRideRequest{
		PassengerID:   userID,
		DriverID:      req.DriverID,
		RouteID:       req.RouteID,
		Pickup:        req.Pickup,
		Destination:   req.Destination,
		EstimatedFare: req.EstimatedFare,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, newRideResponse(ride, userID))
}

// GetRide handles GET /v1/rides/:id
func (h *RideHandler) GetRide(c *gin.Context) {
	ride, err := h.rideService.GetRide(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newRideResponse(ride, middleware.UserID(c)))
}

// ListRides handles GET /v1/rides?as=passenger|driver
func (h *RideHandler) ListRides(c *gin.Context) {
	userID := middleware.UserID(c)
	ctx := c.Request.Context()

	var err error
	var resp []RideResponse
	switch as := c.DefaultQuery("as", "passenger"); as {
	case "passenger":
		rides, lerr := h.rideService.ListPassengerRides(ctx, userID)
		resp, err = newRideResponses(rides, userID), lerr
	case "driver":
		rides, lerr := h.rideService.ListDriverRides(ctx, userID)
		resp, err = newRideResponses(rides, userID), lerr
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "as must be passenger or driver"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"rides": resp, "count": len(resp)})
}

// AcceptRide handles POST /v1/rides/:id/accept
func (h *RideHandler) AcceptRide(c *gin.Context) {
	userID := middleware.UserID(c)
	ride, err := h.rideService.AcceptRide(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newRideResponse(ride, userID))
}

// RegeneratePin handles POST /v1/rides/:id/pin/regenerate
func (h *RideHandler) RegeneratePin(c *gin.Context) {
	userID := middleware.UserID(c)
	ctx := c.Request.Context()

	ride, err := h.rideService.GetRide(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if !ride.IsParticipant(userID) {
		respondError(c, service.ErrNotRideParticipant)
		return
	}

	result, err := h.rideService.RegeneratePin(ctx, ride.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, RegeneratePinResponse{
		Success: result.Success,
		NewPin:  result.NewPin,
		Ride:    newRideResponse(result.Ride, userID),
	})
}

// VerifyDriverPin handles POST /v1/rides/:id/pin/verify-driver; the driver
// enters the PIN the passenger shows.
func (h *RideHandler) VerifyDriverPin(c *gin.Context) {
	h.verifyPin(c, service.PinByDriver)
}

// VerifyPin handles POST /v1/rides/:id/pin/verify; the passenger enters the
// PIN the driver shows.
func (h *RideHandler) VerifyPin(c *gin.Context) {
	h.verifyPin(c, service.PinByPassenger)
}

func (h *RideHandler) verifyPin(c *gin.Context, party service.PinParty) {
	var req VerifyPinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	userID := middleware.UserID(c)
	result, err := h.rideService.VerifyPin(c.Request.Context(), service.VerifyPinRequest{
		RideID:      c.Param("id"),
		RequesterID: userID,
		EnteredPin:  req.Pin,
		Party:       party,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	resp := VerifyPinResponse{
		Success:           result.Success,
		Message:           result.Message,
		AttemptsRemaining: result.AttemptsRemaining,
		TripID:            result.TripID,
	}
	if result.Ride != nil {
		ride := newRideResponse(result.Ride, userID)
		resp.Ride = &ride
	}
	respondJSON(c, http.StatusOK, resp)
}

// DeclineRide handles POST /v1/rides/:id/decline
func (h *RideHandler) DeclineRide(c *gin.Context) {
	var req ReasonRequest
	_ = c.ShouldBindJSON(&req)

	userID := middleware.UserID(c)
	ride, err := h.rideService.DeclineRide(c.Request.Context(), c.Param("id"), userID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newRideResponse(ride, userID))
}

// CancelRide handles POST /v1/rides/:id/cancel
func (h *RideHandler) CancelRide(c *gin.Context) {
	var req ReasonRequest
	_ = c.ShouldBindJSON(&req)

	userID := middleware.UserID(c)
	ride, err := h.rideService.CancelRide(c.Request.Context(), c.Param("id"), userID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newRideResponse(ride, userID))
}

// CompleteRide handles POST /v1/rides/:id/complete (driver)
func (h *RideHandler) CompleteRide(c *gin.Context) {
	userID := middleware.UserID(c)
	ride, err := h.rideService.CompleteRide(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newRideResponse(ride, userID))
}

// EndRide handles POST /v1/rides/:id/end (passenger)
func (h *RideHandler) EndRide(c *gin.Context) {
	userID := middleware.UserID(c)
	ride, err := h.rideService.EndRide(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newRideResponse(ride, userID))
}
