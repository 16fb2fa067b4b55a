package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taxitap/internal/middleware"
	"taxitap/internal/service"
)

// TripHandler handles HTTP requests for trips.
type TripHandler struct {
	tripService *service.TripService
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(tripService *service.TripService) *TripHandler {
	return &TripHandler{tripService: tripService}
}

// StartTripRequest is the HTTP request body for starting a trip. The caller
// is the driver and must be acting as one.
type StartTripRequest struct {
	PassengerID string `json:"passenger_id,omitempty"`
	Reservation bool   `json:"reservation"`
}

// StartTripResponse is the HTTP response for starting a trip.
type StartTripResponse struct {
	TripID      string  `json:"trip_id"`
	DriverID    string  `json:"driver_id"`
	PassengerID string  `json:"passenger_id,omitempty"`
	RideID      string  `json:"ride_id,omitempty"`
	StartTime   string  `json:"start_time"`
	Fare        float64 `json:"fare"`
	Reservation bool    `json:"reservation"`
}

// EndTripRequest is the HTTP request body for ending a trip.
type EndTripRequest struct {
	PassengerID string `json:"passenger_id,omitempty"`
}

// EndTripResponse is the HTTP response for ending a trip.
type EndTripResponse struct {
	TripID  string  `json:"trip_id"`
	EndTime string  `json:"end_time"`
	Fare    float64 `json:"fare"`
}

// StartTrip handles POST /v1/trips/start
func (h *TripHandler) StartTrip(c *gin.Context) {
	var req StartTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	result, err := h.tripService.StartDriverTrip(c.Request.Context(), service.StartTripRequest{
		PassengerID: req.PassengerID,
		DriverID:    middleware.UserID(c),
		Reservation: req.Reservation,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, StartTripResponse{
		TripID:      result.Trip.ID,
		DriverID:    result.Trip.DriverID,
		PassengerID: result.Trip.PassengerID,
		RideID:      result.RideID,
		StartTime:   formatTime(result.Trip.StartTime),
		Fare:        result.Trip.Fare,
		Reservation: result.Trip.Reservation,
	})
}

// EndTrip handles POST /v1/trips/end. The passenger defaults to the caller.
func (h *TripHandler) EndTrip(c *gin.Context) {
	var req EndTripRequest
	_ = c.ShouldBindJSON(&req)

	result, err := h.tripService.EndTrip(c.Request.Context(), middleware.UserID(c), req.PassengerID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, EndTripResponse{
		TripID:  result.TripID,
		EndTime: formatTime(result.EndTime),
		Fare:    result.Fare,
	})
}
