package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taxitap/internal/middleware"
	"taxitap/internal/service"
)

// PaymentHandler handles payment confirmation and ride feedback.
type PaymentHandler struct {
	rideService     *service.RideService
	feedbackService *service.FeedbackService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(rideService *service.RideService, feedbackService *service.FeedbackService) *PaymentHandler {
	return &PaymentHandler{rideService: rideService, feedbackService: feedbackService}
}

// FeedbackRequest is the HTTP request body for rating a ride.
type FeedbackRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

// FeedbackResponse is the HTTP representation of one rating.
type FeedbackResponse struct {
	ID          string `json:"id"`
	RideID      string `json:"ride_id"`
	PassengerID string `json:"passenger_id"`
	DriverID    string `json:"driver_id"`
	Rating      int    `json:"rating"`
	Comment     string `json:"comment,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// ConfirmPayment handles POST /v1/rides/:id/payment. The id may be a ride id
// or the id of the ride's trip.
func (h *PaymentHandler) ConfirmPayment(c *gin.Context) {
	var req ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Paid == nil {
		badRequest(c)
		return
	}

	userID := middleware.UserID(c)
	ride, err := h.rideService.ConfirmPayment(c.Request.Context(), c.Param("id"), userID, *req.Paid)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newRideResponse(ride, userID))
}

// SubmitFeedback handles POST /v1/rides/:id/feedback
func (h *PaymentHandler) SubmitFeedback(c *gin.Context) {
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	fb, err := h.feedbackService.SubmitFeedback(c.Request.Context(), service.SubmitFeedbackRequest{
		RideID:      c.Param("id"),
		PassengerID: middleware.UserID(c),
		Rating:      req.Rating,
		Comment:     req.Comment,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, FeedbackResponse{
		ID:          fb.ID,
		RideID:      fb.RideID,
		PassengerID: fb.PassengerID,
		DriverID:    fb.DriverID,
		Rating:      fb.Rating,
		Comment:     fb.Comment,
		CreatedAt:   formatTime(fb.CreatedAt),
	})
}

// ListDriverFeedback handles GET /v1/drivers/:id/feedback
func (h *PaymentHandler) ListDriverFeedback(c *gin.Context) {
	result, err := h.feedbackService.ListDriverFeedback(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]FeedbackResponse, 0, len(result.Items))
	for _, fb := range result.Items {
		items = append(items, FeedbackResponse{
			ID:          fb.ID,
			RideID:      fb.RideID,
			PassengerID: fb.PassengerID,
			DriverID:    fb.DriverID,
			Rating:      fb.Rating,
			Comment:     fb.Comment,
			CreatedAt:   formatTime(fb.CreatedAt),
		})
	}

	respondJSON(c, http.StatusOK, gin.H{
		"feedback":       items,
		"count":          len(items),
		"average_rating": result.AverageRating,
	})
}
