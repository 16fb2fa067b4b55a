package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"taxitap/internal/domain"
	"taxitap/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	if code == http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(code, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

func badRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
}

// mapErrorToHTTPStatus maps service error kinds to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrSessionInactive):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// formatTime renders a timestamp as RFC 3339, or "" when unset.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// RideResponse is the HTTP representation of a ride.
type RideResponse struct {
	ID                 string   `json:"id"`
	PassengerID        string   `json:"passenger_id"`
	DriverID           string   `json:"driver_id,omitempty"`
	RouteID            string   `json:"route_id,omitempty"`
	Pickup             string   `json:"pickup,omitempty"`
	Destination        string   `json:"destination,omitempty"`
	Status             string   `json:"status"`
	RidePin            string   `json:"ride_pin,omitempty"`
	EstimatedFare      *float64 `json:"estimated_fare,omitempty"`
	FinalFare          *float64 `json:"final_fare,omitempty"`
	TripID             string   `json:"trip_id,omitempty"`
	TripPaid           bool     `json:"trip_paid"`
	CancelReason       string   `json:"cancel_reason,omitempty"`
	RequestedAt        string   `json:"requested_at"`
	AcceptedAt         string   `json:"accepted_at,omitempty"`
	StartedAt          string   `json:"started_at,omitempty"`
	CompletedAt        string   `json:"completed_at,omitempty"`
	CancelledAt        string   `json:"cancelled_at,omitempty"`
	DeclinedAt         string   `json:"declined_at,omitempty"`
	PinVerifiedAt      string   `json:"pin_verified_at,omitempty"`
	PinRegeneratedAt   string   `json:"pin_regenerated_at,omitempty"`
	PaymentConfirmedAt string   `json:"payment_confirmed_at,omitempty"`
}

// newRideResponse renders ride for viewerID. The PIN is shown to the two
// participants only.
func newRideResponse(ride *domain.Ride, viewerID string) RideResponse {
	resp := RideResponse{
		ID:                 ride.ID,
		PassengerID:        ride.PassengerID,
		DriverID:           ride.DriverID,
		RouteID:            ride.RouteID,
		Pickup:             ride.Pickup,
		Destination:        ride.Destination,
		Status:             string(ride.Status),
		EstimatedFare:      ride.EstimatedFare,
		FinalFare:          ride.FinalFare,
		TripID:             ride.TripID,
		TripPaid:           ride.TripPaid,
		CancelReason:       ride.CancelReason,
		RequestedAt:        formatTime(ride.RequestedAt),
		AcceptedAt:         formatTime(ride.AcceptedAt),
		StartedAt:          formatTime(ride.StartedAt),
		CompletedAt:        formatTime(ride.CompletedAt),
		CancelledAt:        formatTime(ride.CancelledAt),
		DeclinedAt:         formatTime(ride.DeclinedAt),
		PinVerifiedAt:      formatTime(ride.PinVerifiedAt),
		PinRegeneratedAt:   formatTime(ride.PinRegeneratedAt),
		PaymentConfirmedAt: formatTime(ride.PaymentConfirmedAt),
	}
	if ride.IsParticipant(viewerID) {
		resp.RidePin = ride.RidePin
	}
	return resp
}

func newRideResponses(rides []*domain.Ride, viewerID string) []RideResponse {
	out := make([]RideResponse, 0, len(rides))
	for _, r := range rides {
		out = append(out, newRideResponse(r, viewerID))
	}
	return out
}

// SessionResponse is the HTTP representation of a device session.
type SessionResponse struct {
	ID             string `json:"id"`
	UserID         string `json:"user_id"`
	DeviceID       string `json:"device_id"`
	DeviceName     string `json:"device_name,omitempty"`
	Platform       string `json:"platform,omitempty"`
	Role           string `json:"role"`
	IsActive       bool   `json:"is_active"`
	LastActivityAt string `json:"last_activity_at"`
	CreatedAt      string `json:"created_at"`
}

func newSessionResponse(s *domain.DeviceSession) SessionResponse {
	return SessionResponse{
		ID:             s.ID,
		UserID:         s.UserID,
		DeviceID:       s.DeviceID,
		DeviceName:     s.DeviceName,
		Platform:       s.Platform,
		Role:           string(s.Role),
		IsActive:       s.IsActive,
		LastActivityAt: formatTime(s.LastActivityAt),
		CreatedAt:      formatTime(s.CreatedAt),
	}
}

// UserResponse is the HTTP representation of a user.
type UserResponse struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Phone             string `json:"phone"`
	AccountType       string `json:"account_type"`
	CurrentActiveRole string `json:"current_active_role"`
	LastRoleSwitchAt  string `json:"last_role_switch_at,omitempty"`
	CreatedAt         string `json:"created_at"`
}

// MeResponse is the caller's user record with the side profiles it holds.
type MeResponse struct {
	UserResponse
	Driver    *DriverProfileResponse    `json:"driver,omitempty"`
	Passenger *PassengerProfileResponse `json:"passenger,omitempty"`
	Location  *LocationResponse         `json:"location,omitempty"`
}

// DriverProfileResponse is the HTTP representation of a driver profile.
type DriverProfileResponse struct {
	NumberOfRides int `json:"number_of_rides"`
}

// PassengerProfileResponse is the HTTP representation of a passenger profile.
type PassengerProfileResponse struct {
	NumberOfRidesTaken int `json:"number_of_rides_taken"`
}

// LocationResponse is the HTTP representation of a stored location.
type LocationResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	UpdatedAt string  `json:"updated_at"`
}

func newMeResponse(u *domain.User, p *service.Profiles) MeResponse {
	resp := MeResponse{UserResponse: newUserResponse(u)}
	if p.Driver != nil {
		resp.Driver = &DriverProfileResponse{NumberOfRides: p.Driver.NumberOfRides}
	}
	if p.Passenger != nil {
		resp.Passenger = &PassengerProfileResponse{NumberOfRidesTaken: p.Passenger.NumberOfRidesTaken}
	}
	if p.Location != nil {
		resp.Location = &LocationResponse{
			Latitude:  p.Location.Latitude,
			Longitude: p.Location.Longitude,
			UpdatedAt: formatTime(p.Location.UpdatedAt),
		}
	}
	return resp
}

func newUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:                u.ID,
		Name:              u.Name,
		Phone:             u.Phone,
		AccountType:       string(u.AccountType),
		CurrentActiveRole: string(u.CurrentActiveRole),
		LastRoleSwitchAt:  formatTime(u.LastRoleSwitchAt),
		CreatedAt:         formatTime(u.CreatedAt),
	}
}
