package domain

import "time"

// RideStatus represents the current status of a ride.
type RideStatus string

const (
	RideStatusRequested  RideStatus = "requested"
	RideStatusAccepted   RideStatus = "accepted"
	RideStatusInProgress RideStatus = "in_progress"
	RideStatusCompleted  RideStatus = "completed"
	RideStatusCancelled  RideStatus = "cancelled"
	RideStatusDeclined   RideStatus = "declined"
)

// IsTerminal reports whether no further transition is permitted.
func (s RideStatus) IsTerminal() bool {
	switch s {
	case RideStatusCompleted, RideStatusCancelled, RideStatusDeclined:
		return true
	}
	return false
}

// rideTransitions lists the forward edges of the ride lifecycle.
var rideTransitions = map[RideStatus][]RideStatus{
	RideStatusRequested:  {RideStatusAccepted, RideStatusDeclined, RideStatusCancelled},
	RideStatusAccepted:   {RideStatusInProgress, RideStatusDeclined, RideStatusCancelled},
	RideStatusInProgress: {RideStatusCompleted, RideStatusCancelled},
}

// CanTransition reports whether a ride may move from s to next.
func (s RideStatus) CanTransition(next RideStatus) bool {
	for _, allowed := range rideTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ActiveAsPassengerStatuses are the statuses that block a passenger from switching to driver mode.
var ActiveAsPassengerStatuses = []RideStatus{RideStatusRequested, RideStatusAccepted, RideStatusInProgress}

// ActiveAsDriverStatuses are the statuses that block a driver from switching to passenger mode.
var ActiveAsDriverStatuses = []RideStatus{RideStatusAccepted, RideStatusInProgress}

// Ride represents a ride request between a passenger and a driver.
type Ride struct {
	ID                 string
	PassengerID        string
	DriverID           string // empty until accepted unless the passenger targeted a driver
	RouteID            string
	Pickup             string
	Destination        string
	Status             RideStatus
	RidePin            string
	PinRegeneratedAt   time.Time
	PinVerifiedAt      time.Time
	RequestedAt        time.Time
	AcceptedAt         time.Time
	StartedAt          time.Time
	CompletedAt        time.Time
	CancelledAt        time.Time
	DeclinedAt         time.Time
	CancelReason       string
	EstimatedFare      *float64
	FinalFare          *float64
	TripID             string
	TripPaid           bool
	PaymentConfirmedAt time.Time
	UpdatedAt          time.Time

	// Version advances on every stored write and guards updates against lost writes.
	Version int64
}

// IsParticipant reports whether userID is the passenger or the assigned driver.
func (r *Ride) IsParticipant(userID string) bool {
	if userID == "" {
		return false
	}
	return r.PassengerID == userID || r.DriverID == userID
}
