package domain

import "time"

// Feedback is a passenger's rating of a completed ride. At most one exists per ride.
type Feedback struct {
	ID          string
	RideID      string
	PassengerID string
	DriverID    string
	Rating      int
	Comment     string
	CreatedAt   time.Time
}
