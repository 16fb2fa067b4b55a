package domain

import "time"

// Trip is the billable execution of a ride. A zero EndTime means the trip is ongoing.
type Trip struct {
	ID          string
	DriverID    string
	PassengerID string
	StartTime   time.Time
	EndTime     time.Time
	Fare        float64
	Reservation bool
}

// Ongoing reports whether the trip has not been closed yet.
func (t *Trip) Ongoing() bool {
	return t.EndTime.IsZero()
}
