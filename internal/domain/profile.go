package domain

import "time"

// Driver holds the driver-side profile of a user.
type Driver struct {
	UserID        string
	NumberOfRides int
	CreatedAt     time.Time
}

// Passenger holds the passenger-side profile of a user.
type Passenger struct {
	UserID             string
	NumberOfRidesTaken int
	CreatedAt          time.Time
}

// Location is the last known position of a driver, used by proximity queries.
type Location struct {
	UserID    string
	Latitude  float64
	Longitude float64
	UpdatedAt time.Time
}
