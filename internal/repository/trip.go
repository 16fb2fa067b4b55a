package repository

import (
	"context"
	"time"

	"taxitap/internal/domain"
)

// TripRepository defines the persistence operations for trips.
type TripRepository interface {
	// Create persists a new trip. Returns ErrConflict if the passenger already
	// has an ongoing trip.
	Create(ctx context.Context, trip *domain.Trip) error

	// GetOngoingByPassenger retrieves the passenger's most recent ongoing trip.
	// Returns nil if none exists.
	GetOngoingByPassenger(ctx context.Context, passengerID string) (*domain.Trip, error)

	// Close stamps the end time and fare of an ongoing trip.
	// Returns ErrStaleState if the trip was already closed.
	Close(ctx context.Context, id string, endTime time.Time, fare float64) error

	// Delete removes an ongoing trip that could not be linked to its ride.
	// Returns ErrStaleState if the trip is gone or already closed.
	Delete(ctx context.Context, id string) error

	// ListByDriverBetween retrieves the driver's trips started in [from, to).
	ListByDriverBetween(ctx context.Context, driverID string, from, to time.Time) ([]*domain.Trip, error)
}
