package repository

import (
	"context"

	"taxitap/internal/domain"
)

// RideRepository defines the persistence operations for rides.
type RideRepository interface {
	// Create persists a new ride.
	Create(ctx context.Context, ride *domain.Ride) error

	// GetByID retrieves a ride by ID.
	GetByID(ctx context.Context, id string) (*domain.Ride, error)

	// GetByTripID retrieves the ride linked to a trip.
	GetByTripID(ctx context.Context, tripID string) (*domain.Ride, error)

	// ListByPassenger retrieves a passenger's rides, newest first.
	ListByPassenger(ctx context.Context, passengerID string) ([]*domain.Ride, error)

	// ListByDriver retrieves a driver's rides, newest first.
	ListByDriver(ctx context.Context, driverID string) ([]*domain.Ride, error)

	// CountByPassengerAndStatus counts the passenger's rides in any of the given statuses.
	CountByPassengerAndStatus(ctx context.Context, passengerID string, statuses []domain.RideStatus) (int, error)

	// CountByDriverAndStatus counts the driver's rides in any of the given statuses.
	CountByDriverAndStatus(ctx context.Context, driverID string, statuses []domain.RideStatus) (int, error)

	// Update overwrites a ride only if its stored version still equals
	// ride.Version, and advances ride.Version on success. Returns ErrStaleState
	// if any other write landed since the ride was read.
	Update(ctx context.Context, ride *domain.Ride) error

	// LinkTrip sets the ride's trip reference if it has none and advances the
	// version. Returns ErrStaleState if the ride is already linked.
	LinkTrip(ctx context.Context, rideID, tripID string) error

	// LinkLatestUnlinked links the newest ride of the passenger/driver pair that has
	// no trip yet, advances its version and returns its ID. Returns ErrNotFound
	// if there is none.
	LinkLatestUnlinked(ctx context.Context, passengerID, driverID, tripID string) (string, error)
}
