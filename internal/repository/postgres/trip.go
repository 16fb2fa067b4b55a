package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"taxitap/internal/domain"
	"taxitap/internal/repository"
)

// TripRepository is a PostgreSQL implementation of repository.TripRepository.
type TripRepository struct {
	q Querier
}

// NewTripRepository creates a new PostgreSQL trip repository.
func NewTripRepository(db *sql.DB) *TripRepository {
	return &TripRepository{q: db}
}

// Create persists a new trip.
func (r *TripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	query := `
		INSERT INTO trips (id, driver_id, passenger_id, started_at, ended_at, fare, reservation)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.q.ExecContext(ctx, query,
		trip.ID,
		trip.DriverID,
		nullString(trip.PassengerID),
		trip.StartTime,
		nullTime(trip.EndTime),
		trip.Fare,
		trip.Reservation,
	)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	return err
}

// GetOngoingByPassenger retrieves the passenger's most recent ongoing trip.
// Returns nil if none exists.
func (r *TripRepository) GetOngoingByPassenger(ctx context.Context, passengerID string) (*domain.Trip, error) {
	query := `
		SELECT id, driver_id, passenger_id, started_at, ended_at, fare, reservation
		FROM trips
		WHERE passenger_id = $1 AND ended_at IS NULL
		ORDER BY started_at DESC
		LIMIT 1
	`

	trip, err := scanTrip(r.q.QueryRowContext(ctx, query, passengerID))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return trip, err
}

// Close stamps the end time and fare of an ongoing trip.
func (r *TripRepository) Close(ctx context.Context, id string, endTime time.Time, fare float64) error {
	query := `UPDATE trips SET ended_at = $2, fare = $3 WHERE id = $1 AND ended_at IS NULL`

	result, err := r.q.ExecContext(ctx, query, id, endTime, fare)
	if err != nil {
		return err
	}
	return expectOneRow(result, repository.ErrStaleState)
}

// Delete removes an ongoing trip.
func (r *TripRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM trips WHERE id = $1 AND ended_at IS NULL`

	result, err := r.q.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return expectOneRow(result, repository.ErrStaleState)
}

// ListByDriverBetween retrieves the driver's trips started in [from, to).
// Served by the (driver_id, started_at) index.
func (r *TripRepository) ListByDriverBetween(ctx context.Context, driverID string, from, to time.Time) ([]*domain.Trip, error) {
	query := `
		SELECT id, driver_id, passenger_id, started_at, ended_at, fare, reservation
		FROM trips
		WHERE driver_id = $1 AND started_at >= $2 AND started_at < $3
		ORDER BY started_at
	`

	rows, err := r.q.QueryContext(ctx, query, driverID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []*domain.Trip
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, trip)
	}
	return trips, rows.Err()
}

func scanTrip(row rowScanner) (*domain.Trip, error) {
	var trip domain.Trip
	var passengerID sql.NullString
	var endedAt sql.NullTime

	err := row.Scan(
		&trip.ID,
		&trip.DriverID,
		&passengerID,
		&trip.StartTime,
		&endedAt,
		&trip.Fare,
		&trip.Reservation,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	trip.PassengerID = passengerID.String
	trip.EndTime = endedAt.Time

	return &trip, nil
}

// Ensure TripRepository implements repository.TripRepository.
var _ repository.TripRepository = (*TripRepository)(nil)
