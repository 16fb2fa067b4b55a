package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"taxitap/internal/domain"
	"taxitap/internal/repository"
)

const rideColumns = `id, passenger_id, driver_id, route_id, pickup, destination, status, ride_pin,
	pin_regenerated_at, pin_verified_at, requested_at, accepted_at, started_at, completed_at,
	cancelled_at, declined_at, cancel_reason, estimated_fare, final_fare, trip_id, trip_paid,
	payment_confirmed_at, updated_at, version`

// RideRepository is a PostgreSQL implementation of repository.RideRepository.
type RideRepository struct {
	q Querier
}

// NewRideRepository creates a new PostgreSQL ride repository.
func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{q: db}
}

// Create persists a new ride.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	query := `
		INSERT INTO rides (` + rideColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
	`

	_, err := r.q.ExecContext(ctx, query, rideArgs(ride)...)
	return err
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`
	return scanRide(r.q.QueryRowContext(ctx, query, id))
}

// GetByTripID retrieves the ride linked to a trip.
func (r *RideRepository) GetByTripID(ctx context.Context, tripID string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE trip_id = $1`
	return scanRide(r.q.QueryRowContext(ctx, query, tripID))
}

// ListByPassenger retrieves a passenger's rides, newest first.
func (r *RideRepository) ListByPassenger(ctx context.Context, passengerID string) ([]*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE passenger_id = $1 ORDER BY requested_at DESC LIMIT 100`
	return r.list(ctx, query, passengerID)
}

// ListByDriver retrieves a driver's rides, newest first.
func (r *RideRepository) ListByDriver(ctx context.Context, driverID string) ([]*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE driver_id = $1 ORDER BY requested_at DESC LIMIT 100`
	return r.list(ctx, query, driverID)
}

// CountByPassengerAndStatus counts the passenger's rides in any of the given statuses.
func (r *RideRepository) CountByPassengerAndStatus(ctx context.Context, passengerID string, statuses []domain.RideStatus) (int, error) {
	query := `SELECT COUNT(*) FROM rides WHERE passenger_id = $1 AND status = ANY($2)`
	var count int
	err := r.q.QueryRowContext(ctx, query, passengerID, pq.Array(statusStrings(statuses))).Scan(&count)
	return count, err
}

// CountByDriverAndStatus counts the driver's rides in any of the given statuses.
func (r *RideRepository) CountByDriverAndStatus(ctx context.Context, driverID string, statuses []domain.RideStatus) (int, error) {
	query := `SELECT COUNT(*) FROM rides WHERE driver_id = $1 AND status = ANY($2)`
	var count int
	err := r.q.QueryRowContext(ctx, query, driverID, pq.Array(statusStrings(statuses))).Scan(&count)
	return count, err
}

// Update overwrites a ride if nobody wrote it since it was read.
func (r *RideRepository) Update(ctx context.Context, ride *domain.Ride) error {
	query := `
		UPDATE rides
		SET passenger_id = $2, driver_id = $3, route_id = $4, pickup = $5, destination = $6, status = $7,
		    ride_pin = $8, pin_regenerated_at = $9, pin_verified_at = $10, requested_at = $11,
		    accepted_at = $12, started_at = $13, completed_at = $14, cancelled_at = $15, declined_at = $16,
		    cancel_reason = $17, estimated_fare = $18, final_fare = $19, trip_id = $20, trip_paid = $21,
		    payment_confirmed_at = $22, updated_at = $23, version = version + 1
		WHERE id = $1 AND version = $24
	`

	result, err := r.q.ExecContext(ctx, query, rideArgs(ride)...)
	if err != nil {
		return err
	}
	if err := expectOneRow(result, repository.ErrStaleState); err != nil {
		return err
	}
	ride.Version++
	return nil
}

// LinkTrip sets the ride's trip reference if it has none.
func (r *RideRepository) LinkTrip(ctx context.Context, rideID, tripID string) error {
	query := `UPDATE rides SET trip_id = $2, version = version + 1 WHERE id = $1 AND trip_id IS NULL`

	result, err := r.q.ExecContext(ctx, query, rideID, tripID)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return err
	}
	return expectOneRow(result, repository.ErrStaleState)
}

// LinkLatestUnlinked claims the newest unlinked ride of the pair in one statement.
// SKIP LOCKED lets two concurrent claims pick different rides instead of blocking.
func (r *RideRepository) LinkLatestUnlinked(ctx context.Context, passengerID, driverID, tripID string) (string, error) {
	query := `
		UPDATE rides SET trip_id = $3, version = version + 1
		WHERE id = (
			SELECT id FROM rides
			WHERE passenger_id = $1 AND driver_id = $2 AND trip_id IS NULL
			ORDER BY requested_at DESC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		) AND trip_id IS NULL
		RETURNING id
	`

	var rideID string
	err := r.q.QueryRowContext(ctx, query, passengerID, driverID, tripID).Scan(&rideID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", repository.ErrNotFound
		}
		return "", err
	}
	return rideID, nil
}

func (r *RideRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Ride, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rides []*domain.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}

func rideArgs(ride *domain.Ride) []any {
	return []any{
		ride.ID,
		ride.PassengerID,
		nullString(ride.DriverID),
		nullString(ride.RouteID),
		ride.Pickup,
		ride.Destination,
		ride.Status,
		nullString(ride.RidePin),
		nullTime(ride.PinRegeneratedAt),
		nullTime(ride.PinVerifiedAt),
		ride.RequestedAt,
		nullTime(ride.AcceptedAt),
		nullTime(ride.StartedAt),
		nullTime(ride.CompletedAt),
		nullTime(ride.CancelledAt),
		nullTime(ride.DeclinedAt),
		nullString(ride.CancelReason),
		nullFloat(ride.EstimatedFare),
		nullFloat(ride.FinalFare),
		nullString(ride.TripID),
		ride.TripPaid,
		nullTime(ride.PaymentConfirmedAt),
		ride.UpdatedAt,
		ride.Version,
	}
}

func scanRide(row rowScanner) (*domain.Ride, error) {
	var ride domain.Ride
	var driverID, routeID, ridePin, cancelReason, tripID sql.NullString
	var pinRegeneratedAt, pinVerifiedAt, acceptedAt, startedAt, completedAt sql.NullTime
	var cancelledAt, declinedAt, paymentConfirmedAt sql.NullTime
	var estimatedFare, finalFare sql.NullFloat64

	err := row.Scan(
		&ride.ID,
		&ride.PassengerID,
		&driverID,
		&routeID,
		&ride.Pickup,
		&ride.Destination,
		&ride.Status,
		&ridePin,
		&pinRegeneratedAt,
		&pinVerifiedAt,
		&ride.RequestedAt,
		&acceptedAt,
		&startedAt,
		&completedAt,
		&cancelledAt,
		&declinedAt,
		&cancelReason,
		&estimatedFare,
		&finalFare,
		&tripID,
		&ride.TripPaid,
		&paymentConfirmedAt,
		&ride.UpdatedAt,
		&ride.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	ride.DriverID = driverID.String
	ride.RouteID = routeID.String
	ride.RidePin = ridePin.String
	ride.CancelReason = cancelReason.String
	ride.TripID = tripID.String
	ride.PinRegeneratedAt = pinRegeneratedAt.Time
	ride.PinVerifiedAt = pinVerifiedAt.Time
	ride.AcceptedAt = acceptedAt.Time
	ride.StartedAt = startedAt.Time
	ride.CompletedAt = completedAt.Time
	ride.CancelledAt = cancelledAt.Time
	ride.DeclinedAt = declinedAt.Time
	ride.PaymentConfirmedAt = paymentConfirmedAt.Time
	ride.EstimatedFare = floatPtr(estimatedFare)
	ride.FinalFare = floatPtr(finalFare)

	return &ride, nil
}

func statusStrings(statuses []domain.RideStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// Ensure RideRepository implements repository.RideRepository.
var _ repository.RideRepository = (*RideRepository)(nil)
