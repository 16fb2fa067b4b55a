package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"taxitap/internal/domain"
	"taxitap/internal/repository"
)

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	q Querier
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{q: db}
}

const userColumns = `id, name, phone, password_hash, account_type, current_active_role, last_role_switch_at, created_at, updated_at`

// Create adds a new user.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	query := `INSERT INTO taxitap_users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.q.ExecContext(ctx, query,
		user.ID,
		user.Name,
		user.Phone,
		user.PasswordHash,
		user.AccountType,
		user.CurrentActiveRole,
		nullTime(user.LastRoleSwitchAt),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	return err
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM taxitap_users WHERE id = $1`
	return scanUser(r.q.QueryRowContext(ctx, query, id))
}

// GetByPhone retrieves a user by phone number.
func (r *UserRepository) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM taxitap_users WHERE phone = $1`
	return scanUser(r.q.QueryRowContext(ctx, query, phone))
}

// UpdateRole stores a new account type and active role.
func (r *UserRepository) UpdateRole(ctx context.Context, id string, accountType domain.AccountType, role domain.Role, at time.Time) error {
	query := `
		UPDATE taxitap_users
		SET account_type = $2, current_active_role = $3, last_role_switch_at = $4, updated_at = $4
		WHERE id = $1
	`

	result, err := r.q.ExecContext(ctx, query, id, accountType, role, at)
	if err != nil {
		return err
	}
	return expectOneRow(result, repository.ErrNotFound)
}

func scanUser(row rowScanner) (*domain.User, error) {
	var user domain.User
	var lastSwitch sql.NullTime
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Phone,
		&user.PasswordHash,
		&user.AccountType,
		&user.CurrentActiveRole,
		&lastSwitch,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	user.LastRoleSwitchAt = lastSwitch.Time
	return &user, nil
}

// ProfileRepository implements repository.ProfileRepository using PostgreSQL.
type ProfileRepository struct {
	q Querier
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{q: db}
}

// EnsurePassenger creates a zeroed passenger profile if absent.
func (r *ProfileRepository) EnsurePassenger(ctx context.Context, userID string) (bool, error) {
	return r.ensure(ctx, `INSERT INTO passengers (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID)
}

// EnsureDriver creates a zeroed driver profile if absent.
func (r *ProfileRepository) EnsureDriver(ctx context.Context, userID string) (bool, error) {
	return r.ensure(ctx, `INSERT INTO drivers (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID)
}

// EnsureLocation creates a location row if absent. An existing row keeps its coordinates.
func (r *ProfileRepository) EnsureLocation(ctx context.Context, userID string, lat, lng float64) (bool, error) {
	return r.ensure(ctx,
		`INSERT INTO locations (user_id, latitude, longitude) VALUES ($1, $2, $3) ON CONFLICT (user_id) DO NOTHING`,
		userID, lat, lng)
}

func (r *ProfileRepository) ensure(ctx context.Context, query string, args ...any) (bool, error) {
	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetDriver retrieves a driver profile.
func (r *ProfileRepository) GetDriver(ctx context.Context, userID string) (*domain.Driver, error) {
	var d domain.Driver
	err := r.q.QueryRowContext(ctx,
		`SELECT user_id, number_of_rides, created_at FROM drivers WHERE user_id = $1`, userID,
	).Scan(&d.UserID, &d.NumberOfRides, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetPassenger retrieves a passenger profile.
func (r *ProfileRepository) GetPassenger(ctx context.Context, userID string) (*domain.Passenger, error) {
	var p domain.Passenger
	err := r.q.QueryRowContext(ctx,
		`SELECT user_id, number_of_rides_taken, created_at FROM passengers WHERE user_id = $1`, userID,
	).Scan(&p.UserID, &p.NumberOfRidesTaken, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetLocation retrieves a user's location row.
func (r *ProfileRepository) GetLocation(ctx context.Context, userID string) (*domain.Location, error) {
	var l domain.Location
	err := r.q.QueryRowContext(ctx,
		`SELECT user_id, latitude, longitude, updated_at FROM locations WHERE user_id = $1`, userID,
	).Scan(&l.UserID, &l.Latitude, &l.Longitude, &l.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// IncrementRideCounters bumps the completed-ride counters of both parties.
// Missing profiles are skipped.
func (r *ProfileRepository) IncrementRideCounters(ctx context.Context, driverID, passengerID string) error {
	if _, err := r.q.ExecContext(ctx,
		`UPDATE drivers SET number_of_rides = number_of_rides + 1 WHERE user_id = $1`, driverID); err != nil {
		return err
	}
	_, err := r.q.ExecContext(ctx,
		`UPDATE passengers SET number_of_rides_taken = number_of_rides_taken + 1 WHERE user_id = $1`, passengerID)
	return err
}

// FeedbackRepository implements repository.FeedbackRepository using PostgreSQL.
type FeedbackRepository struct {
	q Querier
}

// NewFeedbackRepository creates a new FeedbackRepository.
func NewFeedbackRepository(db *sql.DB) *FeedbackRepository {
	return &FeedbackRepository{q: db}
}

// Create persists feedback. The unique ride_id column rejects a second submission.
func (r *FeedbackRepository) Create(ctx context.Context, f *domain.Feedback) error {
	query := `
		INSERT INTO feedback (id, ride_id, passenger_id, driver_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.q.ExecContext(ctx, query,
		f.ID, f.RideID, f.PassengerID, f.DriverID, f.Rating, nullString(f.Comment), f.CreatedAt)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	return err
}

// ListByDriver retrieves a driver's feedback, newest first.
func (r *FeedbackRepository) ListByDriver(ctx context.Context, driverID string) ([]*domain.Feedback, error) {
	query := `
		SELECT id, ride_id, passenger_id, driver_id, rating, COALESCE(comment, ''), created_at
		FROM feedback WHERE driver_id = $1 ORDER BY created_at DESC
	`

	rows, err := r.q.QueryContext(ctx, query, driverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*domain.Feedback
	for rows.Next() {
		var f domain.Feedback
		if err := rows.Scan(&f.ID, &f.RideID, &f.PassengerID, &f.DriverID, &f.Rating, &f.Comment, &f.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &f)
	}
	return list, rows.Err()
}

var (
	_ repository.UserRepository     = (*UserRepository)(nil)
	_ repository.ProfileRepository  = (*ProfileRepository)(nil)
	_ repository.FeedbackRepository = (*FeedbackRepository)(nil)
)
