package repository

import (
	"context"
	"time"

	"taxitap/internal/domain"
)

// UserRepository defines the persistence operations for users.
type UserRepository interface {
	// Create adds a new user. Returns ErrConflict on a duplicate phone number.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByPhone retrieves a user by phone number.
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)

	// UpdateRole stores a new account type and active role.
	UpdateRole(ctx context.Context, id string, accountType domain.AccountType, role domain.Role, at time.Time) error
}

// ProfileRepository defines the persistence operations for side profiles.
// Every Ensure method is idempotent and reports whether a record was created.
type ProfileRepository interface {
	EnsurePassenger(ctx context.Context, userID string) (bool, error)
	EnsureDriver(ctx context.Context, userID string) (bool, error)
	EnsureLocation(ctx context.Context, userID string, lat, lng float64) (bool, error)

	GetDriver(ctx context.Context, userID string) (*domain.Driver, error)
	GetPassenger(ctx context.Context, userID string) (*domain.Passenger, error)
	GetLocation(ctx context.Context, userID string) (*domain.Location, error)

	// IncrementRideCounters bumps the completed-ride counters of both parties.
	IncrementRideCounters(ctx context.Context, driverID, passengerID string) error
}

// FeedbackRepository defines the persistence operations for ride feedback.
type FeedbackRepository interface {
	// Create persists feedback. Returns ErrConflict if the ride already has feedback.
	Create(ctx context.Context, feedback *domain.Feedback) error

	// ListByDriver retrieves a driver's feedback, newest first.
	ListByDriver(ctx context.Context, driverID string) ([]*domain.Feedback, error)
}
