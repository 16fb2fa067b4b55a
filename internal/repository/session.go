package repository

import (
	"context"
	"time"

	"taxitap/internal/domain"
)

// SessionRepository defines the persistence operations for device sessions.
type SessionRepository interface {
	// ListActiveByUser retrieves the user's active sessions.
	ListActiveByUser(ctx context.Context, userID string) ([]*domain.DeviceSession, error)

	// GetByDeviceID retrieves the session bound to a device.
	GetByDeviceID(ctx context.Context, deviceID string) (*domain.DeviceSession, error)

	// Upsert inserts or replaces the session keyed by device ID in a single write.
	// Returns ErrConflict if the device is active for another user, or if
	// activating it would give a driver a second active session.
	Upsert(ctx context.Context, session *domain.DeviceSession) error

	// Touch refreshes the activity timestamp of the user's active session on a
	// device. Returns ErrNotFound if there is none.
	Touch(ctx context.Context, userID, deviceID string, at time.Time) error

	// DeactivateByDevice deactivates the user's session on a device and returns the affected count.
	DeactivateByDevice(ctx context.Context, userID, deviceID string) (int64, error)

	// DeactivateByUser deactivates every active session of a user.
	DeactivateByUser(ctx context.Context, userID string) (int64, error)

	// DeactivateInactiveSince deactivates active sessions idle since before cutoff.
	DeactivateInactiveSince(ctx context.Context, cutoff time.Time) (int64, error)
}

// WorkSessionRepository defines the persistence operations for driver work sessions.
type WorkSessionRepository interface {
	// Create persists a new open work session. Returns ErrConflict if the driver
	// already has one open.
	Create(ctx context.Context, session *domain.WorkSession) error

	// GetOpenByDriver retrieves the driver's open session, or nil.
	GetOpenByDriver(ctx context.Context, driverID string) (*domain.WorkSession, error)

	// Close ends an open session. Returns ErrStaleState if it was already closed.
	Close(ctx context.Context, id string, endTime time.Time) error

	// ListByDriverBetween retrieves the driver's sessions started in [from, to).
	ListByDriverBetween(ctx context.Context, driverID string, from, to time.Time) ([]*domain.WorkSession, error)
}
