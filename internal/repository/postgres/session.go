package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"taxitap/internal/domain"
	"taxitap/internal/repository"
)

// SessionRepository is a PostgreSQL implementation of repository.SessionRepository.
//
// Driver exclusivity is enforced by the sessions_one_active_driver partial unique
// index, so Upsert either wins atomically or fails with ErrConflict.
type SessionRepository struct {
	q Querier
}

// NewSessionRepository creates a new PostgreSQL session repository.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{q: db}
}

const sessionColumns = `id, user_id, device_id, device_name, platform, role, is_active, last_activity_at, created_at`

// ListActiveByUser retrieves the user's active sessions.
func (r *SessionRepository) ListActiveByUser(ctx context.Context, userID string) ([]*domain.DeviceSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE user_id = $1 AND is_active`

	rows, err := r.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*domain.DeviceSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// GetByDeviceID retrieves the session bound to a device.
func (r *SessionRepository) GetByDeviceID(ctx context.Context, deviceID string) (*domain.DeviceSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE device_id = $1`
	return scanSession(r.q.QueryRowContext(ctx, query, deviceID))
}

// Upsert inserts or replaces the session keyed by device ID. A device that is
// active for another user is left untouched and reported as ErrConflict.
func (r *SessionRepository) Upsert(ctx context.Context, s *domain.DeviceSession) error {
	query := `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (device_id) DO UPDATE
		SET user_id = EXCLUDED.user_id,
		    device_name = EXCLUDED.device_name,
		    platform = EXCLUDED.platform,
		    role = EXCLUDED.role,
		    is_active = EXCLUDED.is_active,
		    last_activity_at = EXCLUDED.last_activity_at
		WHERE sessions.user_id = EXCLUDED.user_id OR NOT sessions.is_active
		RETURNING id, created_at
	`

	err := r.q.QueryRowContext(ctx, query,
		s.ID,
		s.UserID,
		s.DeviceID,
		s.DeviceName,
		s.Platform,
		s.Role,
		s.IsActive,
		s.LastActivityAt,
		s.CreatedAt,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return err
	}
	return nil
}

// Touch refreshes the activity timestamp of the user's active session on a device.
func (r *SessionRepository) Touch(ctx context.Context, userID, deviceID string, at time.Time) error {
	query := `UPDATE sessions SET last_activity_at = $3 WHERE device_id = $1 AND user_id = $2 AND is_active`

	result, err := r.q.ExecContext(ctx, query, deviceID, userID, at)
	if err != nil {
		return err
	}
	return expectOneRow(result, repository.ErrNotFound)
}

// DeactivateByDevice deactivates the user's session on a device.
func (r *SessionRepository) DeactivateByDevice(ctx context.Context, userID, deviceID string) (int64, error) {
	return r.deactivate(ctx, `UPDATE sessions SET is_active = FALSE WHERE device_id = $1 AND user_id = $2 AND is_active`, deviceID, userID)
}

// DeactivateByUser deactivates every active session of a user.
func (r *SessionRepository) DeactivateByUser(ctx context.Context, userID string) (int64, error) {
	return r.deactivate(ctx, `UPDATE sessions SET is_active = FALSE WHERE user_id = $1 AND is_active`, userID)
}

// DeactivateInactiveSince deactivates active sessions idle since before cutoff.
func (r *SessionRepository) DeactivateInactiveSince(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.deactivate(ctx, `UPDATE sessions SET is_active = FALSE WHERE is_active AND last_activity_at < $1`, cutoff)
}

func (r *SessionRepository) deactivate(ctx context.Context, query string, args ...any) (int64, error) {
	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanSession(row rowScanner) (*domain.DeviceSession, error) {
	var s domain.DeviceSession
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.DeviceID,
		&s.DeviceName,
		&s.Platform,
		&s.Role,
		&s.IsActive,
		&s.LastActivityAt,
		&s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// WorkSessionRepository is a PostgreSQL implementation of repository.WorkSessionRepository.
type WorkSessionRepository struct {
	q Querier
}

// NewWorkSessionRepository creates a new PostgreSQL work session repository.
func NewWorkSessionRepository(db *sql.DB) *WorkSessionRepository {
	return &WorkSessionRepository{q: db}
}

// Create persists a new open work session.
func (r *WorkSessionRepository) Create(ctx context.Context, ws *domain.WorkSession) error {
	query := `INSERT INTO work_sessions (id, driver_id, started_at, ended_at) VALUES ($1, $2, $3, $4)`

	_, err := r.q.ExecContext(ctx, query, ws.ID, ws.DriverID, ws.StartTime, nullTime(ws.EndTime))
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	return err
}

// GetOpenByDriver retrieves the driver's open session, or nil.
func (r *WorkSessionRepository) GetOpenByDriver(ctx context.Context, driverID string) (*domain.WorkSession, error) {
	query := `
		SELECT id, driver_id, started_at, ended_at FROM work_sessions
		WHERE driver_id = $1 AND ended_at IS NULL
		LIMIT 1
	`

	ws, err := scanWorkSession(r.q.QueryRowContext(ctx, query, driverID))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return ws, err
}

// Close ends an open session.
func (r *WorkSessionRepository) Close(ctx context.Context, id string, endTime time.Time) error {
	query := `UPDATE work_sessions SET ended_at = $2 WHERE id = $1 AND ended_at IS NULL`

	result, err := r.q.ExecContext(ctx, query, id, endTime)
	if err != nil {
		return err
	}
	return expectOneRow(result, repository.ErrStaleState)
}

// ListByDriverBetween retrieves the driver's sessions started in [from, to).
func (r *WorkSessionRepository) ListByDriverBetween(ctx context.Context, driverID string, from, to time.Time) ([]*domain.WorkSession, error) {
	query := `
		SELECT id, driver_id, started_at, ended_at FROM work_sessions
		WHERE driver_id = $1 AND started_at >= $2 AND started_at < $3
		ORDER BY started_at
	`

	rows, err := r.q.QueryContext(ctx, query, driverID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*domain.WorkSession
	for rows.Next() {
		ws, err := scanWorkSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, ws)
	}
	return sessions, rows.Err()
}

func scanWorkSession(row rowScanner) (*domain.WorkSession, error) {
	var ws domain.WorkSession
	var endedAt sql.NullTime
	if err := row.Scan(&ws.ID, &ws.DriverID, &ws.StartTime, &endedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	ws.EndTime = endedAt.Time
	return &ws, nil
}

var (
	_ repository.SessionRepository     = (*SessionRepository)(nil)
	_ repository.WorkSessionRepository = (*WorkSessionRepository)(nil)
)
