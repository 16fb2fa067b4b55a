package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taxitap/internal/domain"
	"taxitap/internal/redis"
	"taxitap/internal/repository"
)

// SessionService tracks device sessions and keeps drivers on a single active device.
type SessionService struct {
	sessionRepo repository.SessionRepository
	locks       redis.LockStoreInterface
	clock       Clock
	logger      *zap.Logger
	lockTTL     time.Duration
}

// NewSessionService creates a new SessionService. locks may be nil.
func NewSessionService(
	sessionRepo repository.SessionRepository,
	locks redis.LockStoreInterface,
	clock Clock,
	logger *zap.Logger,
) *SessionService {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		sessionRepo: sessionRepo,
		locks:       locks,
		clock:       clock,
		logger:      logger,
		lockTTL:     10 * time.Second,
	}
}

// CreateSessionRequest contains the parameters for a device login.
type CreateSessionRequest struct {
	UserID     string
	DeviceID   string
	DeviceName string
	Platform   string
	Role       domain.Role
}

// CreateSession activates the session of a device. A device that is active
// for another user is rejected with ErrDeviceTaken, and a driver who is active
// on another device is rejected with ErrDeviceConflict.
func (s *SessionService) CreateSession(ctx context.Context, req CreateSessionRequest) (*domain.DeviceSession, error) {
	if req.UserID == "" {
		return nil, ErrInvalidUserID
	}
	if req.DeviceID == "" {
		return nil, ErrInvalidDeviceID
	}
	if !req.Role.Valid() {
		return nil, ErrInvalidRole
	}

	if s.locks != nil {
		key := redis.UserSessionLockKey(req.UserID)
		token, ok, err := s.locks.AcquireLock(ctx, key, s.lockTTL)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrBusy
		}
		defer func() {
			if err := s.locks.ReleaseLock(context.WithoutCancel(ctx), key, token); err != nil {
				s.logger.Warn("failed to release session lock", zap.String("user_id", req.UserID), zap.Error(err))
			}
		}()
	}

	current, err := s.sessionRepo.GetByDeviceID(ctx, req.DeviceID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		return nil, err
	case current.IsActive && current.UserID != req.UserID:
		return nil, ErrDeviceTaken
	}

	if req.Role == domain.RoleDriver {
		active, err := s.sessionRepo.ListActiveByUser(ctx, req.UserID)
		if err != nil {
			return nil, err
		}
		for _, other := range active {
			if other.DeviceID != req.DeviceID {
				return nil, ErrDeviceConflict
			}
		}
	}

	now := s.clock.Now()
	session := &domain.DeviceSession{
		ID:             uuid.New().String(),
		UserID:         req.UserID,
		DeviceID:       req.DeviceID,
		DeviceName:     req.DeviceName,
		Platform:       req.Platform,
		Role:           req.Role,
		IsActive:       true,
		LastActivityAt: now,
		CreatedAt:      now,
	}

	// The store enforces exclusivity again for logins that race past the check above.
	if err := s.sessionRepo.Upsert(ctx, session); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrDeviceConflict
		}
		return nil, err
	}

	s.logger.Info("device session active",
		zap.String("user_id", req.UserID),
		zap.String("device_id", req.DeviceID),
		zap.String("role", string(req.Role)),
	)
	return session, nil
}

// Logout deactivates the user's session on a device and returns how many were deactivated.
func (s *SessionService) Logout(ctx context.Context, userID, deviceID string) (int64, error) {
	if userID == "" {
		return 0, ErrInvalidUserID
	}
	if deviceID == "" {
		return 0, ErrInvalidDeviceID
	}
	return s.sessionRepo.DeactivateByDevice(ctx, userID, deviceID)
}

// ForceLogoutAll deactivates every active session of a user.
func (s *SessionService) ForceLogoutAll(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, ErrInvalidUserID
	}

	n, err := s.sessionRepo.DeactivateByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.logger.Info("forced logout", zap.String("user_id", userID), zap.Int64("sessions", n))
	return n, nil
}

// SweepStale deactivates sessions idle for longer than maxInactivity.
func (s *SessionService) SweepStale(ctx context.Context, maxInactivity time.Duration) (int64, error) {
	if maxInactivity <= 0 {
		return 0, newError(ErrValidation, "max inactivity must be positive")
	}

	cutoff := s.clock.Now().Add(-maxInactivity)
	n, err := s.sessionRepo.DeactivateInactiveSince(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.logger.Info("stale sessions swept", zap.Time("cutoff", cutoff), zap.Int64("sessions", n))
	return n, nil
}

// Heartbeat refreshes the activity timestamp of the user's session on a
// device. A device that was logged out or taken over fails with ErrSessionInactive.
func (s *SessionService) Heartbeat(ctx context.Context, userID, deviceID string) error {
	if deviceID == "" {
		return ErrInvalidDeviceID
	}
	if userID == "" {
		return ErrSessionInactive
	}

	err := s.sessionRepo.Touch(ctx, userID, deviceID, s.clock.Now())
	if errors.Is(err, repository.ErrNotFound) {
		return ErrSessionInactive
	}
	return err
}

// ListActive returns the user's active sessions.
func (s *SessionService) ListActive(ctx context.Context, userID string) ([]*domain.DeviceSession, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}
	return s.sessionRepo.ListActiveByUser(ctx, userID)
}
