package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"taxitap/internal/domain"
	"taxitap/internal/repository"
)

// ProfileService creates the side profiles a role needs. Every operation is idempotent.
type ProfileService struct {
	profileRepo repository.ProfileRepository
	logger      *zap.Logger
}

// NewProfileService creates a new ProfileService.
func NewProfileService(profileRepo repository.ProfileRepository, logger *zap.Logger) *ProfileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileService{profileRepo: profileRepo, logger: logger}
}

// EnsurePassengerProfile creates the passenger profile with zeroed counters if absent.
func (s *ProfileService) EnsurePassengerProfile(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, ErrInvalidUserID
	}
	created, err := s.profileRepo.EnsurePassenger(ctx, userID)
	s.logCreated("passenger", userID, created, err)
	return created, err
}

// EnsureDriverProfile creates the driver profile with zeroed counters if absent.
func (s *ProfileService) EnsureDriverProfile(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, ErrInvalidUserID
	}
	created, err := s.profileRepo.EnsureDriver(ctx, userID)
	s.logCreated("driver", userID, created, err)
	return created, err
}

// EnsureLocation creates a location at (0, 0) if the user has none.
func (s *ProfileService) EnsureLocation(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, ErrInvalidUserID
	}
	created, err := s.profileRepo.EnsureLocation(ctx, userID, 0, 0)
	s.logCreated("location", userID, created, err)
	return created, err
}

// Profiles holds the side profiles of a user. Absent profiles are nil.
type Profiles struct {
	Driver    *domain.Driver
	Passenger *domain.Passenger
	Location  *domain.Location
}

// GetProfiles loads whichever side profiles the user has.
func (s *ProfileService) GetProfiles(ctx context.Context, userID string) (*Profiles, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}

	var profiles Profiles
	var err error
	if profiles.Driver, err = s.profileRepo.GetDriver(ctx, userID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if profiles.Passenger, err = s.profileRepo.GetPassenger(ctx, userID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if profiles.Location, err = s.profileRepo.GetLocation(ctx, userID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	return &profiles, nil
}

func (s *ProfileService) logCreated(kind, userID string, created bool, err error) {
	if err == nil && created {
		s.logger.Info("profile created", zap.String("kind", kind), zap.String("user_id", userID))
	}
}
