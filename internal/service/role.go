package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"taxitap/internal/domain"
	"taxitap/internal/repository"
)

// RoleService switches the role a user acts as, and upgrades or downgrades
// account types, refusing any change that would strand an active ride.
type RoleService struct {
	userRepo repository.UserRepository
	rideRepo repository.RideRepository
	profiles *ProfileService
	clock    Clock
	logger   *zap.Logger
}

// NewRoleService creates a new RoleService.
func NewRoleService(
	userRepo repository.UserRepository,
	rideRepo repository.RideRepository,
	profiles *ProfileService,
	clock Clock,
	logger *zap.Logger,
) *RoleService {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleService{
		userRepo: userRepo,
		rideRepo: rideRepo,
		profiles: profiles,
		clock:    clock,
		logger:   logger,
	}
}

// RoleSwitchResult describes the outcome of a role change.
type RoleSwitchResult struct {
	Success     bool
	Message     string
	NewRole     domain.Role
	AccountType domain.AccountType
}

// SwitchActiveRole changes the role of an account that holds both roles.
// Switching to the role already active succeeds without writing.
func (s *RoleService) SwitchActiveRole(ctx context.Context, userID string, newRole domain.Role) (*RoleSwitchResult, error) {
	if !newRole.Valid() {
		return nil, ErrInvalidRole
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.AccountType.Allows(newRole) {
		return nil, ErrRoleNotAllowed
	}

	if user.CurrentActiveRole == newRole {
		return &RoleSwitchResult{
			Success:     true,
			Message:     fmt.Sprintf("Already in %s mode", newRole),
			NewRole:     newRole,
			AccountType: user.AccountType,
		}, nil
	}

	return s.apply(ctx, user, user.AccountType, newRole, fmt.Sprintf("Switched to %s mode", newRole))
}

// SwitchBothToDriver drops the passenger capability of a dual-role account.
func (s *RoleService) SwitchBothToDriver(ctx context.Context, userID string) (*RoleSwitchResult, error) {
	user, err := s.requireAccount(ctx, userID, domain.AccountBoth)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, user, domain.AccountDriver, domain.RoleDriver, "Account changed to driver only")
}

// SwitchBothToPassenger drops the driver capability of a dual-role account.
func (s *RoleService) SwitchBothToPassenger(ctx context.Context, userID string) (*RoleSwitchResult, error) {
	user, err := s.requireAccount(ctx, userID, domain.AccountBoth)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, user, domain.AccountPassenger, domain.RolePassenger, "Account changed to passenger only")
}

// SwitchDriverToBoth adds the passenger capability to a driver account.
func (s *RoleService) SwitchDriverToBoth(ctx context.Context, userID string) (*RoleSwitchResult, error) {
	user, err := s.requireAccount(ctx, userID, domain.AccountDriver)
	if err != nil {
		return nil, err
	}
	if _, err := s.profiles.EnsurePassengerProfile(ctx, user.ID); err != nil {
		return nil, err
	}
	return s.apply(ctx, user, domain.AccountBoth, user.CurrentActiveRole, "Account upgraded to passenger and driver")
}

// SwitchPassengerToBoth adds the driver capability to a passenger account.
func (s *RoleService) SwitchPassengerToBoth(ctx context.Context, userID string) (*RoleSwitchResult, error) {
	user, err := s.requireAccount(ctx, userID, domain.AccountPassenger)
	if err != nil {
		return nil, err
	}
	if _, err := s.profiles.EnsureDriverProfile(ctx, user.ID); err != nil {
		return nil, err
	}
	if _, err := s.profiles.EnsureLocation(ctx, user.ID); err != nil {
		return nil, err
	}
	return s.apply(ctx, user, domain.AccountBoth, user.CurrentActiveRole, "Account upgraded to passenger and driver")
}

// apply checks the active-ride guard for a change of role, then stores the change.
func (s *RoleService) apply(ctx context.Context, user *domain.User, accountType domain.AccountType, role domain.Role, message string) (*RoleSwitchResult, error) {
	downgrade := user.AccountType == domain.AccountBoth && accountType != domain.AccountBoth
	if role != user.CurrentActiveRole || downgrade {
		if err := s.guard(ctx, user.ID, role); err != nil {
			return nil, err
		}
	}

	if role == domain.RoleDriver {
		if _, err := s.profiles.EnsureLocation(ctx, user.ID); err != nil {
			return nil, err
		}
	}

	if err := s.userRepo.UpdateRole(ctx, user.ID, accountType, role, s.clock.Now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	s.logger.Info("role changed",
		zap.String("user_id", user.ID),
		zap.String("account_type", string(accountType)),
		zap.String("role", string(role)),
	)

	return &RoleSwitchResult{
		Success:     true,
		Message:     message,
		NewRole:     role,
		AccountType: accountType,
	}, nil
}

// guard rejects a move to role while the user has rides active in the other role.
func (s *RoleService) guard(ctx context.Context, userID string, role domain.Role) error {
	switch role {
	case domain.RoleDriver:
		n, err := s.rideRepo.CountByPassengerAndStatus(ctx, userID, domain.ActiveAsPassengerStatuses)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrActiveRidesAsPassenger
		}
	case domain.RolePassenger:
		n, err := s.rideRepo.CountByDriverAndStatus(ctx, userID, domain.ActiveAsDriverStatuses)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrActiveRidesAsDriver
		}
	}
	return nil
}

func (s *RoleService) requireAccount(ctx context.Context, userID string, want domain.AccountType) (*domain.User, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.AccountType != want {
		switch want {
		case domain.AccountBoth:
			return nil, ErrAccountNotBoth
		default:
			if user.AccountType == domain.AccountBoth {
				return nil, ErrAccountAlreadyBoth
			}
			return nil, errorf(ErrInvalidState, "only %s accounts can be upgraded this way", want)
		}
	}
	return user, nil
}

func (s *RoleService) getUser(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
