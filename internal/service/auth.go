package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"taxitap/internal/domain"
	"taxitap/internal/repository"
)

// AuthService registers accounts and logs users in.
type AuthService struct {
	userRepo repository.UserRepository
	profiles *ProfileService
	sessions *SessionService
	tokens   *TokenIssuer
	clock    Clock
	logger   *zap.Logger
	hashCost int
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	userRepo repository.UserRepository,
	profiles *ProfileService,
	sessions *SessionService,
	tokens *TokenIssuer,
	clock Clock,
	logger *zap.Logger,
) *AuthService {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		userRepo: userRepo,
		profiles: profiles,
		sessions: sessions,
		tokens:   tokens,
		clock:    clock,
		logger:   logger,
		hashCost: bcrypt.DefaultCost,
	}
}

// WithHashCost overrides the bcrypt cost.
func (s *AuthService) WithHashCost(cost int) *AuthService {
	s.hashCost = cost
	return s
}

// RegisterRequest contains the parameters for signing up.
type RegisterRequest struct {
	Name        string
	Phone       string
	Password    string
	AccountType domain.AccountType
}

// Register creates an account and the profiles its account type needs.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Name == "" || req.Phone == "" || req.Password == "" {
		return nil, ErrMissingSignUpField
	}
	if !req.AccountType.Valid() {
		return nil, ErrInvalidAccountType
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return nil, err
	}

	role := domain.RolePassenger
	if req.AccountType == domain.AccountDriver {
		role = domain.RoleDriver
	}

	now := s.clock.Now()
	user := &domain.User{
		ID:                uuid.New().String(),
		Name:              req.Name,
		Phone:             req.Phone,
		PasswordHash:      string(hash),
		AccountType:       req.AccountType,
		CurrentActiveRole: role,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrPhoneTaken
		}
		return nil, err
	}

	if user.AccountType.Allows(domain.RolePassenger) {
		if _, err := s.profiles.EnsurePassengerProfile(ctx, user.ID); err != nil {
			return nil, err
		}
	}
	if user.AccountType.Allows(domain.RoleDriver) {
		if _, err := s.profiles.EnsureDriverProfile(ctx, user.ID); err != nil {
			return nil, err
		}
		if _, err := s.profiles.EnsureLocation(ctx, user.ID); err != nil {
			return nil, err
		}
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("account_type", string(user.AccountType)))
	return user, nil
}

// LoginRequest contains the parameters for logging in.
type LoginRequest struct {
	Phone      string
	Password   string
	DeviceID   string
	DeviceName string
	Platform   string
}

// LoginResult contains the user, the device session if one was opened, and a token.
type LoginResult struct {
	User      *domain.User
	Session   *domain.DeviceSession
	Token     string
	ExpiresAt time.Time
}

// Login checks credentials and, when a device is given, opens its session in
// the user's current role.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	user, err := s.userRepo.GetByPhone(ctx, strings.TrimSpace(req.Phone))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	result := &LoginResult{User: user}
	if req.DeviceID != "" {
		session, err := s.sessions.CreateSession(ctx, CreateSessionRequest{
			UserID:     user.ID,
			DeviceID:   req.DeviceID,
			DeviceName: req.DeviceName,
			Platform:   req.Platform,
			Role:       user.CurrentActiveRole,
		})
		if err != nil {
			return nil, err
		}
		result.Session = session
	}

	result.Token, result.ExpiresAt, err = s.tokens.Issue(user, req.DeviceID)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Logout ends the user's session on a device.
func (s *AuthService) Logout(ctx context.Context, userID, deviceID string) error {
	_, err := s.sessions.Logout(ctx, userID, deviceID)
	return err
}

// GetUser retrieves a user by ID.
func (s *AuthService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
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
