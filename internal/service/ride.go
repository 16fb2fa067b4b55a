package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taxitap/internal/domain"
	"taxitap/internal/redis"
	"taxitap/internal/repository"
)

// TripSettler opens and closes the trips that back rides.
type TripSettler interface {
	StartTrip(ctx context.Context, req StartTripRequest) (*StartTripResult, error)
	CloseTrip(ctx context.Context, tripID string, fare float64) (bool, error)
	HasOngoingTrip(ctx context.Context, passengerID string) (bool, error)
}

// Ensure TripService implements TripSettler.
var _ TripSettler = (*TripService)(nil)

var pinPattern = regexp.MustCompile(`^\d{4}$`)

// maxCASRetries bounds the re-read loop of versioned ride updates.
const maxCASRetries = 3

// RideConfig tunes PIN verification.
type RideConfig struct {
	MaxPinAttempts int
	PinLockoutTTL  time.Duration
	LockTTL        time.Duration
}

// DefaultRideConfig returns the production defaults.
func DefaultRideConfig() RideConfig {
	return RideConfig{
		MaxPinAttempts: 3,
		PinLockoutTTL:  15 * time.Minute,
		LockTTL:        10 * time.Second,
	}
}

// RideService owns the ride lifecycle.
type RideService struct {
	rideRepo            repository.RideRepository
	userRepo            repository.UserRepository
	profileRepo         repository.ProfileRepository
	trips               TripSettler
	attempts            redis.AttemptStoreInterface
	locks               redis.LockStoreInterface
	notificationService *NotificationService
	clock               Clock
	logger              *zap.Logger
	cfg                 RideConfig
}

// NewRideService creates a new RideService.
func NewRideService(
	rideRepo repository.RideRepository,
	userRepo repository.UserRepository,
	profileRepo repository.ProfileRepository,
	trips TripSettler,
	attempts redis.AttemptStoreInterface,
	locks redis.LockStoreInterface,
	notificationService *NotificationService,
	clock Clock,
	logger *zap.Logger,
	cfg RideConfig,
) *RideService {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxPinAttempts <= 0 {
		cfg.MaxPinAttempts = DefaultRideConfig().MaxPinAttempts
	}
	return &RideService{
		rideRepo:            rideRepo,
		userRepo:            userRepo,
		profileRepo:         profileRepo,
		trips:               trips,
		attempts:            attempts,
		locks:               locks,
		notificationService: notificationService,
		clock:               clock,
		logger:              logger,
		cfg:                 cfg,
	}
}

// RequestRideRequest contains the parameters for requesting a ride.
type RequestRideRequest struct {
	PassengerID   string
	DriverID      string // optional: request a specific driver
	RouteID       string
	Pickup        string
	Destination   string
	EstimatedFare *float64
}

// RequestRide creates a ride in requested state.
func (s *RideService) RequestRide(ctx context.Context, req RequestRideRequest) (*domain.Ride, error) {
	if req.PassengerID == "" {
		return nil, ErrInvalidPassengerID
	}
	if req.EstimatedFare != nil && *req.EstimatedFare < 0 {
		return nil, ErrInvalidFare
	}
	if req.DriverID == req.PassengerID {
		return nil, newError(ErrValidation, "cannot request a ride from yourself")
	}

	passenger, err := s.getUser(ctx, req.PassengerID)
	if err != nil {
		return nil, err
	}
	if passenger.CurrentActiveRole != domain.RolePassenger {
		return nil, ErrNotActingAsPassenger
	}

	active, err := s.rideRepo.CountByPassengerAndStatus(ctx, req.PassengerID, domain.ActiveAsPassengerStatuses)
	if err != nil {
		return nil, err
	}
	if active > 0 {
		return nil, ErrActiveRideExists
	}

	now := s.clock.Now()
	ride := &domain.Ride{
		ID:            uuid.New().String(),
		PassengerID:   req.PassengerID,
		DriverID:      req.DriverID,
		RouteID:       req.RouteID,
		Pickup:        req.Pickup,
		Destination:   req.Destination,
		Status:        domain.RideStatusRequested,
		RequestedAt:   now,
		EstimatedFare: req.EstimatedFare,
		UpdatedAt:     now,
	}

	if err := s.rideRepo.Create(ctx, ride); err != nil {
		return nil, err
	}

	if s.notificationService != nil {
		_ = s.notificationService.NotifyRideRequested(ctx, ride)
	}

	return ride, nil
}

// AcceptRide assigns the driver, moves the ride to accepted and issues a PIN.
func (s *RideService) AcceptRide(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	pin, err := generatePin()
	if err != nil {
		return nil, err
	}

	var driver *domain.User
	ride, err := s.mutate(ctx, rideID, func(r *domain.Ride) (bool, error) {
		if r.Status != domain.RideStatusRequested {
			return false, ErrRideNotRequested
		}
		if r.DriverID != "" && r.DriverID != driverID {
			return false, ErrNotTargetedDriver
		}
		if r.PassengerID == driverID {
			return false, newError(ErrValidation, "cannot accept your own ride")
		}
		if driver == nil {
			d, err := s.getUser(ctx, driverID)
			if err != nil {
				return false, err
			}
			driver = d
		}
		if driver.CurrentActiveRole != domain.RoleDriver {
			return false, ErrNotActingAsDriver
		}

		now := s.clock.Now()
		r.DriverID = driverID
		r.Status = domain.RideStatusAccepted
		r.AcceptedAt = now
		r.RidePin = pin
		r.UpdatedAt = now
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.resetAttempts(ctx, ride.ID)

	if s.notificationService != nil {
		_ = s.notificationService.NotifyRideAccepted(ctx, ride)
	}

	s.logger.Info("ride accepted", zap.String("ride_id", ride.ID), zap.String("driver_id", driverID))
	return ride, nil
}

// RegeneratePinResult contains the new PIN and the updated ride.
type RegeneratePinResult struct {
	Success bool
	NewPin  string
	Ride    *domain.Ride
}

// RegeneratePin replaces the ride's PIN in any status and clears failed attempts.
func (s *RideService) RegeneratePin(ctx context.Context, rideID string) (*RegeneratePinResult, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	pin, err := generatePin()
	if err != nil {
		return nil, err
	}

	release, err := s.lock(ctx, redis.RideLockKey(rideID))
	if err != nil {
		return nil, err
	}
	defer release()

	ride, err := s.mutate(ctx, rideID, func(r *domain.Ride) (bool, error) {
		now := s.clock.Now()
		r.RidePin = pin
		r.PinRegeneratedAt = now
		r.UpdatedAt = now
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.resetAttempts(ctx, ride.ID)

	if s.notificationService != nil {
		_ = s.notificationService.NotifyPinRegenerated(ctx, ride)
	}

	return &RegeneratePinResult{Success: true, NewPin: pin, Ride: ride}, nil
}

// PinParty identifies who submits a PIN for verification.
type PinParty int

const (
	// PinByDriver means the driver enters the PIN shown by the passenger.
	PinByDriver PinParty = iota
	// PinByPassenger means the passenger enters the PIN shown by the driver.
	PinByPassenger
)

// VerifyPinRequest contains the parameters for verifying a ride PIN.
type VerifyPinRequest struct {
	RideID      string
	RequesterID string
	EnteredPin  string
	Party       PinParty
}

// VerifyPinResult is the outcome of a PIN check. A wrong PIN yields
// Success=false with no error.
type VerifyPinResult struct {
	Success           bool
	Message           string
	AttemptsRemaining int
	Ride              *domain.Ride
	TripID            string
}

// VerifyPin checks the entered PIN and, on a match, starts the ride and opens its trip.
// Repeating a successful verification returns the same result.
func (s *RideService) VerifyPin(ctx context.Context, req VerifyPinRequest) (*VerifyPinResult, error) {
	if req.RideID == "" {
		return nil, ErrInvalidRideID
	}
	if req.RequesterID == "" {
		return nil, ErrInvalidUserID
	}
	if !pinPattern.MatchString(req.EnteredPin) {
		return nil, ErrInvalidPinFormat
	}

	release, err := s.lock(ctx, redis.RideLockKey(req.RideID))
	if err != nil {
		return nil, err
	}
	defer release()

	ride, err := s.GetRide(ctx, req.RideID)
	if err != nil {
		return nil, err
	}

	switch req.Party {
	case PinByDriver:
		if ride.DriverID != req.RequesterID {
			return nil, ErrNotAssignedDriver
		}
	case PinByPassenger:
		if ride.PassengerID != req.RequesterID {
			return nil, ErrNotRidePassenger
		}
	default:
		return nil, ErrNotRideParticipant
	}

	if ride.Status == domain.RideStatusInProgress && ride.RidePin == req.EnteredPin {
		if ride.TripID == "" {
			s.openTrip(ctx, ride)
		}
		return s.verified(ride), nil
	}

	if ride.Status != domain.RideStatusAccepted {
		return nil, ErrRideNotAccepted
	}

	if s.attempts != nil {
		failed, err := s.attempts.Count(ctx, ride.ID)
		if err != nil {
			return nil, err
		}
		if failed >= s.cfg.MaxPinAttempts {
			return nil, ErrPinLocked
		}
	}

	if req.EnteredPin != ride.RidePin {
		return s.rejectPin(ctx, ride.ID)
	}

	ongoing, err := s.trips.HasOngoingTrip(ctx, ride.PassengerID)
	if err != nil {
		return nil, err
	}
	if ongoing {
		return nil, ErrTripAlreadyOngoing
	}

	ride, err = s.mutate(ctx, ride.ID, func(r *domain.Ride) (bool, error) {
		if r.Status != domain.RideStatusAccepted {
			return false, ErrRideNotAccepted
		}
		if r.RidePin != req.EnteredPin {
			return false, ErrPinReplaced
		}
		now := s.clock.Now()
		r.Status = domain.RideStatusInProgress
		r.StartedAt = now
		r.PinVerifiedAt = now
		r.UpdatedAt = now
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.resetAttempts(ctx, ride.ID)
	s.openTrip(ctx, ride)

	if s.notificationService != nil {
		_ = s.notificationService.NotifyRideStarted(ctx, ride)
	}

	return s.verified(ride), nil
}

func (s *RideService) verified(ride *domain.Ride) *VerifyPinResult {
	return &VerifyPinResult{
		Success:           true,
		Message:           "PIN verified successfully. Ride started.",
		AttemptsRemaining: s.cfg.MaxPinAttempts,
		Ride:              ride,
		TripID:            ride.TripID,
	}
}

func (s *RideService) rejectPin(ctx context.Context, rideID string) (*VerifyPinResult, error) {
	remaining := s.cfg.MaxPinAttempts
	if s.attempts != nil {
		failed, err := s.attempts.Increment(ctx, rideID, s.cfg.PinLockoutTTL)
		if err != nil {
			return nil, err
		}
		remaining = max(s.cfg.MaxPinAttempts-failed, 0)
	}

	msg := fmt.Sprintf("Incorrect PIN. %d attempts remaining.", remaining)
	if remaining == 0 {
		msg = "Incorrect PIN. No attempts remaining, request a new PIN."
	}
	return &VerifyPinResult{Success: false, Message: msg, AttemptsRemaining: remaining}, nil
}

// openTrip opens and links the ride's trip. The ride has already started,
// so failures are logged and left for a repeated verification to retry.
func (s *RideService) openTrip(ctx context.Context, ride *domain.Ride) {
	result, err := s.trips.StartTrip(ctx, StartTripRequest{
		PassengerID: ride.PassengerID,
		DriverID:    ride.DriverID,
		RideID:      ride.ID,
	})
	if err != nil {
		s.logger.Error("failed to open trip after PIN verification",
			zap.String("ride_id", ride.ID),
			zap.Error(err),
		)
		return
	}
	ride.TripID = result.Trip.ID
}

// DeclineRide moves a requested or accepted ride to declined.
func (s *RideService) DeclineRide(ctx context.Context, rideID, userID, reason string) (*domain.Ride, error) {
	ride, err := s.finish(ctx, rideID, userID, domain.RideStatusDeclined, func(r *domain.Ride, now time.Time) {
		r.DeclinedAt = now
		r.CancelReason = reason
	})
	if err != nil {
		return nil, err
	}

	if s.notificationService != nil {
		_ = s.notificationService.NotifyRideDeclined(ctx, ride, userID)
	}
	return ride, nil
}

// CancelRide cancels a ride that has not finished. A running trip is closed with no fare.
func (s *RideService) CancelRide(ctx context.Context, rideID, userID, reason string) (*domain.Ride, error) {
	var wasInProgress bool
	ride, err := s.finish(ctx, rideID, userID, domain.RideStatusCancelled, func(r *domain.Ride, now time.Time) {
		wasInProgress = r.Status == domain.RideStatusInProgress
		r.CancelledAt = now
		r.CancelReason = reason
	})
	if err != nil {
		return nil, err
	}

	if wasInProgress && ride.TripID != "" {
		if _, err := s.trips.CloseTrip(ctx, ride.TripID, 0); err != nil {
			s.logger.Error("failed to close trip of cancelled ride",
				zap.String("ride_id", ride.ID),
				zap.String("trip_id", ride.TripID),
				zap.Error(err),
			)
		}
	}

	if s.notificationService != nil {
		_ = s.notificationService.NotifyRideCancelled(ctx, ride, userID)
	}
	return ride, nil
}

// finish moves a ride to a terminal status on behalf of one of its participants.
func (s *RideService) finish(ctx context.Context, rideID, userID string, next domain.RideStatus, stamp func(*domain.Ride, time.Time)) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	if userID == "" {
		return nil, ErrInvalidUserID
	}

	return s.mutate(ctx, rideID, func(r *domain.Ride) (bool, error) {
		if !r.IsParticipant(userID) {
			return false, ErrNotRideParticipant
		}
		if r.Status.IsTerminal() {
			return false, ErrRideFinished
		}
		if !r.Status.CanTransition(next) {
			return false, errorf(ErrInvalidState, "ride cannot be %s while %s", next, r.Status)
		}
		now := s.clock.Now()
		stamp(r, now)
		r.Status = next
		r.UpdatedAt = now
		return true, nil
	})
}

// CompleteRide completes an in-progress ride on behalf of its driver.
func (s *RideService) CompleteRide(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	return s.complete(ctx, rideID, driverID, PinByDriver)
}

// EndRide completes an in-progress ride on behalf of its passenger.
func (s *RideService) EndRide(ctx context.Context, rideID, passengerID string) (*domain.Ride, error) {
	return s.complete(ctx, rideID, passengerID, PinByPassenger)
}

func (s *RideService) complete(ctx context.Context, rideID, userID string, party PinParty) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	if userID == "" {
		return nil, ErrInvalidUserID
	}

	ride, err := s.mutate(ctx, rideID, func(r *domain.Ride) (bool, error) {
		if party == PinByDriver && r.DriverID != userID {
			return false, ErrNotAssignedDriver
		}
		if party == PinByPassenger && r.PassengerID != userID {
			return false, ErrNotRidePassenger
		}
		if r.Status.IsTerminal() {
			return false, ErrRideFinished
		}
		if r.Status != domain.RideStatusInProgress {
			return false, ErrRideNotInProgress
		}

		now := s.clock.Now()
		r.Status = domain.RideStatusCompleted
		r.CompletedAt = now
		r.UpdatedAt = now
		if r.EstimatedFare != nil {
			fare := *r.EstimatedFare
			r.FinalFare = &fare
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if ride.TripID != "" {
		fare := 0.0
		if ride.FinalFare != nil {
			fare = *ride.FinalFare
		}
		if _, err := s.trips.CloseTrip(ctx, ride.TripID, fare); err != nil {
			s.logger.Error("failed to close trip of completed ride",
				zap.String("ride_id", ride.ID),
				zap.String("trip_id", ride.TripID),
				zap.Error(err),
			)
		}
	}

	if err := s.profileRepo.IncrementRideCounters(ctx, ride.DriverID, ride.PassengerID); err != nil {
		s.logger.Error("failed to update ride counters", zap.String("ride_id", ride.ID), zap.Error(err))
	}

	if s.notificationService != nil {
		_ = s.notificationService.NotifyRideCompleted(ctx, ride)
	}

	return ride, nil
}

// ConfirmPayment records whether the passenger paid. ref is a ride ID or the
// ID of the trip linked to the ride. Repeating a call with the same flag
// does not write.
func (s *RideService) ConfirmPayment(ctx context.Context, ref, passengerID string, paid bool) (*domain.Ride, error) {
	if ref == "" {
		return nil, ErrInvalidRideID
	}
	if passengerID == "" {
		return nil, ErrInvalidPassengerID
	}

	ride, err := s.rideRepo.GetByID(ctx, ref)
	if errors.Is(err, repository.ErrNotFound) {
		ride, err = s.rideRepo.GetByTripID(ctx, ref)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRideNotFound
		}
		return nil, err
	}
	if ride.PassengerID != passengerID {
		return nil, ErrNotRidePassenger
	}

	changed := false
	ride, err = s.mutate(ctx, ride.ID, func(r *domain.Ride) (bool, error) {
		if r.PassengerID != passengerID {
			return false, ErrNotRidePassenger
		}
		if r.TripPaid == paid && !r.PaymentConfirmedAt.IsZero() {
			return false, nil
		}
		now := s.clock.Now()
		r.TripPaid = paid
		r.PaymentConfirmedAt = now
		r.UpdatedAt = now
		changed = true
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if changed && s.notificationService != nil {
		_ = s.notificationService.NotifyPaymentConfirmed(ctx, ride)
	}
	return ride, nil
}

// GetRide retrieves a ride by ID.
func (s *RideService) GetRide(ctx context.Context, rideID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRideNotFound
		}
		return nil, err
	}
	return ride, nil
}

// ListPassengerRides returns a passenger's rides, newest first.
func (s *RideService) ListPassengerRides(ctx context.Context, passengerID string) ([]*domain.Ride, error) {
	if passengerID == "" {
		return nil, ErrInvalidPassengerID
	}
	return s.rideRepo.ListByPassenger(ctx, passengerID)
}

// ListDriverRides returns a driver's rides, newest first.
func (s *RideService) ListDriverRides(ctx context.Context, driverID string) ([]*domain.Ride, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}
	return s.rideRepo.ListByDriver(ctx, driverID)
}

// mutate applies fn to a fresh copy of the ride and stores it if no other
// write landed in between, re-reading on conflict. fn re-checks its
// preconditions on every attempt and returns false to skip the write.
func (s *RideService) mutate(ctx context.Context, rideID string, fn func(*domain.Ride) (bool, error)) (*domain.Ride, error) {
	for attempt := 0; attempt < maxCASRetries; attempt++ {
		ride, err := s.GetRide(ctx, rideID)
		if err != nil {
			return nil, err
		}

		write, err := fn(ride)
		if err != nil {
			return nil, err
		}
		if !write {
			return ride, nil
		}

		err = s.rideRepo.Update(ctx, ride)
		if err == nil {
			return ride, nil
		}
		if !errors.Is(err, repository.ErrStaleState) {
			return nil, err
		}
	}
	return nil, ErrBusy
}

func (s *RideService) lock(ctx context.Context, key string) (func(), error) {
	if s.locks == nil {
		return func() {}, nil
	}

	token, ok, err := s.locks.AcquireLock(ctx, key, s.cfg.LockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBusy
	}

	return func() {
		if err := s.locks.ReleaseLock(context.WithoutCancel(ctx), key, token); err != nil {
			s.logger.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

func (s *RideService) resetAttempts(ctx context.Context, rideID string) {
	if s.attempts == nil {
		return
	}
	if err := s.attempts.Reset(ctx, rideID); err != nil {
		s.logger.Warn("failed to reset PIN attempts", zap.String("ride_id", rideID), zap.Error(err))
	}
}

func (s *RideService) getUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// generatePin returns a random four-digit PIN in [1000, 9999].
func generatePin() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", fmt.Errorf("generate pin: %w", err)
	}
	return fmt.Sprintf("%d", 1000+n.Int64()), nil
}
