package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taxitap/internal/domain"
	"taxitap/internal/repository"
)

// TripService opens and settles trips.
type TripService struct {
	tripRepo repository.TripRepository
	rideRepo repository.RideRepository
	userRepo repository.UserRepository
	clock    Clock
	logger   *zap.Logger
}

// NewTripService creates a new TripService.
func NewTripService(
	tripRepo repository.TripRepository,
	rideRepo repository.RideRepository,
	userRepo repository.UserRepository,
	clock Clock,
	logger *zap.Logger,
) *TripService {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TripService{
		tripRepo: tripRepo,
		rideRepo: rideRepo,
		userRepo: userRepo,
		clock:    clock,
		logger:   logger,
	}
}

// StartTripRequest contains the parameters for starting a trip.
type StartTripRequest struct {
	PassengerID string
	DriverID    string
	Reservation bool

	// RideID links this exact ride. When empty, the newest ride of the
	// passenger/driver pair without a trip is linked, if any.
	RideID string
}

// StartTripResult contains the opened trip and the ride it was linked to.
type StartTripResult struct {
	Trip   *domain.Trip
	RideID string
}

// StartDriverTrip opens a trip on behalf of a driver who is currently acting as one.
func (s *TripService) StartDriverTrip(ctx context.Context, req StartTripRequest) (*StartTripResult, error) {
	if req.DriverID == "" {
		return nil, ErrInvalidDriverID
	}

	driver, err := s.userRepo.GetByID(ctx, req.DriverID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if driver.CurrentActiveRole != domain.RoleDriver {
		return nil, ErrNotActingAsDriver
	}
	return s.StartTrip(ctx, req)
}

// StartTrip opens a trip with a zero fare and links it to a ride.
func (s *TripService) StartTrip(ctx context.Context, req StartTripRequest) (*StartTripResult, error) {
	if req.DriverID == "" {
		return nil, ErrInvalidDriverID
	}
	if req.RideID != "" && req.PassengerID == "" {
		return nil, ErrInvalidPassengerID
	}

	trip := &domain.Trip{
		ID:          uuid.New().String(),
		DriverID:    req.DriverID,
		PassengerID: req.PassengerID,
		StartTime:   s.clock.Now(),
		Reservation: req.Reservation,
	}

	if err := s.tripRepo.Create(ctx, trip); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrTripAlreadyOngoing
		}
		return nil, err
	}

	result := &StartTripResult{Trip: trip}
	if req.PassengerID == "" {
		return result, nil
	}

	if req.RideID != "" {
		err := s.rideRepo.LinkTrip(ctx, req.RideID, trip.ID)
		if err != nil {
			// The ride belongs to another trip; do not leave this one open.
			s.abort(ctx, trip.ID)
			if errors.Is(err, repository.ErrStaleState) {
				return nil, errorf(ErrConflict, "ride %s is already linked to a trip", req.RideID)
			}
			return nil, err
		}
		result.RideID = req.RideID
		return result, nil
	}

	rideID, err := s.rideRepo.LinkLatestUnlinked(ctx, req.PassengerID, req.DriverID, trip.ID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		s.logger.Info("trip started without a ride to link",
			zap.String("trip_id", trip.ID),
			zap.String("passenger_id", req.PassengerID),
			zap.String("driver_id", req.DriverID),
		)
	case err != nil:
		s.abort(ctx, trip.ID)
		return nil, err
	default:
		result.RideID = rideID
	}

	return result, nil
}

// EndTripResult contains the settled end time and fare.
type EndTripResult struct {
	TripID  string
	EndTime time.Time
	Fare    float64
}

// EndTrip closes the passenger's ongoing trip with the estimated fare of its
// ride. The caller must be the trip's passenger or driver; an empty
// passengerID means the caller.
func (s *TripService) EndTrip(ctx context.Context, callerID, passengerID string) (*EndTripResult, error) {
	if callerID == "" {
		return nil, ErrInvalidUserID
	}
	if passengerID == "" {
		passengerID = callerID
	}

	trip, err := s.tripRepo.GetOngoingByPassenger(ctx, passengerID)
	if err != nil {
		return nil, err
	}
	if trip == nil {
		return nil, ErrNoOngoingTrip
	}
	if callerID != trip.PassengerID && callerID != trip.DriverID {
		return nil, ErrNotTripParticipant
	}

	ride, err := s.rideRepo.GetByTripID(ctx, trip.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEstimatedFareMissing
		}
		return nil, err
	}
	if ride.EstimatedFare == nil {
		return nil, ErrEstimatedFareMissing
	}

	endTime := s.clock.Now()
	fare := *ride.EstimatedFare
	if err := s.tripRepo.Close(ctx, trip.ID, endTime, fare); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, ErrNoOngoingTrip
		}
		return nil, err
	}

	return &EndTripResult{TripID: trip.ID, EndTime: endTime, Fare: fare}, nil
}

// CloseTrip closes a trip with the given fare. It reports false if the trip
// had already been closed.
func (s *TripService) CloseTrip(ctx context.Context, tripID string, fare float64) (bool, error) {
	err := s.tripRepo.Close(ctx, tripID, s.clock.Now(), fare)
	if errors.Is(err, repository.ErrStaleState) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// HasOngoingTrip reports whether the passenger has a trip that has not ended.
func (s *TripService) HasOngoingTrip(ctx context.Context, passengerID string) (bool, error) {
	trip, err := s.tripRepo.GetOngoingByPassenger(ctx, passengerID)
	if err != nil {
		return false, err
	}
	return trip != nil, nil
}

// abort removes a trip that never got its ride, so it cannot count as earnings.
func (s *TripService) abort(ctx context.Context, tripID string) {
	if err := s.tripRepo.Delete(ctx, tripID); err != nil {
		s.logger.Error("failed to abort trip", zap.String("trip_id", tripID), zap.Error(err))
	}
}
