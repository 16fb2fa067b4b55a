package service

import (
	"context"
	"errors"
	"math"

	"github.com/google/uuid"

	"taxitap/internal/domain"
	"taxitap/internal/repository"
)

// FeedbackService records passenger ratings of completed rides.
type FeedbackService struct {
	feedbackRepo repository.FeedbackRepository
	rideRepo     repository.RideRepository
	clock        Clock
}

// NewFeedbackService creates a new FeedbackService.
func NewFeedbackService(feedbackRepo repository.FeedbackRepository, rideRepo repository.RideRepository, clock Clock) *FeedbackService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &FeedbackService{feedbackRepo: feedbackRepo, rideRepo: rideRepo, clock: clock}
}

// SubmitFeedbackRequest contains the parameters for rating a ride.
type SubmitFeedbackRequest struct {
	RideID      string
	PassengerID string
	Rating      int
	Comment     string
}

// SubmitFeedback stores the passenger's rating. A ride can be rated once.
func (s *FeedbackService) SubmitFeedback(ctx context.Context, req SubmitFeedbackRequest) (*domain.Feedback, error) {
	if req.RideID == "" {
		return nil, ErrInvalidRideID
	}
	if req.Rating < 1 || req.Rating > 5 {
		return nil, ErrInvalidRating
	}

	ride, err := s.rideRepo.GetByID(ctx, req.RideID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRideNotFound
		}
		return nil, err
	}
	if ride.PassengerID != req.PassengerID {
		return nil, ErrNotRidePassenger
	}
	if ride.Status != domain.RideStatusCompleted {
		return nil, ErrRideNotCompleted
	}

	feedback := &domain.Feedback{
		ID:          uuid.New().String(),
		RideID:      ride.ID,
		PassengerID: ride.PassengerID,
		DriverID:    ride.DriverID,
		Rating:      req.Rating,
		Comment:     req.Comment,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.feedbackRepo.Create(ctx, feedback); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrFeedbackExists
		}
		return nil, err
	}
	return feedback, nil
}

// DriverFeedback is a driver's feedback with the average rating rounded to one decimal.
type DriverFeedback struct {
	Items         []*domain.Feedback
	AverageRating float64
}

// ListDriverFeedback returns a driver's feedback, newest first.
func (s *FeedbackService) ListDriverFeedback(ctx context.Context, driverID string) (*DriverFeedback, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	items, err := s.feedbackRepo.ListByDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}

	result := &DriverFeedback{Items: items}
	if len(items) > 0 {
		total := 0
		for _, f := range items {
			total += f.Rating
		}
		result.AverageRating = math.Round(float64(total)/float64(len(items))*10) / 10
	}
	return result, nil
}
