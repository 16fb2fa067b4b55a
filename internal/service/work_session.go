package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"taxitap/internal/domain"
	"taxitap/internal/repository"
)

// WorkSessionService records when drivers go online and offline.
type WorkSessionService struct {
	workRepo repository.WorkSessionRepository
	clock    Clock
}

// NewWorkSessionService creates a new WorkSessionService.
func NewWorkSessionService(workRepo repository.WorkSessionRepository, clock Clock) *WorkSessionService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &WorkSessionService{workRepo: workRepo, clock: clock}
}

// Start opens a work session. If one is already open it is returned unchanged.
func (s *WorkSessionService) Start(ctx context.Context, driverID string) (*domain.WorkSession, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	open, err := s.workRepo.GetOpenByDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return open, nil
	}

	session := &domain.WorkSession{
		ID:        uuid.New().String(),
		DriverID:  driverID,
		StartTime: s.clock.Now(),
	}
	if err := s.workRepo.Create(ctx, session); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// Lost a race with a concurrent start.
			return s.workRepo.GetOpenByDriver(ctx, driverID)
		}
		return nil, err
	}
	return session, nil
}

// End closes the driver's open work session.
func (s *WorkSessionService) End(ctx context.Context, driverID string) (*domain.WorkSession, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	open, err := s.workRepo.GetOpenByDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if open == nil {
		return nil, ErrNoOpenWorkSession
	}

	endTime := s.clock.Now()
	if err := s.workRepo.Close(ctx, open.ID, endTime); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, ErrNoOpenWorkSession
		}
		return nil, err
	}
	open.EndTime = endTime
	return open, nil
}
