package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"taxitap/internal/domain"
	"taxitap/internal/repository"
)

// TripRepository is an in-memory implementation of repository.TripRepository.
type TripRepository struct {
	mu    sync.RWMutex
	trips map[string]*domain.Trip

	// Counters
	CreateCallCount int32
	CloseCallCount  int32

	// Error injection
	CreateError error
}

// NewTripRepository creates a new in-memory trip repository.
func NewTripRepository() *TripRepository {
	return &TripRepository{trips: make(map[string]*domain.Trip)}
}

// AddTrip stores a trip directly, bypassing the ongoing-trip constraint.
func (m *TripRepository) AddTrip(trip *domain.Trip) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *trip
	m.trips[trip.ID] = &c
}

func (m *TripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if trip.PassengerID != "" && trip.Ongoing() {
		for _, t := range m.trips {
			if t.PassengerID == trip.PassengerID && t.Ongoing() {
				return repository.ErrConflict
			}
		}
	}
	c := *trip
	m.trips[trip.ID] = &c
	return nil
}

func (m *TripRepository) GetOngoingByPassenger(ctx context.Context, passengerID string) (*domain.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *domain.Trip
	for _, t := range m.trips {
		if t.PassengerID != passengerID || !t.Ongoing() {
			continue
		}
		if latest == nil || t.StartTime.After(latest.StartTime) {
			latest = t
		}
	}
	if latest == nil {
		return nil, nil
	}
	c := *latest
	return &c, nil
}

func (m *TripRepository) Close(ctx context.Context, id string, endTime time.Time, fare float64) error {
	atomic.AddInt32(&m.CloseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[id]
	if !ok || !t.Ongoing() {
		return repository.ErrStaleState
	}
	t.EndTime = endTime
	t.Fare = fare
	return nil
}

func (m *TripRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[id]
	if !ok || !t.Ongoing() {
		return repository.ErrStaleState
	}
	delete(m.trips, id)
	return nil
}

func (m *TripRepository) ListByDriverBetween(ctx context.Context, driverID string, from, to time.Time) ([]*domain.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Trip
	for _, t := range m.trips {
		if t.DriverID == driverID && !t.StartTime.Before(from) && t.StartTime.Before(to) {
			c := *t
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

// GetTrip returns the stored trip for assertions.
func (m *TripRepository) GetTrip(id string) *domain.Trip {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.trips[id]; ok {
		c := *t
		return &c
	}
	return nil
}

// CountTrips returns the number of trips.
func (m *TripRepository) CountTrips() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.trips)
}

var _ repository.TripRepository = (*TripRepository)(nil)
