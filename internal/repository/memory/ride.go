// Package memory provides in-process implementations of the repository
// interfaces. Each store applies the same uniqueness and compare-and-swap
// rules as the Postgres schema, under a single mutex per store.
package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"taxitap/internal/domain"
	"taxitap/internal/repository"
)

// RideRepository is an in-memory implementation of repository.RideRepository.
type RideRepository struct {
	mu    sync.RWMutex
	rides map[string]*domain.Ride

	// Counters for verification
	CreateCallCount int32
	UpdateCallCount int32

	// Error injection
	CreateError error
	UpdateError error
}

// NewRideRepository creates a new in-memory ride repository.
func NewRideRepository() *RideRepository {
	return &RideRepository{rides: make(map[string]*domain.Ride)}
}

// AddRide stores a ride directly, bypassing counters.
func (m *RideRepository) AddRide(ride *domain.Ride) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[ride.ID] = copyRide(ride)
}

func (m *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[ride.ID] = copyRide(ride)
	return nil
}

func (m *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ride, ok := m.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyRide(ride), nil
}

func (m *RideRepository) GetByTripID(ctx context.Context, tripID string) (*domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rides {
		if tripID != "" && r.TripID == tripID {
			return copyRide(r), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *RideRepository) ListByPassenger(ctx context.Context, passengerID string) ([]*domain.Ride, error) {
	return m.filter(func(r *domain.Ride) bool { return r.PassengerID == passengerID }), nil
}

func (m *RideRepository) ListByDriver(ctx context.Context, driverID string) ([]*domain.Ride, error) {
	return m.filter(func(r *domain.Ride) bool { return r.DriverID == driverID }), nil
}

func (m *RideRepository) CountByPassengerAndStatus(ctx context.Context, passengerID string, statuses []domain.RideStatus) (int, error) {
	return len(m.filter(func(r *domain.Ride) bool {
		return r.PassengerID == passengerID && hasStatus(statuses, r.Status)
	})), nil
}

func (m *RideRepository) CountByDriverAndStatus(ctx context.Context, driverID string, statuses []domain.RideStatus) (int, error) {
	return len(m.filter(func(r *domain.Ride) bool {
		return r.DriverID == driverID && hasStatus(statuses, r.Status)
	})), nil
}

func (m *RideRepository) Update(ctx context.Context, ride *domain.Ride) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.rides[ride.ID]
	if !ok || stored.Version != ride.Version {
		return repository.ErrStaleState
	}
	ride.Version++
	m.rides[ride.ID] = copyRide(ride)
	return nil
}

func (m *RideRepository) LinkTrip(ctx context.Context, rideID, tripID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.rides[rideID]
	if !ok || stored.TripID != "" {
		return repository.ErrStaleState
	}
	stored.TripID = tripID
	stored.Version++
	return nil
}

func (m *RideRepository) LinkLatestUnlinked(ctx context.Context, passengerID, driverID, tripID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *domain.Ride
	for _, r := range m.rides {
		if r.PassengerID != passengerID || r.DriverID != driverID || r.TripID != "" {
			continue
		}
		if latest == nil || r.RequestedAt.After(latest.RequestedAt) {
			latest = r
		}
	}
	if latest == nil {
		return "", repository.ErrNotFound
	}
	latest.TripID = tripID
	latest.Version++
	return latest.ID, nil
}

// GetRide returns the stored ride for test assertions.
func (m *RideRepository) GetRide(id string) *domain.Ride {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.rides[id]; ok {
		return copyRide(r)
	}
	return nil
}

// CountRides returns the number of rides.
func (m *RideRepository) CountRides() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rides)
}

func (m *RideRepository) filter(keep func(*domain.Ride) bool) []*domain.Ride {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Ride
	for _, r := range m.rides {
		if keep(r) {
			out = append(out, copyRide(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	return out
}

func hasStatus(statuses []domain.RideStatus, s domain.RideStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func copyRide(r *domain.Ride) *domain.Ride {
	c := *r
	if r.EstimatedFare != nil {
		v := *r.EstimatedFare
		c.EstimatedFare = &v
	}
	if r.FinalFare != nil {
		v := *r.FinalFare
		c.FinalFare = &v
	}
	return &c
}

var _ repository.RideRepository = (*RideRepository)(nil)
