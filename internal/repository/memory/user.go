package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"taxitap/internal/domain"
	"taxitap/internal/repository"
)

// UserRepository is an in-memory implementation of repository.UserRepository.
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User
}

// NewUserRepository creates a new in-memory user repository.
func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]*domain.User)}
}

// AddUser stores a user directly.
func (m *UserRepository) AddUser(user *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *user
	m.users[user.ID] = &c
}

func (m *UserRepository) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Phone == user.Phone {
			return repository.ErrConflict
		}
	}
	c := *user
	m.users[user.ID] = &c
	return nil
}

func (m *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (m *UserRepository) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Phone == phone {
			c := *u
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *UserRepository) UpdateRole(ctx context.Context, id string, accountType domain.AccountType, role domain.Role, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.AccountType = accountType
	u.CurrentActiveRole = role
	u.LastRoleSwitchAt = at
	u.UpdatedAt = at
	return nil
}

// ProfileRepository is an in-memory implementation of repository.ProfileRepository.
type ProfileRepository struct {
	mu         sync.RWMutex
	drivers    map[string]*domain.Driver
	passengers map[string]*domain.Passenger
	locations  map[string]*domain.Location
}

// NewProfileRepository creates a new in-memory profile repository.
func NewProfileRepository() *ProfileRepository {
	return &ProfileRepository{
		drivers:    make(map[string]*domain.Driver),
		passengers: make(map[string]*domain.Passenger),
		locations:  make(map[string]*domain.Location),
	}
}

func (m *ProfileRepository) EnsurePassenger(ctx context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.passengers[userID]; ok {
		return false, nil
	}
	m.passengers[userID] = &domain.Passenger{UserID: userID, CreatedAt: time.Now()}
	return true, nil
}

func (m *ProfileRepository) EnsureDriver(ctx context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.drivers[userID]; ok {
		return false, nil
	}
	m.drivers[userID] = &domain.Driver{UserID: userID, CreatedAt: time.Now()}
	return true, nil
}

func (m *ProfileRepository) EnsureLocation(ctx context.Context, userID string, lat, lng float64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.locations[userID]; ok {
		return false, nil
	}
	m.locations[userID] = &domain.Location{UserID: userID, Latitude: lat, Longitude: lng, UpdatedAt: time.Now()}
	return true, nil
}

func (m *ProfileRepository) GetDriver(ctx context.Context, userID string) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drivers[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *d
	return &c, nil
}

func (m *ProfileRepository) GetPassenger(ctx context.Context, userID string) (*domain.Passenger, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.passengers[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (m *ProfileRepository) GetLocation(ctx context.Context, userID string) (*domain.Location, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.locations[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *l
	return &c, nil
}

func (m *ProfileRepository) IncrementRideCounters(ctx context.Context, driverID, passengerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.drivers[driverID]; ok {
		d.NumberOfRides++
	}
	if p, ok := m.passengers[passengerID]; ok {
		p.NumberOfRidesTaken++
	}
	return nil
}

// FeedbackRepository is an in-memory implementation of repository.FeedbackRepository.
type FeedbackRepository struct {
	mu     sync.RWMutex
	byRide map[string]*domain.Feedback
}

// NewFeedbackRepository creates a new in-memory feedback repository.
func NewFeedbackRepository() *FeedbackRepository {
	return &FeedbackRepository{byRide: make(map[string]*domain.Feedback)}
}

func (m *FeedbackRepository) Create(ctx context.Context, f *domain.Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byRide[f.RideID]; ok {
		return repository.ErrConflict
	}
	c := *f
	m.byRide[f.RideID] = &c
	return nil
}

func (m *FeedbackRepository) ListByDriver(ctx context.Context, driverID string) ([]*domain.Feedback, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Feedback
	for _, f := range m.byRide {
		if f.DriverID == driverID {
			c := *f
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

var (
	_ repository.UserRepository     = (*UserRepository)(nil)
	_ repository.ProfileRepository  = (*ProfileRepository)(nil)
	_ repository.FeedbackRepository = (*FeedbackRepository)(nil)
)
