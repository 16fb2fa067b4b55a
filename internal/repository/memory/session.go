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

// SessionRepository is an in-memory implementation of repository.SessionRepository.
type SessionRepository struct {
	mu       sync.RWMutex
	byDevice map[string]*domain.DeviceSession

	UpsertCallCount int32
	UpsertError     error
}

// NewSessionRepository creates a new in-memory session repository.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{byDevice: make(map[string]*domain.DeviceSession)}
}

func (m *SessionRepository) ListActiveByUser(ctx context.Context, userID string) ([]*domain.DeviceSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.DeviceSession
	for _, s := range m.byDevice {
		if s.UserID == userID && s.IsActive {
			c := *s
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out, nil
}

func (m *SessionRepository) GetByDeviceID(ctx context.Context, deviceID string) (*domain.DeviceSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byDevice[deviceID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (m *SessionRepository) Upsert(ctx context.Context, s *domain.DeviceSession) error {
	atomic.AddInt32(&m.UpsertCallCount, 1)
	if m.UpsertError != nil {
		return m.UpsertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.IsActive && s.Role == domain.RoleDriver {
		for deviceID, other := range m.byDevice {
			if deviceID != s.DeviceID && other.UserID == s.UserID && other.IsActive && other.Role == domain.RoleDriver {
				return repository.ErrConflict
			}
		}
	}

	existing, ok := m.byDevice[s.DeviceID]
	if ok && existing.IsActive && existing.UserID != s.UserID {
		return repository.ErrConflict
	}
	if ok {
		s.ID = existing.ID
		s.CreatedAt = existing.CreatedAt
	}
	c := *s
	m.byDevice[s.DeviceID] = &c
	return nil
}

func (m *SessionRepository) Touch(ctx context.Context, userID, deviceID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byDevice[deviceID]
	if !ok || !s.IsActive || s.UserID != userID {
		return repository.ErrNotFound
	}
	s.LastActivityAt = at
	return nil
}

func (m *SessionRepository) DeactivateByDevice(ctx context.Context, userID, deviceID string) (int64, error) {
	return m.deactivate(func(s *domain.DeviceSession) bool { return s.DeviceID == deviceID && s.UserID == userID }), nil
}

func (m *SessionRepository) DeactivateByUser(ctx context.Context, userID string) (int64, error) {
	return m.deactivate(func(s *domain.DeviceSession) bool { return s.UserID == userID }), nil
}

func (m *SessionRepository) DeactivateInactiveSince(ctx context.Context, cutoff time.Time) (int64, error) {
	return m.deactivate(func(s *domain.DeviceSession) bool { return s.LastActivityAt.Before(cutoff) }), nil
}

func (m *SessionRepository) deactivate(match func(*domain.DeviceSession) bool) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.byDevice {
		if s.IsActive && match(s) {
			s.IsActive = false
			n++
		}
	}
	return n
}

// CountActiveDriverSessions counts active driver-role sessions of a user.
func (m *SessionRepository) CountActiveDriverSessions(userID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.byDevice {
		if s.UserID == userID && s.IsActive && s.Role == domain.RoleDriver {
			n++
		}
	}
	return n
}

// WorkSessionRepository is an in-memory implementation of repository.WorkSessionRepository.
type WorkSessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*domain.WorkSession
}

// NewWorkSessionRepository creates a new in-memory work session repository.
func NewWorkSessionRepository() *WorkSessionRepository {
	return &WorkSessionRepository{sessions: make(map[string]*domain.WorkSession)}
}

// AddWorkSession stores a session directly.
func (m *WorkSessionRepository) AddWorkSession(ws *domain.WorkSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *ws
	m.sessions[ws.ID] = &c
}

func (m *WorkSessionRepository) Create(ctx context.Context, ws *domain.WorkSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.DriverID == ws.DriverID && s.Open() {
			return repository.ErrConflict
		}
	}
	c := *ws
	m.sessions[ws.ID] = &c
	return nil
}

func (m *WorkSessionRepository) GetOpenByDriver(ctx context.Context, driverID string) (*domain.WorkSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		if s.DriverID == driverID && s.Open() {
			c := *s
			return &c, nil
		}
	}
	return nil, nil
}

func (m *WorkSessionRepository) Close(ctx context.Context, id string, endTime time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || !s.Open() {
		return repository.ErrStaleState
	}
	s.EndTime = endTime
	return nil
}

func (m *WorkSessionRepository) ListByDriverBetween(ctx context.Context, driverID string, from, to time.Time) ([]*domain.WorkSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.WorkSession
	for _, s := range m.sessions {
		if s.DriverID == driverID && !s.StartTime.Before(from) && s.StartTime.Before(to) {
			c := *s
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

var (
	_ repository.SessionRepository     = (*SessionRepository)(nil)
	_ repository.WorkSessionRepository = (*WorkSessionRepository)(nil)
)
