package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"taxitap/internal/domain"
	"taxitap/internal/repository/memory"
	"taxitap/internal/service"
)

// wednesday is 2026-10-14 15:00 UTC; its week starts Monday 2026-10-12.
var wednesday = time.Date(2026, 10, 14, 15, 0, 0, 0, time.UTC)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock(now time.Time) *fixedClock {
	return &fixedClock{now: now}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingSender captures notifications.
type recordingSender struct {
	mu   sync.Mutex
	sent []service.Notification
}

func (s *recordingSender) Send(ctx context.Context, n service.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return nil
}

func (s *recordingSender) Types() []service.NotificationType {
	s.mu.Lock()
	defer s.mu.Unlock()
	var types []service.NotificationType
	for _, n := range s.sent {
		types = append(types, n.Type)
	}
	return types
}

type fixture struct {
	clock *fixedClock

	users    *memory.UserRepository
	profiles *memory.ProfileRepository
	rides    *memory.RideRepository
	trips    *memory.TripRepository
	sessions *memory.SessionRepository
	work     *memory.WorkSessionRepository
	feedback *memory.FeedbackRepository
	locks    *memory.LockStore
	attempts *memory.AttemptStore
	sender   *recordingSender

	profileService  *service.ProfileService
	tripService     *service.TripService
	rideService     *service.RideService
	sessionService  *service.SessionService
	roleService     *service.RoleService
	workService     *service.WorkSessionService
	earnings        *service.EarningsService
	feedbackService *service.FeedbackService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		clock:    newFixedClock(wednesday),
		users:    memory.NewUserRepository(),
		profiles: memory.NewProfileRepository(),
		rides:    memory.NewRideRepository(),
		trips:    memory.NewTripRepository(),
		sessions: memory.NewSessionRepository(),
		work:     memory.NewWorkSessionRepository(),
		feedback: memory.NewFeedbackRepository(),
		locks:    memory.NewLockStore(),
		attempts: memory.NewAttemptStore(),
		sender:   &recordingSender{},
	}

	notifications := service.NewNotificationService(f.sender, f.clock, nil)
	f.profileService = service.NewProfileService(f.profiles, nil)
	f.tripService = service.NewTripService(f.trips, f.rides, f.users, f.clock, nil)
	f.rideService = service.NewRideService(
		f.rides, f.users, f.profiles, f.tripService, f.attempts, f.locks,
		notifications, f.clock, nil, service.DefaultRideConfig(),
	)
	f.sessionService = service.NewSessionService(f.sessions, f.locks, f.clock, nil)
	f.roleService = service.NewRoleService(f.users, f.rides, f.profileService, f.clock, nil)
	f.workService = service.NewWorkSessionService(f.work, f.clock)
	f.earnings = service.NewEarningsService(f.trips, f.work, f.clock, time.UTC)
	f.feedbackService = service.NewFeedbackService(f.feedback, f.rides, f.clock)
	return f
}

func (f *fixture) addUser(id string, accountType domain.AccountType, role domain.Role) {
	f.users.AddUser(&domain.User{
		ID:                id,
		Name:              id,
		Phone:             "+27" + id,
		AccountType:       accountType,
		CurrentActiveRole: role,
		CreatedAt:         f.clock.Now(),
	})
	if accountType.Allows(domain.RolePassenger) {
		_, _ = f.profiles.EnsurePassenger(context.Background(), id)
	}
	if accountType.Allows(domain.RoleDriver) {
		_, _ = f.profiles.EnsureDriver(context.Background(), id)
	}
}

// addPair registers passenger P1 and driver D1.
func (f *fixture) addPair() {
	f.addUser("P1", domain.AccountPassenger, domain.RolePassenger)
	f.addUser("D1", domain.AccountDriver, domain.RoleDriver)
}

func (f *fixture) requestRide(t *testing.T, passengerID string, estimated float64) *domain.Ride {
	t.Helper()
	ride, err := f.rideService.RequestRide(context.Background(), service.RequestRideRequest{
		PassengerID:   passengerID,
		Pickup:        "Bree Street Rank",
		Destination:   "Claremont",
		EstimatedFare: fare(estimated),
	})
	if err != nil {
		t.Fatalf("request ride: %v", err)
	}
	return ride
}

func (f *fixture) acceptedRide(t *testing.T) *domain.Ride {
	t.Helper()
	f.addPair()
	ride := f.requestRide(t, "P1", 25)
	accepted, err := f.rideService.AcceptRide(context.Background(), ride.ID, "D1")
	if err != nil {
		t.Fatalf("accept ride: %v", err)
	}
	return accepted
}

func (f *fixture) startedRide(t *testing.T) *domain.Ride {
	t.Helper()
	ride := f.acceptedRide(t)
	result, err := f.rideService.VerifyPin(context.Background(), service.VerifyPinRequest{
		RideID:      ride.ID,
		RequesterID: "D1",
		EnteredPin:  ride.RidePin,
		Party:       service.PinByDriver,
	})
	if err != nil || !result.Success {
		t.Fatalf("verify pin: result=%+v err=%v", result, err)
	}
	return result.Ride
}

func fare(v float64) *float64 {
	return &v
}
