package service_test

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"taxitap/internal/domain"
	"taxitap/internal/redis"
	"taxitap/internal/repository/memory"
	"taxitap/internal/service"
)

func wrongPin(pin string) string {
	if pin == "1111" {
		return "2222"
	}
	return "1111"
}

func TestRide_AcceptAssignsFourDigitPin(t *testing.T) {
	f := newFixture(t)
	ride := f.acceptedRide(t)

	if ride.Status != domain.RideStatusAccepted {
		t.Errorf("expected status %s, got %s", domain.RideStatusAccepted, ride.Status)
	}
	if !regexp.MustCompile(`^\d{4}$`).MatchString(ride.RidePin) {
		t.Errorf("expected a 4-digit PIN, got %q", ride.RidePin)
	}
	if ride.RidePin < "1000" {
		t.Errorf("expected PIN in [1000, 9999], got %s", ride.RidePin)
	}
	if ride.DriverID != "D1" {
		t.Errorf("expected driver D1, got %s", ride.DriverID)
	}
	if !ride.AcceptedAt.Equal(wednesday) {
		t.Errorf("expected acceptedAt %v, got %v", wednesday, ride.AcceptedAt)
	}
}

func TestRide_WrongPinThenCorrectPin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ride := f.acceptedRide(t)

	result, err := f.rideService.VerifyPin(ctx, service.VerifyPinRequest{
		RideID:      ride.ID,
		RequesterID: "P1",
		EnteredPin:  wrongPin(ride.RidePin),
		Party:       service.PinByPassenger,
	})
	if err != nil {
		t.Fatalf("wrong PIN must not be an error, got %v", err)
	}
	if result.Success {
		t.Error("expected success=false for wrong PIN")
	}
	if result.AttemptsRemaining != 2 {
		t.Errorf("expected 2 attempts remaining, got %d", result.AttemptsRemaining)
	}
	if stored := f.rides.GetRide(ride.ID); stored.Status != domain.RideStatusAccepted {
		t.Errorf("expected status to remain accepted, got %s", stored.Status)
	}
	if f.trips.CountTrips() != 0 {
		t.Errorf("expected no trip after wrong PIN, got %d", f.trips.CountTrips())
	}

	result, err = f.rideService.VerifyPin(ctx, service.VerifyPinRequest{
		RideID:      ride.ID,
		RequesterID: "P1",
		EnteredPin:  ride.RidePin,
		Party:       service.PinByPassenger,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}

	stored := f.rides.GetRide(ride.ID)
	if stored.Status != domain.RideStatusInProgress {
		t.Errorf("expected status in_progress, got %s", stored.Status)
	}
	if stored.TripID == "" || stored.TripID != result.TripID {
		t.Fatalf("expected ride linked to trip %q, got %q", result.TripID, stored.TripID)
	}
	trip := f.trips.GetTrip(stored.TripID)
	if trip == nil || !trip.Ongoing() {
		t.Fatalf("expected an ongoing trip, got %+v", trip)
	}
	if trip.PassengerID != "P1" || trip.DriverID != "D1" {
		t.Errorf("unexpected trip parties: %+v", trip)
	}
	if stored.StartedAt.IsZero() || stored.PinVerifiedAt.IsZero() {
		t.Error("expected startedAt and pinVerifiedAt to be stamped")
	}
}

func TestRide_VerifyPinChecksCounterpart(t *testing.T) {
	f := newFixture(t)
	ride := f.acceptedRide(t)

	testCases := []struct {
		name      string
		requester string
		party     service.PinParty
		want      error
	}{
		{"passenger using driver variant", "P1", service.PinByDriver, service.ErrNotAssignedDriver},
		{"driver using passenger variant", "D1", service.PinByPassenger, service.ErrNotRidePassenger},
		{"stranger", "X9", service.PinByDriver, service.ErrNotAssignedDriver},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.rideService.VerifyPin(context.Background(), service.VerifyPinRequest{
				RideID:      ride.ID,
				RequesterID: tc.requester,
				EnteredPin:  ride.RidePin,
				Party:       tc.party,
			})
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
			if !errors.Is(err, service.ErrUnauthorized) {
				t.Errorf("expected an unauthorized error, got %v", err)
			}
		})
	}

	if stored := f.rides.GetRide(ride.ID); stored.Status != domain.RideStatusAccepted {
		t.Errorf("expected status accepted, got %s", stored.Status)
	}
}

func TestRide_VerifyPinRejectsMalformedPin(t *testing.T) {
	f := newFixture(t)
	ride := f.acceptedRide(t)

	for _, pin := range []string{"", "123", "12345", "12a4", " 1234", "١٢٣٤"} {
		t.Run(pin, func(t *testing.T) {
			_, err := f.rideService.VerifyPin(context.Background(), service.VerifyPinRequest{
				RideID:      ride.ID,
				RequesterID: "D1",
				EnteredPin:  pin,
				Party:       service.PinByDriver,
			})
			if !errors.Is(err, service.ErrValidation) {
				t.Errorf("expected validation error for %q, got %v", pin, err)
			}
		})
	}
}

func TestRide_PinLockoutAfterMaxAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ride := f.acceptedRide(t)

	verify := func(pin string) (*service.VerifyPinResult, error) {
		return f.rideService.VerifyPin(ctx, service.VerifyPinRequest{
			RideID:      ride.ID,
			RequesterID: "D1",
			EnteredPin:  pin,
			Party:       service.PinByDriver,
		})
	}

	for want := 2; want >= 0; want-- {
		result, err := verify(wrongPin(ride.RidePin))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.AttemptsRemaining != want {
			t.Errorf("expected %d attempts remaining, got %d", want, result.AttemptsRemaining)
		}
	}

	if _, err := verify(ride.RidePin); !errors.Is(err, service.ErrPinLocked) {
		t.Fatalf("expected ErrPinLocked, got %v", err)
	}

	regenerated, err := f.rideService.RegeneratePin(ctx, ride.ID)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}

	result, err := verify(regenerated.NewPin)
	if err != nil {
		t.Fatalf("unexpected error after regeneration: %v", err)
	}
	if !result.Success {
		t.Errorf("expected success with the new PIN, got %+v", result)
	}
}

func TestRide_VerifyPinIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ride := f.acceptedRide(t)

	req := service.VerifyPinRequest{
		RideID:      ride.ID,
		RequesterID: "D1",
		EnteredPin:  ride.RidePin,
		Party:       service.PinByDriver,
	}

	first, err := f.rideService.VerifyPin(ctx, req)
	if err != nil {
		t.Fatalf("first verify: %v", err)
	}
	second, err := f.rideService.VerifyPin(ctx, req)
	if err != nil {
		t.Fatalf("second verify: %v", err)
	}

	if !second.Success || second.TripID != first.TripID {
		t.Errorf("expected repeated success with trip %s, got %+v", first.TripID, second)
	}
	if f.trips.CountTrips() != 1 {
		t.Errorf("expected 1 trip, got %d", f.trips.CountTrips())
	}
}

func TestRide_VerifyPinRetryOpensMissingTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ride := f.acceptedRide(t)

	f.trips.CreateError = errors.New("database unavailable")
	result, err := f.rideService.VerifyPin(ctx, service.VerifyPinRequest{
		RideID: ride.ID, RequesterID: "D1", EnteredPin: ride.RidePin, Party: service.PinByDriver,
	})
	if err != nil {
		t.Fatalf("trip failure must not fail verification: %v", err)
	}
	if !result.Success || result.TripID != "" {
		t.Fatalf("expected success without trip, got %+v", result)
	}

	f.trips.CreateError = nil
	result, err = f.rideService.VerifyPin(ctx, service.VerifyPinRequest{
		RideID: ride.ID, RequesterID: "D1", EnteredPin: ride.RidePin, Party: service.PinByDriver,
	})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if result.TripID == "" {
		t.Fatal("expected retry to open the trip")
	}
	if stored := f.rides.GetRide(ride.ID); stored.TripID != result.TripID {
		t.Errorf("expected ride linked to %s, got %s", result.TripID, stored.TripID)
	}
}

func TestRide_VerifyPinBusyWhileLocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ride := f.acceptedRide(t)

	if _, ok, _ := f.locks.AcquireLock(ctx, redis.RideLockKey(ride.ID), time.Second); !ok {
		t.Fatal("could not take the lock")
	}

	_, err := f.rideService.VerifyPin(ctx, service.VerifyPinRequest{
		RideID: ride.ID, RequesterID: "D1", EnteredPin: ride.RidePin, Party: service.PinByDriver,
	})
	if !errors.Is(err, service.ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}
}

func TestRide_RegeneratePinInAnyStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addPair()
	ride := f.requestRide(t, "P1", 20)

	result, err := f.rideService.RegeneratePin(ctx, ride.ID)
	if err != nil {
		t.Fatalf("regenerate on requested ride: %v", err)
	}
	if result.Ride.Status != domain.RideStatusRequested {
		t.Errorf("expected status requested, got %s", result.Ride.Status)
	}
	if result.Ride.PinRegeneratedAt.IsZero() {
		t.Error("expected pinRegeneratedAt to be stamped")
	}

	_, err = f.rideService.VerifyPin(ctx, service.VerifyPinRequest{
		RideID: ride.ID, RequesterID: "P1", EnteredPin: result.NewPin, Party: service.PinByPassenger,
	})
	if !errors.Is(err, service.ErrRideNotAccepted) {
		t.Errorf("expected ErrRideNotAccepted before acceptance, got %v", err)
	}

	if _, err := f.rideService.CancelRide(ctx, ride.ID, "P1", "changed plans"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	result, err = f.rideService.RegeneratePin(ctx, ride.ID)
	if err != nil {
		t.Fatalf("regenerate on cancelled ride: %v", err)
	}
	if result.Ride.Status != domain.RideStatusCancelled {
		t.Errorf("expected status cancelled, got %s", result.Ride.Status)
	}
}

func TestRide_RegeneratedPinReplacesOldPin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ride := f.acceptedRide(t)

	var newPin string
	for newPin == "" || newPin == ride.RidePin {
		result, err := f.rideService.RegeneratePin(ctx, ride.ID)
		if err != nil {
			t.Fatalf("regenerate: %v", err)
		}
		newPin = result.NewPin
	}

	old, err := f.rideService.VerifyPin(ctx, service.VerifyPinRequest{
		RideID: ride.ID, RequesterID: "D1", EnteredPin: ride.RidePin, Party: service.PinByDriver,
	})
	if err != nil || old.Success {
		t.Fatalf("expected old PIN to fail softly, got %+v, %v", old, err)
	}

	fresh, err := f.rideService.VerifyPin(ctx, service.VerifyPinRequest{
		RideID: ride.ID, RequesterID: "D1", EnteredPin: newPin, Party: service.PinByDriver,
	})
	if err != nil || !fresh.Success {
		t.Fatalf("expected new PIN to succeed, got %+v, %v", fresh, err)
	}
}

func TestRide_NoTransitionOutOfTerminalState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addPair()
	ride := f.requestRide(t, "P1", 20)

	if _, err := f.rideService.DeclineRide(ctx, ride.ID, "P1", ""); err != nil {
		t.Fatalf("decline: %v", err)
	}

	if _, err := f.rideService.AcceptRide(ctx, ride.ID, "D1"); !errors.Is(err, service.ErrRideNotRequested) {
		t.Errorf("accept: expected ErrRideNotRequested, got %v", err)
	}
	if _, err := f.rideService.CancelRide(ctx, ride.ID, "P1", ""); !errors.Is(err, service.ErrRideFinished) {
		t.Errorf("cancel: expected ErrRideFinished, got %v", err)
	}
	if _, err := f.rideService.EndRide(ctx, ride.ID, "P1"); !errors.Is(err, service.ErrRideFinished) {
		t.Errorf("end: expected ErrRideFinished, got %v", err)
	}
	if stored := f.rides.GetRide(ride.ID); stored.Status != domain.RideStatusDeclined {
		t.Errorf("expected status declined, got %s", stored.Status)
	}
}

func TestRide_DeclineAfterAccept(t *testing.T) {
	f := newFixture(t)
	ride := f.acceptedRide(t)

	declined, err := f.rideService.DeclineRide(context.Background(), ride.ID, "D1", "vehicle trouble")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if declined.Status != domain.RideStatusDeclined || declined.DeclinedAt.IsZero() {
		t.Errorf("expected declined ride with timestamp, got %+v", declined)
	}
}

func TestRide_DeclineInProgressIsInvalidState(t *testing.T) {
	f := newFixture(t)
	ride := f.startedRide(t)

	_, err := f.rideService.DeclineRide(context.Background(), ride.ID, "D1", "")
	if !errors.Is(err, service.ErrInvalidState) {
		t.Errorf("expected invalid state, got %v", err)
	}
}

func TestRide_CancelRequiresParticipant(t *testing.T) {
	f := newFixture(t)
	ride := f.acceptedRide(t)

	_, err := f.rideService.CancelRide(context.Background(), ride.ID, "X9", "")
	if !errors.Is(err, service.ErrNotRideParticipant) {
		t.Errorf("expected ErrNotRideParticipant, got %v", err)
	}
}

func TestRide_CancelInProgressClosesTripWithoutFare(t *testing.T) {
	f := newFixture(t)
	ride := f.startedRide(t)
	f.clock.Advance(10 * time.Minute)

	cancelled, err := f.rideService.CancelRide(context.Background(), ride.ID, "P1", "emergency")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != domain.RideStatusCancelled {
		t.Errorf("expected cancelled, got %s", cancelled.Status)
	}
	if cancelled.FinalFare != nil {
		t.Errorf("expected no final fare, got %v", *cancelled.FinalFare)
	}

	trip := f.trips.GetTrip(ride.TripID)
	if trip.Ongoing() {
		t.Fatal("expected trip to be closed")
	}
	if trip.Fare != 0 {
		t.Errorf("expected fare 0, got %f", trip.Fare)
	}
}

func TestRide_CompleteSettlesFare(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ride := f.startedRide(t)
	f.clock.Advance(20 * time.Minute)

	completed, err := f.rideService.CompleteRide(ctx, ride.ID, "D1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if completed.Status != domain.RideStatusCompleted {
		t.Errorf("expected completed, got %s", completed.Status)
	}
	if completed.FinalFare == nil || *completed.FinalFare != 25 {
		t.Errorf("expected final fare 25, got %v", completed.FinalFare)
	}

	trip := f.trips.GetTrip(ride.TripID)
	if trip.Ongoing() || trip.Fare != 25 {
		t.Errorf("expected closed trip with fare 25, got %+v", trip)
	}
	if !trip.EndTime.Equal(wednesday.Add(20 * time.Minute)) {
		t.Errorf("unexpected trip end time %v", trip.EndTime)
	}

	d, _ := f.profiles.GetDriver(ctx, "D1")
	p, _ := f.profiles.GetPassenger(ctx, "P1")
	if d.NumberOfRides != 1 || p.NumberOfRidesTaken != 1 {
		t.Errorf("expected ride counters 1/1, got %d/%d", d.NumberOfRides, p.NumberOfRidesTaken)
	}

	// The trip is already settled.
	if _, err := f.tripService.EndTrip(ctx, "P1", ""); !errors.Is(err, service.ErrNoOngoingTrip) {
		t.Errorf("expected ErrNoOngoingTrip after completion, got %v", err)
	}
}

func TestRide_CompleteRequiresAssignedDriverAndProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ride := f.acceptedRide(t)

	if _, err := f.rideService.CompleteRide(ctx, ride.ID, "D1"); !errors.Is(err, service.ErrRideNotInProgress) {
		t.Errorf("expected ErrRideNotInProgress, got %v", err)
	}
	if _, err := f.rideService.CompleteRide(ctx, ride.ID, "P1"); !errors.Is(err, service.ErrNotAssignedDriver) {
		t.Errorf("expected ErrNotAssignedDriver, got %v", err)
	}
}

func TestRide_EndRideByPassenger(t *testing.T) {
	f := newFixture(t)
	ride := f.startedRide(t)

	ended, err := f.rideService.EndRide(context.Background(), ride.ID, "P1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ended.Status != domain.RideStatusCompleted {
		t.Errorf("expected completed, got %s", ended.Status)
	}
}

func TestRide_ConfirmPaymentIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ride := f.startedRide(t)
	if _, err := f.rideService.CompleteRide(ctx, ride.ID, "D1"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	first, err := f.rideService.ConfirmPayment(ctx, ride.ID, "P1", true)
	if err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	f.clock.Advance(time.Minute)
	updates := f.rides.UpdateCallCount

	second, err := f.rideService.ConfirmPayment(ctx, ride.ID, "P1", true)
	if err != nil {
		t.Fatalf("second confirm: %v", err)
	}
	if !second.TripPaid || !second.PaymentConfirmedAt.Equal(first.PaymentConfirmedAt) {
		t.Errorf("expected unchanged payment state, got %+v", second)
	}
	if f.rides.UpdateCallCount != updates {
		t.Errorf("expected no write for a repeated confirmation")
	}

	flipped, err := f.rideService.ConfirmPayment(ctx, ride.ID, "P1", false)
	if err != nil {
		t.Fatalf("flip: %v", err)
	}
	if flipped.TripPaid {
		t.Error("expected tripPaid=false after flip")
	}
}

func TestRide_ConfirmPaymentByTripID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ride := f.startedRide(t)

	confirmed, err := f.rideService.ConfirmPayment(ctx, ride.TripID, "P1", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if confirmed.ID != ride.ID || !confirmed.TripPaid {
		t.Errorf("expected ride %s marked paid, got %+v", ride.ID, confirmed)
	}

	if _, err := f.rideService.ConfirmPayment(ctx, ride.ID, "D1", true); !errors.Is(err, service.ErrNotRidePassenger) {
		t.Errorf("expected ErrNotRidePassenger, got %v", err)
	}
	if _, err := f.rideService.ConfirmPayment(ctx, "missing", "P1", true); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestRide_RequestRideRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addPair()

	f.requestRide(t, "P1", 20)
	_, err := f.rideService.RequestRide(ctx, service.RequestRideRequest{PassengerID: "P1"})
	if !errors.Is(err, service.ErrActiveRideExists) {
		t.Errorf("expected ErrActiveRideExists, got %v", err)
	}

	_, err = f.rideService.RequestRide(ctx, service.RequestRideRequest{PassengerID: "D1"})
	if !errors.Is(err, service.ErrNotActingAsPassenger) {
		t.Errorf("expected ErrNotActingAsPassenger, got %v", err)
	}

	f.addUser("P2", domain.AccountPassenger, domain.RolePassenger)
	_, err = f.rideService.RequestRide(ctx, service.RequestRideRequest{PassengerID: "P2", EstimatedFare: fare(-1)})
	if !errors.Is(err, service.ErrValidation) {
		t.Errorf("expected validation error for negative fare, got %v", err)
	}
}

func TestRide_AcceptRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addPair()
	f.addUser("B1", domain.AccountBoth, domain.RolePassenger)
	f.addUser("D2", domain.AccountDriver, domain.RoleDriver)

	ride := f.requestRide(t, "P1", 20)
	if _, err := f.rideService.AcceptRide(ctx, ride.ID, "B1"); !errors.Is(err, service.ErrNotActingAsDriver) {
		t.Errorf("expected ErrNotActingAsDriver, got %v", err)
	}

	f.addUser("P3", domain.AccountPassenger, domain.RolePassenger)
	targeted, err := f.rideService.RequestRide(ctx, service.RequestRideRequest{PassengerID: "P3", DriverID: "D1"})
	if err != nil {
		t.Fatalf("request targeted ride: %v", err)
	}
	if _, err := f.rideService.AcceptRide(ctx, targeted.ID, "D2"); !errors.Is(err, service.ErrNotTargetedDriver) {
		t.Errorf("expected ErrNotTargetedDriver, got %v", err)
	}
	if _, err := f.rideService.AcceptRide(ctx, targeted.ID, "D1"); err != nil {
		t.Errorf("targeted driver accept: %v", err)
	}
}

func TestRide_ConcurrentAcceptOnlyOneWins(t *testing.T) {
	f := newFixture(t)
	f.addUser("P1", domain.AccountPassenger, domain.RolePassenger)
	drivers := []string{"D1", "D2", "D3", "D4", "D5"}
	for _, d := range drivers {
		f.addUser(d, domain.AccountDriver, domain.RoleDriver)
	}
	ride := f.requestRide(t, "P1", 20)

	var wg sync.WaitGroup
	var wins int32
	for _, d := range drivers {
		wg.Add(1)
		go func(driverID string) {
			defer wg.Done()
			if _, err := f.rideService.AcceptRide(context.Background(), ride.ID, driverID); err == nil {
				atomic.AddInt32(&wins, 1)
			} else if !errors.Is(err, service.ErrRideNotRequested) {
				t.Errorf("unexpected error: %v", err)
			}
		}(d)
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("expected exactly one accept to win, got %d", wins)
	}
}

func TestRide_Notifications(t *testing.T) {
	f := newFixture(t)
	ride := f.startedRide(t)
	if _, err := f.rideService.CompleteRide(context.Background(), ride.ID, "D1"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	want := []service.NotificationType{
		service.NotificationRideAccepted,
		service.NotificationRideStarted,
		service.NotificationRideCompleted,
		service.NotificationRideCompleted,
	}
	got := f.sender.Types()
	if len(got) != len(want) {
		t.Fatalf("expected notifications %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("notification %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

// interleavingRides runs onRead right after the at-th GetByID returns,
// letting a test slip a competing write between a read and its update.
type interleavingRides struct {
	*memory.RideRepository
	at     int32
	reads  int32
	onRead func()
}

func (r *interleavingRides) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	ride, err := r.RideRepository.GetByID(ctx, id)
	if atomic.AddInt32(&r.reads, 1) == r.at && r.onRead != nil {
		r.onRead()
	}
	return ride, err
}

func TestRide_ConfirmPaymentKeepsConcurrentTripLink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addPair()
	f.rides.AddRide(&domain.Ride{
		ID:          "R1",
		PassengerID: "P1",
		DriverID:    "D1",
		Status:      domain.RideStatusCompleted,
		RequestedAt: f.clock.Now(),
		CompletedAt: f.clock.Now(),
	})

	// Read 1 resolves the reference, read 2 is the one the update is based on.
	rides := &interleavingRides{RideRepository: f.rides, at: 2}
	rides.onRead = func() {
		if err := f.rides.LinkTrip(ctx, "R1", "trip-concurrent"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}
	svc := service.NewRideService(
		rides, f.users, f.profiles, f.tripService, f.attempts, f.locks,
		nil, f.clock, nil, service.DefaultRideConfig(),
	)

	ride, err := svc.ConfirmPayment(ctx, "R1", "P1", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ride.TripPaid {
		t.Errorf("expected trip_paid true, got false")
	}

	stored := f.rides.GetRide("R1")
	if stored.TripID != "trip-concurrent" {
		t.Errorf("expected trip_id trip-concurrent, got %q", stored.TripID)
	}
	if !stored.TripPaid {
		t.Errorf("expected stored trip_paid true, got false")
	}
}

func TestRide_VerifyPinDoesNotRestoreReplacedPin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ride := f.acceptedRide(t)
	replaced := wrongPin(ride.RidePin)

	// Read 1 loads the ride for checks, read 2 is the base of the status write.
	rides := &interleavingRides{RideRepository: f.rides, at: 2}
	rides.onRead = func() {
		current, err := f.rides.GetByID(ctx, ride.ID)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
			return
		}
		current.RidePin = replaced
		if err := f.rides.Update(ctx, current); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}
	svc := service.NewRideService(
		rides, f.users, f.profiles, f.tripService, f.attempts, f.locks,
		nil, f.clock, nil, service.DefaultRideConfig(),
	)

	_, err := svc.VerifyPin(ctx, service.VerifyPinRequest{
		RideID: ride.ID, RequesterID: "D1", EnteredPin: ride.RidePin, Party: service.PinByDriver,
	})
	if !errors.Is(err, service.ErrPinReplaced) {
		t.Errorf("expected ErrPinReplaced, got %v", err)
	}

	stored := f.rides.GetRide(ride.ID)
	if stored.RidePin != replaced {
		t.Errorf("expected pin %s, got %s", replaced, stored.RidePin)
	}
	if stored.Status != domain.RideStatusAccepted {
		t.Errorf("expected status accepted, got %s", stored.Status)
	}
}

func TestRide_RegeneratePinWaitsForVerification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ride := f.acceptedRide(t)

	rides := &interleavingRides{RideRepository: f.rides, at: 1}
	var regenErr error
	rides.onRead = func() {
		_, regenErr = f.rideService.RegeneratePin(ctx, ride.ID)
	}
	svc := service.NewRideService(
		rides, f.users, f.profiles, f.tripService, f.attempts, f.locks,
		nil, f.clock, nil, service.DefaultRideConfig(),
	)

	result, err := svc.VerifyPin(ctx, service.VerifyPinRequest{
		RideID: ride.ID, RequesterID: "D1", EnteredPin: ride.RidePin, Party: service.PinByDriver,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Errorf("expected success, got %+v", result)
	}
	if !errors.Is(regenErr, service.ErrBusy) {
		t.Errorf("expected ErrBusy for regeneration during verification, got %v", regenErr)
	}
	if stored := f.rides.GetRide(ride.ID); stored.RidePin != ride.RidePin {
		t.Errorf("expected pin %s, got %s", ride.RidePin, stored.RidePin)
	}
}

func TestRide_ExpiredLockHolderKeepsNextHoldersLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ride := f.acceptedRide(t)
	key := redis.RideLockKey(ride.ID)

	// The verification's lock runs out and another caller takes the ride lock.
	rides := &interleavingRides{RideRepository: f.rides, at: 1}
	rides.onRead = func() {
		f.locks.Expire(key)
		if _, ok, err := f.locks.AcquireLock(ctx, key, time.Second); err != nil || !ok {
			t.Errorf("unexpected acquire result: ok=%v err=%v", ok, err)
		}
	}
	svc := service.NewRideService(
		rides, f.users, f.profiles, f.tripService, f.attempts, f.locks,
		nil, f.clock, nil, service.DefaultRideConfig(),
	)

	if _, err := svc.VerifyPin(ctx, service.VerifyPinRequest{
		RideID: ride.ID, RequesterID: "D1", EnteredPin: ride.RidePin, Party: service.PinByDriver,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.locks.IsLocked(key) {
		t.Errorf("expected lock still held by the next caller, got released")
	}
	if _, err := f.rideService.RegeneratePin(ctx, ride.ID); !errors.Is(err, service.ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}
}
