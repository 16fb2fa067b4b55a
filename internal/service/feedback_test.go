package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"taxitap/internal/domain"
	"taxitap/internal/service"
)

func completedRide(f *fixture, id, passengerID, driverID string) {
	f.rides.AddRide(&domain.Ride{
		ID:          id,
		PassengerID: passengerID,
		DriverID:    driverID,
		Status:      domain.RideStatusCompleted,
		RequestedAt: f.clock.Now(),
	})
}

func TestFeedback_SubmitOncePerRide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	completedRide(f, "R1", "P1", "D1")

	fb, err := f.feedbackService.SubmitFeedback(ctx, service.SubmitFeedbackRequest{RideID: "R1", PassengerID: "P1", Rating: 5, Comment: "smooth"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fb.DriverID != "D1" || fb.Rating != 5 {
		t.Errorf("unexpected feedback %+v", fb)
	}

	_, err = f.feedbackService.SubmitFeedback(ctx, service.SubmitFeedbackRequest{RideID: "R1", PassengerID: "P1", Rating: 1})
	if !errors.Is(err, service.ErrFeedbackExists) {
		t.Errorf("expected ErrFeedbackExists, got %v", err)
	}
}

func TestFeedback_SubmitRules(t *testing.T) {
	f := newFixture(t)
	completedRide(f, "R1", "P1", "D1")
	f.rides.AddRide(&domain.Ride{ID: "R2", PassengerID: "P1", DriverID: "D1", Status: domain.RideStatusInProgress})

	testCases := []struct {
		name string
		req  service.SubmitFeedbackRequest
		want error
	}{
		{"rating too low", service.SubmitFeedbackRequest{RideID: "R1", PassengerID: "P1", Rating: 0}, service.ErrInvalidRating},
		{"rating too high", service.SubmitFeedbackRequest{RideID: "R1", PassengerID: "P1", Rating: 6}, service.ErrInvalidRating},
		{"not the passenger", service.SubmitFeedbackRequest{RideID: "R1", PassengerID: "D1", Rating: 4}, service.ErrNotRidePassenger},
		{"ride not completed", service.SubmitFeedbackRequest{RideID: "R2", PassengerID: "P1", Rating: 4}, service.ErrRideNotCompleted},
		{"unknown ride", service.SubmitFeedbackRequest{RideID: "R9", PassengerID: "P1", Rating: 4}, service.ErrRideNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.feedbackService.SubmitFeedback(context.Background(), tc.req)
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestFeedback_ListDriverFeedback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ratings := []int{5, 4, 4}
	for i, rating := range ratings {
		id := string(rune('A' + i))
		completedRide(f, id, "P"+id, "D1")
		if _, err := f.feedbackService.SubmitFeedback(ctx, service.SubmitFeedbackRequest{RideID: id, PassengerID: "P" + id, Rating: rating}); err != nil {
			t.Fatalf("submit %s: %v", id, err)
		}
		f.clock.Advance(time.Minute)
	}

	result, err := f.feedbackService.ListDriverFeedback(ctx, "D1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(result.Items))
	}
	if result.Items[0].RideID != "C" {
		t.Errorf("expected newest first, got %s", result.Items[0].RideID)
	}
	if result.AverageRating != 4.3 {
		t.Errorf("expected average 4.3, got %v", result.AverageRating)
	}

	empty, err := f.feedbackService.ListDriverFeedback(ctx, "D2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(empty.Items) != 0 || empty.AverageRating != 0 {
		t.Errorf("expected no feedback, got %+v", empty)
	}
}
