package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"taxitap/internal/service"
)

func TestWorkSession_StartIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.workService.Start(ctx, "D1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.clock.Advance(time.Minute)
	second, err := f.workService.Start(ctx, "D1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.ID != first.ID || !second.StartTime.Equal(first.StartTime) {
		t.Errorf("expected the open session to be returned, got %+v", second)
	}
}

func TestWorkSession_End(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.workService.End(ctx, "D1"); !errors.Is(err, service.ErrNoOpenWorkSession) {
		t.Errorf("expected ErrNoOpenWorkSession, got %v", err)
	}

	started, err := f.workService.Start(ctx, "D1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	f.clock.Advance(3 * time.Hour)

	ended, err := f.workService.End(ctx, "D1")
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if ended.ID != started.ID {
		t.Errorf("expected session %s, got %s", started.ID, ended.ID)
	}
	if got := ended.EndTime.Sub(ended.StartTime); got != 3*time.Hour {
		t.Errorf("expected 3h session, got %v", got)
	}

	next, err := f.workService.Start(ctx, "D1")
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if next.ID == started.ID {
		t.Error("expected a new session after ending the previous one")
	}
}
