package service

import (
	"context"
	"math"
	"time"

	"taxitap/internal/domain"
	"taxitap/internal/repository"
)

// earningsWeeks is the number of weeks reported, current week first.
const earningsWeeks = 4

var weekdayNames = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// EarningsService aggregates trips and work sessions into weekly summaries.
// Results are computed on every call.
type EarningsService struct {
	tripRepo repository.TripRepository
	workRepo repository.WorkSessionRepository
	clock    Clock
	loc      *time.Location
}

// NewEarningsService creates a new EarningsService. Weeks and days are
// delimited in loc; nil means UTC.
func NewEarningsService(
	tripRepo repository.TripRepository,
	workRepo repository.WorkSessionRepository,
	clock Clock,
	loc *time.Location,
) *EarningsService {
	if clock == nil {
		clock = SystemClock{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &EarningsService{
		tripRepo: tripRepo,
		workRepo: workRepo,
		clock:    clock,
		loc:      loc,
	}
}

// WeeklyEarnings returns the last four Monday-start weeks, index 0 being the current week.
func (s *EarningsService) WeeklyEarnings(ctx context.Context, driverID string) ([]domain.WeeklyEarnings, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	now := s.clock.Now().In(s.loc)
	current := startOfWeek(now)
	from := current.AddDate(0, 0, -7*(earningsWeeks-1))
	to := current.AddDate(0, 0, 7)

	trips, err := s.tripRepo.ListByDriverBetween(ctx, driverID, from, to)
	if err != nil {
		return nil, err
	}
	sessions, err := s.workRepo.ListByDriverBetween(ctx, driverID, from, to)
	if err != nil {
		return nil, err
	}

	weeks := make([]domain.WeeklyEarnings, earningsWeeks)
	for i := range weeks {
		start := current.AddDate(0, 0, -7*i)
		weeks[i] = s.summarize(start, start.AddDate(0, 0, 7), now, i == 0, trips, sessions)
	}
	return weeks, nil
}

func (s *EarningsService) summarize(start, end, now time.Time, current bool, trips []*domain.Trip, sessions []*domain.WorkSession) domain.WeeklyEarnings {
	week := domain.WeeklyEarnings{
		WeekStart: start,
		DailyData: make([]domain.DayEarnings, 7),
	}
	for d := range week.DailyData {
		week.DailyData[d].Day = weekdayNames[d]
	}

	for _, t := range trips {
		if !inRange(t.StartTime, start, end) {
			continue
		}
		local := t.StartTime.In(s.loc)
		week.Earnings += t.Fare
		if t.Reservation {
			week.Reservations++
		}
		week.DailyData[mondayIndex(local.Weekday())].Earnings += t.Fare
		if current && sameDay(local, now) {
			week.TodayEarnings += t.Fare
		}
	}

	var online time.Duration
	for _, ws := range sessions {
		if ws.Open() || !inRange(ws.StartTime, start, end) {
			continue
		}
		online += ws.EndTime.Sub(ws.StartTime)
	}
	week.HoursOnline = int(math.Round(online.Hours()))

	if week.HoursOnline > 0 {
		week.AveragePerHour = int(math.Round(week.Earnings / float64(week.HoursOnline)))
	}
	return week
}

// startOfWeek returns Monday 00:00 of t's week in t's location.
func startOfWeek(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d-mondayIndex(t.Weekday()), 0, 0, 0, 0, t.Location())
}

// mondayIndex maps Monday..Sunday to 0..6.
func mondayIndex(w time.Weekday) int {
	return (int(w) + 6) % 7
}

func inRange(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
