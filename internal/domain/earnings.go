package domain

import "time"

// DayEarnings is the fare total of one calendar day.
type DayEarnings struct {
	Day      string
	Earnings float64
}

// WeeklyEarnings summarizes one Monday-start week of a driver's activity.
type WeeklyEarnings struct {
	WeekStart      time.Time
	Earnings       float64
	HoursOnline    int
	AveragePerHour int
	Reservations   int
	DailyData      []DayEarnings
	TodayEarnings  float64
}
