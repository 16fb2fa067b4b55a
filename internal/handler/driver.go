package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taxitap/internal/domain"
	"taxitap/internal/middleware"
	"taxitap/internal/service"
)

// DriverHandler handles driver work sessions and earnings.
type DriverHandler struct {
	workService     *service.WorkSessionService
	earningsService *service.EarningsService
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(workService *service.WorkSessionService, earningsService *service.EarningsService) *DriverHandler {
	return &DriverHandler{workService: workService, earningsService: earningsService}
}

// WorkSessionResponse is the HTTP representation of a work session.
type WorkSessionResponse struct {
	ID        string `json:"id"`
	DriverID  string `json:"driver_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time,omitempty"`
}

// DayEarningsResponse is one day bucket.
type DayEarningsResponse struct {
	Day      string  `json:"day"`
	Earnings float64 `json:"earnings"`
}

// WeeklyEarningsResponse summarizes one week.
type WeeklyEarningsResponse struct {
	WeekStart      string                `json:"week_start"`
	Earnings       float64               `json:"earnings"`
	HoursOnline    int                   `json:"hours_online"`
	AveragePerHour int                   `json:"average_per_hour"`
	Reservations   int                   `json:"reservations"`
	DailyData      []DayEarningsResponse `json:"daily_data"`
	TodayEarnings  float64               `json:"today_earnings"`
}

func newWorkSessionResponse(ws *domain.WorkSession) WorkSessionResponse {
	return WorkSessionResponse{
		ID:        ws.ID,
		DriverID:  ws.DriverID,
		StartTime: formatTime(ws.StartTime),
		EndTime:   formatTime(ws.EndTime),
	}
}

// StartWorkSession handles POST /v1/work-sessions/start
func (h *DriverHandler) StartWorkSession(c *gin.Context) {
	ws, err := h.workService.Start(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newWorkSessionResponse(ws))
}

// EndWorkSession handles POST /v1/work-sessions/end
func (h *DriverHandler) EndWorkSession(c *gin.Context) {
	ws, err := h.workService.End(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newWorkSessionResponse(ws))
}

// WeeklyEarnings handles GET /v1/earnings/weekly
func (h *DriverHandler) WeeklyEarnings(c *gin.Context) {
	weeks, err := h.earningsService.WeeklyEarnings(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]WeeklyEarningsResponse, 0, len(weeks))
	for _, w := range weeks {
		days := make([]DayEarningsResponse, 0, len(w.DailyData))
		for _, d := range w.DailyData {
			days = append(days, DayEarningsResponse{Day: d.Day, Earnings: d.Earnings})
		}
		resp = append(resp, WeeklyEarningsResponse{
			WeekStart:      w.WeekStart.Format("2006-01-02"),
			Earnings:       w.Earnings,
			HoursOnline:    w.HoursOnline,
			AveragePerHour: w.AveragePerHour,
			Reservations:   w.Reservations,
			DailyData:      days,
			TodayEarnings:  w.TodayEarnings,
		})
	}

	respondJSON(c, http.StatusOK, gin.H{"weeks": resp})
}
