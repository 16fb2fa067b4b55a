package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"taxitap/internal/middleware"
	"taxitap/internal/service"
)

// SessionHandler handles device session requests.
type SessionHandler struct {
	sessionService *service.SessionService
	authService    *service.AuthService
	maxInactivity  time.Duration
}

// NewSessionHandler creates a new SessionHandler. maxInactivity is the
// idle window applied by cleanup.
func NewSessionHandler(sessionService *service.SessionService, authService *service.AuthService, maxInactivity time.Duration) *SessionHandler {
	return &SessionHandler{sessionService: sessionService, authService: authService, maxInactivity: maxInactivity}
}

// CreateSessionRequest is the HTTP request body for registering a device session.
type CreateSessionRequest struct {
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name,omitempty"`
	Platform   string `json:"platform,omitempty"`
}

// CreateSession handles POST /v1/sessions. The session takes the caller's current role.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	ctx := c.Request.Context()
	user, err := h.authService.GetUser(ctx, middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	session, err := h.sessionService.CreateSession(ctx, service.CreateSessionRequest{
		UserID:     user.ID,
		DeviceID:   req.DeviceID,
		DeviceName: req.DeviceName,
		Platform:   req.Platform,
		Role:       user.CurrentActiveRole,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, newSessionResponse(session))
}

// ListSessions handles GET /v1/sessions
func (h *SessionHandler) ListSessions(c *gin.Context) {
	sessions, err := h.sessionService.ListActive(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		resp = append(resp, newSessionResponse(s))
	}
	respondJSON(c, http.StatusOK, gin.H{"sessions": resp, "count": len(resp)})
}

// DeactivateSession handles POST /v1/sessions/:device_id/deactivate. Only
// the caller's own devices can be deactivated.
func (h *SessionHandler) DeactivateSession(c *gin.Context) {
	n, err := h.sessionService.Logout(c.Request.Context(), middleware.UserID(c), c.Param("device_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if n == 0 {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no active session for this device"})
		return
	}
	respondCount(c, n)
}

// LogoutAll handles POST /v1/sessions/logout-all
func (h *SessionHandler) LogoutAll(c *gin.Context) {
	n, err := h.sessionService.ForceLogoutAll(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondCount(c, n)
}

// Cleanup handles POST /v1/sessions/cleanup. It runs the regular sweep with
// the configured idle window; the request body is ignored.
func (h *SessionHandler) Cleanup(c *gin.Context) {
	n, err := h.sessionService.SweepStale(c.Request.Context(), h.maxInactivity)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCount(c, n)
}

// respondCount writes the number of affected sessions.
func respondCount(c *gin.Context, n int64) {
	respondJSON(c, http.StatusOK, gin.H{"deactivated": n})
}
