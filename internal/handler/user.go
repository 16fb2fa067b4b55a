package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taxitap/internal/domain"
	"taxitap/internal/middleware"
	"taxitap/internal/service"
)

// UserHandler handles sign up, login, role switching and profile bootstrap.
type UserHandler struct {
	authService    *service.AuthService
	roleService    *service.RoleService
	profileService *service.ProfileService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(authService *service.AuthService, roleService *service.RoleService, profileService *service.ProfileService) *UserHandler {
	return &UserHandler{
		authService:    authService,
		roleService:    roleService,
		profileService: profileService,
	}
}

// RegisterRequest is the HTTP request body for user registration.
type RegisterRequest struct {
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Password    string `json:"password"`
	AccountType string `json:"account_type,omitempty"`
}

// LoginRequest is the HTTP request body for logging in.
type LoginRequest struct {
	Phone      string `json:"phone"`
	Password   string `json:"password"`
	DeviceID   string `json:"device_id,omitempty"`
	DeviceName string `json:"device_name,omitempty"`
	Platform   string `json:"platform,omitempty"`
}

// LoginResponse carries the bearer token and the opened session, if any.
type LoginResponse struct {
	Token     string           `json:"token"`
	ExpiresAt string           `json:"expires_at"`
	User      UserResponse     `json:"user"`
	Session   *SessionResponse `json:"session,omitempty"`
}

// SwitchRoleRequest is the HTTP request body for switching the active role.
type SwitchRoleRequest struct {
	Role string `json:"role"`
}

// RoleSwitchResponse is the outcome of a role or account type change.
type RoleSwitchResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	NewRole     string `json:"new_role"`
	AccountType string `json:"account_type"`
}

// Register handles POST /v1/auth/register
func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	user, err := h.authService.Register(c.Request.Context(), service.RegisterRequest{
		Name:        req.Name,
		Phone:       req.Phone,
		Password:    req.Password,
		AccountType: domain.AccountType(req.AccountType),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, newUserResponse(user))
}

// Login handles POST /v1/auth/login
func (h *UserHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	result, err := h.authService.Login(c.Request.Context(), service.LoginRequest{
		Phone:      req.Phone,
		Password:   req.Password,
		DeviceID:   req.DeviceID,
		DeviceName: req.DeviceName,
		Platform:   req.Platform,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	resp := LoginResponse{
		Token:     result.Token,
		ExpiresAt: formatTime(result.ExpiresAt),
		User:      newUserResponse(result.User),
	}
	if result.Session != nil {
		session := newSessionResponse(result.Session)
		resp.Session = &session
	}
	respondJSON(c, http.StatusOK, resp)
}

// Logout handles POST /v1/auth/logout. It ends the session of the device
// the token was issued for.
func (h *UserHandler) Logout(c *gin.Context) {
	deviceID := middleware.DeviceID(c)
	if deviceID == "" {
		respondJSON(c, http.StatusOK, gin.H{"message": "logged out"})
		return
	}
	if err := h.authService.Logout(c.Request.Context(), middleware.UserID(c), deviceID); err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"message": "logged out"})
}

// Me handles GET /v1/users/me
func (h *UserHandler) Me(c *gin.Context) {
	ctx := c.Request.Context()
	user, err := h.authService.GetUser(ctx, middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	profiles, err := h.profileService.GetProfiles(ctx, user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newMeResponse(user, profiles))
}

// SwitchRole handles POST /v1/users/me/role
func (h *UserHandler) SwitchRole(c *gin.Context) {
	var req SwitchRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	h.respondSwitch(c)(h.roleService.SwitchActiveRole(c.Request.Context(), middleware.UserID(c), domain.Role(req.Role)))
}

// BothToDriver handles POST /v1/users/me/account/both-to-driver
func (h *UserHandler) BothToDriver(c *gin.Context) {
	h.respondSwitch(c)(h.roleService.SwitchBothToDriver(c.Request.Context(), middleware.UserID(c)))
}

// BothToPassenger handles POST /v1/users/me/account/both-to-passenger
func (h *UserHandler) BothToPassenger(c *gin.Context) {
	h.respondSwitch(c)(h.roleService.SwitchBothToPassenger(c.Request.Context(), middleware.UserID(c)))
}

// DriverToBoth handles POST /v1/users/me/account/driver-to-both
func (h *UserHandler) DriverToBoth(c *gin.Context) {
	h.respondSwitch(c)(h.roleService.SwitchDriverToBoth(c.Request.Context(), middleware.UserID(c)))
}

// PassengerToBoth handles POST /v1/users/me/account/passenger-to-both
func (h *UserHandler) PassengerToBoth(c *gin.Context) {
	h.respondSwitch(c)(h.roleService.SwitchPassengerToBoth(c.Request.Context(), middleware.UserID(c)))
}

func (h *UserHandler) respondSwitch(c *gin.Context) func(*service.RoleSwitchResult, error) {
	return func(result *service.RoleSwitchResult, err error) {
		if err != nil {
			respondError(c, err)
			return
		}
		respondJSON(c, http.StatusOK, RoleSwitchResponse{
			Success:     result.Success,
			Message:     result.Message,
			NewRole:     string(result.NewRole),
			AccountType: string(result.AccountType),
		})
	}
}

// EnsurePassengerProfile handles POST /v1/profiles/passenger
func (h *UserHandler) EnsurePassengerProfile(c *gin.Context) {
	h.respondEnsure(c)(h.profileService.EnsurePassengerProfile(c.Request.Context(), middleware.UserID(c)))
}

// EnsureDriverProfile handles POST /v1/profiles/driver
func (h *UserHandler) EnsureDriverProfile(c *gin.Context) {
	h.respondEnsure(c)(h.profileService.EnsureDriverProfile(c.Request.Context(), middleware.UserID(c)))
}

// EnsureLocation handles POST /v1/profiles/location
func (h *UserHandler) EnsureLocation(c *gin.Context) {
	h.respondEnsure(c)(h.profileService.EnsureLocation(c.Request.Context(), middleware.UserID(c)))
}

func (h *UserHandler) respondEnsure(c *gin.Context) func(bool, error) {
	return func(created bool, err error) {
		if err != nil {
			respondError(c, err)
			return
		}
		code := http.StatusOK
		if created {
			code = http.StatusCreated
		}
		respondJSON(c, code, gin.H{"created": created})
	}
}
