package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"go.uber.org/zap"

	"taxitap/internal/handler"
	"taxitap/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	UserHandler    *handler.UserHandler
	SessionHandler *handler.SessionHandler
	RideHandler    *handler.RideHandler
	TripHandler    *handler.TripHandler
	DriverHandler  *handler.DriverHandler
	PaymentHandler *handler.PaymentHandler

	Tokens   middleware.TokenParser
	Sessions middleware.SessionHeartbeat

	// RedisClient backs idempotent replays; nil disables them.
	RedisClient middleware.IdempotencyStore
	NewRelicApp *newrelic.Application
	Logger      *zap.Logger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.CORSMiddleware())

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	var idempotent gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if deps.RedisClient != nil {
		idempotent = middleware.Idempotency(deps.RedisClient, logger)
	}

	v1 := router.Group("/v1")

	auth := v1.Group("/auth")
	{
		auth.POST("/register", deps.UserHandler.Register)
		auth.POST("/login", deps.UserHandler.Login)
	}

	protected := v1.Group("")
	protected.Use(middleware.Auth(deps.Tokens, deps.Sessions))
	protected.Use(middleware.NewRelicAttributes())

	protected.POST("/auth/logout", deps.UserHandler.Logout)

	users := protected.Group("/users/me")
	{
		users.GET("", deps.UserHandler.Me)
		users.POST("/role", deps.UserHandler.SwitchRole)
		users.POST("/account/both-to-driver", deps.UserHandler.BothToDriver)
		users.POST("/account/both-to-passenger", deps.UserHandler.BothToPassenger)
		users.POST("/account/driver-to-both", deps.UserHandler.DriverToBoth)
		users.POST("/account/passenger-to-both", deps.UserHandler.PassengerToBoth)
	}

	profiles := protected.Group("/profiles")
	{
		profiles.POST("/passenger", deps.UserHandler.EnsurePassengerProfile)
		profiles.POST("/driver", deps.UserHandler.EnsureDriverProfile)
		profiles.POST("/location", deps.UserHandler.EnsureLocation)
	}

	sessions := protected.Group("/sessions")
	{
		sessions.POST("", deps.SessionHandler.CreateSession)
		sessions.GET("", deps.SessionHandler.ListSessions)
		sessions.POST("/logout-all", deps.SessionHandler.LogoutAll)
		sessions.POST("/cleanup", deps.SessionHandler.Cleanup)
		sessions.POST("/:device_id/deactivate", deps.SessionHandler.DeactivateSession)
	}

	rides := protected.Group("/rides")
	{
		rides.POST("", idempotent, deps.RideHandler.RequestRide)
		rides.GET("", deps.RideHandler.ListRides)
		rides.GET("/:id", deps.RideHandler.GetRide)
		rides.POST("/:id/accept", idempotent, deps.RideHandler.AcceptRide)
		rides.POST("/:id/decline", deps.RideHandler.DeclineRide)
		rides.POST("/:id/cancel", deps.RideHandler.CancelRide)
		rides.POST("/:id/pin/regenerate", deps.RideHandler.RegeneratePin)
		rides.POST("/:id/pin/verify", deps.RideHandler.VerifyPin)
		rides.POST("/:id/pin/verify-driver", deps.RideHandler.VerifyDriverPin)
		rides.POST("/:id/complete", deps.RideHandler.CompleteRide)
		rides.POST("/:id/end", deps.RideHandler.EndRide)
		rides.POST("/:id/payment", deps.PaymentHandler.ConfirmPayment)
		rides.POST("/:id/feedback", deps.PaymentHandler.SubmitFeedback)
	}

	trips := protected.Group("/trips")
	{
		trips.POST("/start", idempotent, deps.TripHandler.StartTrip)
		trips.POST("/end", deps.TripHandler.EndTrip)
	}

	protected.POST("/work-sessions/start", deps.DriverHandler.StartWorkSession)
	protected.POST("/work-sessions/end", deps.DriverHandler.EndWorkSession)
	protected.GET("/earnings/weekly", deps.DriverHandler.WeeklyEarnings)
	protected.GET("/drivers/:id/feedback", deps.PaymentHandler.ListDriverFeedback)

	return router
}
