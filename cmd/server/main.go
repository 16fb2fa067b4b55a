package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"taxitap/internal/app"
	"taxitap/internal/broker"
	"taxitap/internal/config"
	"taxitap/internal/handler"
	"taxitap/internal/logger"
	internalRedis "taxitap/internal/redis"
	"taxitap/internal/repository/postgres"
	"taxitap/internal/service"
)

func main() {
	cfg := config.Load()
	log := logger.Must(cfg.ServiceName, cfg.Log.Level)
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}
	if cfg.Auth.UsesDefaultSecret() {
		log.Warn("JWT_SECRET is unset, signing tokens with the default secret")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// New Relic goes first so the database and Redis clients get instrumented.
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Warn("failed to initialize New Relic", zap.Error(err))
		} else {
			log.Info("New Relic enabled", zap.String("app", cfg.NewRelic.AppName))
		}
	}

	if err := app.MigrateUp(cfg.Database, log); err != nil {
		log.Fatal("failed to apply migrations", zap.Error(err))
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	log.Info("connected to PostgreSQL")

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("connected to Redis")

	sender := service.Sender(service.NewLogSender(log))
	if cfg.RabbitMQ.Enabled {
		publisher, err := broker.Connect(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, log)
		if err != nil {
			log.Fatal("failed to connect to rabbitmq", zap.Error(err))
		}
		defer publisher.Close()
		sender = service.NewBrokerSender(publisher)
		log.Info("connected to RabbitMQ", zap.String("exchange", cfg.RabbitMQ.Exchange))
	}

	server, sessions := wireServer(db, redisClient, sender, nrApp, cfg, log)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go sweepSessions(sweepCtx, sessions, cfg.Session, log)

	go func() {
		log.Info("starting server", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")
	stopSweep()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	log.Info("server exited")
}

// sweepSessions deactivates idle device sessions until ctx is cancelled.
func sweepSessions(ctx context.Context, sessions *service.SessionService, cfg config.SessionConfig, log *zap.Logger) {
	if cfg.SweepInterval <= 0 {
		return
	}

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := sessions.SweepStale(ctx, cfg.MaxInactivity); err != nil {
				log.Error("session sweep failed", zap.Error(err))
			}
		}
	}
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(
	db *sql.DB,
	redisClient *redis.Client,
	sender service.Sender,
	nrApp *newrelic.Application,
	cfg *config.Config,
	log *zap.Logger,
) (*http.Server, *service.SessionService) {
	clock := service.SystemClock{}

	// Redis stores.
	lockStore := internalRedis.NewLockStore(redisClient)
	attemptStore := internalRedis.NewAttemptStore(redisClient)

	// Repositories.
	userRepo := postgres.NewUserRepository(db)
	profileRepo := postgres.NewProfileRepository(db)
	sessionRepo := postgres.NewSessionRepository(db)
	rideRepo := postgres.NewRideRepository(db)
	tripRepo := postgres.NewTripRepository(db)
	workRepo := postgres.NewWorkSessionRepository(db)
	feedbackRepo := postgres.NewFeedbackRepository(db)

	// Services.
	notificationService := service.NewNotificationService(sender, clock, log)
	profileService := service.NewProfileService(profileRepo, log)
	sessionService := service.NewSessionService(sessionRepo, lockStore, clock, log)
	tokenIssuer := service.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, clock)
	authService := service.NewAuthService(userRepo, profileService, sessionService, tokenIssuer, clock, log)
	tripService := service.NewTripService(tripRepo, rideRepo, userRepo, clock, log)

	rideCfg := service.DefaultRideConfig()
	rideCfg.MaxPinAttempts = cfg.Ride.MaxPinAttempts
	rideCfg.PinLockoutTTL = cfg.Ride.PinLockoutTTL
	rideService := service.NewRideService(
		rideRepo, userRepo, profileRepo, tripService,
		attemptStore, lockStore, notificationService,
		clock, log, rideCfg,
	)

	roleService := service.NewRoleService(userRepo, rideRepo, profileService, clock, log)
	workService := service.NewWorkSessionService(workRepo, clock)
	earningsService := service.NewEarningsService(tripRepo, workRepo, clock, cfg.Earnings.Location())
	feedbackService := service.NewFeedbackService(feedbackRepo, rideRepo, clock)

	router := app.NewRouter(app.RouterDeps{
		UserHandler:    handler.NewUserHandler(authService, roleService, profileService),
		SessionHandler: handler.NewSessionHandler(sessionService, authService, cfg.Session.MaxInactivity),
		RideHandler:    handler.NewRideHandler(rideService),
		TripHandler:    handler.NewTripHandler(tripService),
		DriverHandler:  handler.NewDriverHandler(workService, earningsService),
		PaymentHandler: handler.NewPaymentHandler(rideService, feedbackService),
		Tokens:         tokenIssuer,
		Sessions:       sessionService,
		RedisClient:    redisClient,
		NewRelicApp:    nrApp,
		Logger:         log,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, sessionService
}
