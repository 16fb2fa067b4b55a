// Command sweep deactivates idle device sessions once and exits. It is meant
// to run from cron when the server's own sweeper is disabled.
package main

import (
	"context"
	"flag"
	"time"

	"go.uber.org/zap"

	"taxitap/internal/app"
	"taxitap/internal/config"
	"taxitap/internal/logger"
	internalRedis "taxitap/internal/redis"
	"taxitap/internal/repository/postgres"
	"taxitap/internal/service"
)

func main() {
	cfg := config.Load()
	log := logger.Must(cfg.ServiceName+"-sweep", cfg.Log.Level)
	defer func() { _ = log.Sync() }()

	maxInactivity := flag.Duration("max-inactivity", cfg.Session.MaxInactivity, "deactivate sessions idle for longer than this")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := app.NewDatabase(ctx, cfg.Database, nil)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nil)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	sessions := service.NewSessionService(
		postgres.NewSessionRepository(db),
		internalRedis.NewLockStore(redisClient),
		service.SystemClock{},
		log,
	)

	n, err := sessions.SweepStale(ctx, *maxInactivity)
	if err != nil {
		log.Fatal("session sweep failed", zap.Error(err))
	}
	log.Info("session sweep done", zap.Int64("deactivated", n), zap.Duration("max_inactivity", *maxInactivity))
}
