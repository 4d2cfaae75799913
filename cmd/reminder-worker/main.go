package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/pulsecal/scheduling/internal/appointment"
	"github.com/pulsecal/scheduling/internal/config"
	"github.com/pulsecal/scheduling/internal/db"
	"github.com/pulsecal/scheduling/internal/directory"
	"github.com/pulsecal/scheduling/internal/notify"
	redisclient "github.com/pulsecal/scheduling/internal/redis"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Str("service", "reminder-worker").Logger()
	logger.Info().Msg("reminder-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load error")
	}

	logger.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.ReminderInterval).
		Dur("lead", cfg.ReminderLead).
		Msg("running reminder worker")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	repo := appointment.NewPgRepository(pgPool)
	locker := redisclient.NewRedisDoctorLocker(rdb, cfg.LockTTL)
	dir := directory.NewPgDirectory(pgPool)
	store := notify.NewPgStore(pgPool)
	publisher := notify.NewRedisPublisher(rdb)
	broadcaster := notify.NewBroadcaster(dir, store, publisher, logger)
	norm := appointment.NewNormalizer(cfg.Location())
	svc := appointment.NewService(repo, locker, dir, broadcaster, norm, cfg.SlotDuration, logger)

	// Run once at startup
	runOnce(rootCtx, svc, cfg.ReminderLead, logger)

	ticker := time.NewTicker(cfg.ReminderInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping reminder worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, cfg.ReminderLead, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *appointment.Service, lead time.Duration, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	if err := svc.SendDueReminders(runCtx, lead); err != nil {
		logger.Error().Err(err).Msg("reminder run error")
		return
	}
	logger.Info().Dur("took", time.Since(start)).Msg("reminder run complete")
}
