package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pulsecal/scheduling/internal/api"
	"github.com/pulsecal/scheduling/internal/appointment"
	"github.com/pulsecal/scheduling/internal/config"
	"github.com/pulsecal/scheduling/internal/db"
	"github.com/pulsecal/scheduling/internal/directory"
	"github.com/pulsecal/scheduling/internal/notify"
	redisclient "github.com/pulsecal/scheduling/internal/redis"
	"github.com/pulsecal/scheduling/internal/ws"
)

const version = "1.0.0"

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Str("service", "api-server").Logger()
	logger.Info().Msg("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load error")
	}

	logger.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("canonical_tz", cfg.CanonicalTZ).
		Dur("slot_duration", cfg.SlotDuration).
		Msg("configuration loaded")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	// Connect Redis
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

	// Real-time delivery: Redis pub/sub bridged into the WebSocket hub.
	hub := ws.NewHub()
	bridge := ws.NewBridge(rdb, hub, logger)
	go func() {
		if err := bridge.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("notification bridge stopped")
		}
	}()

	wsHandler := ws.NewHandler(hub, actorChannel, logger)

	router := api.NewRouter(api.RouterConfig{
		Service:       svc,
		Normalizer:    norm,
		Notifications: store,
		WSHandler:     wsHandler,
		PgPool:        pgPool,
		Redis:         rdb,
		Env:           cfg.Env,
		Version:       version,
		Logger:        logger,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()
	logger.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
}

// actorChannel derives the WebSocket channel from the authenticated user
// id, so a connection only ever receives its own notifications.
func actorChannel(r *http.Request) (string, error) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		userID = r.URL.Query().Get("user_id")
	}
	id, err := uuid.Parse(userID)
	if err != nil {
		return "", errors.New("user_id is required")
	}
	return notify.ChannelFor(id), nil
}
