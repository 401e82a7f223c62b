package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/flyimmer/breakloop-native-sub009/internal/appstate"
	"github.com/flyimmer/breakloop-native-sub009/internal/config"
	"github.com/flyimmer/breakloop-native-sub009/internal/gate"
	"github.com/flyimmer/breakloop-native-sub009/internal/httpserver"
	"github.com/flyimmer/breakloop-native-sub009/internal/logging"
	"github.com/flyimmer/breakloop-native-sub009/internal/postgres"
	"github.com/flyimmer/breakloop-native-sub009/internal/quota"
	"github.com/flyimmer/breakloop-native-sub009/internal/redis"
	"github.com/flyimmer/breakloop-native-sub009/internal/suppression"
	"github.com/flyimmer/breakloop-native-sub009/internal/surface"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func setupRedis(ctx context.Context, cfg *config.Config) *goredis.Client {
	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func runGracefulShutdown(srv *httpserver.Server, hub *surface.Hub, cancelTicker context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		cancelTicker()
		hub.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	pool := setupDB(cfg)
	defer pool.Close()

	redisClient := setupRedis(context.Background(), cfg)
	defer func() { _ = redisClient.Close() }()

	settingsRepo := postgres.NewSettingsRepo(pool)
	quotaStore := quota.NewStore(redis.NewQuotaRepo(redisClient), clock)
	supRegistry := suppression.NewRegistry(redis.NewSuppressionRepo(redisClient), clock)
	entries := appstate.NewRegistry(redis.NewEntryRepo(redisClient), clock)
	snapshots := redis.NewSnapshotRepo(redisClient)

	hub := surface.NewHub(cfg.MaxSurfaceConnections)

	g := gate.New(settingsRepo, quotaStore, supRegistry, entries, snapshots, hub, clock, cfg.SettingsCacheTTL)

	tickerCtx, cancelTicker := context.WithCancel(context.Background())
	go g.Run(tickerCtx, cfg.TickInterval)

	srv := httpserver.NewServer(cfg, g, hub, settingsRepo, redisClient, pool)

	done := runGracefulShutdown(srv, hub, cancelTicker)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
