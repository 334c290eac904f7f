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

	log "github.com/sirupsen/logrus"

	"github.com/iamasit07/hextron/backend/internal/config"
	"github.com/iamasit07/hextron/backend/internal/logging"
	"github.com/iamasit07/hextron/backend/internal/repository/postgres"
	"github.com/iamasit07/hextron/backend/internal/repository/redis"
	"github.com/iamasit07/hextron/backend/internal/service/cleanup"
	"github.com/iamasit07/hextron/backend/internal/service/game"
	"github.com/iamasit07/hextron/backend/internal/service/matchmaking"
	transportHttp "github.com/iamasit07/hextron/backend/internal/transport/http"
	"github.com/iamasit07/hextron/backend/internal/transport/websocket"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if err := logging.Setup(cfg.LogLevel, cfg.LogFormat, os.Stderr); err != nil {
		log.Fatalf("Invalid logging configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Persistence (optional)
	var (
		db        *sql.DB
		matchRepo *postgres.MatchRepo
	)
	if cfg.DatabaseURL != "" {
		db, err = postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
			MaxOpenConns:       cfg.DBMaxOpenConns,
			MaxIdleConns:       cfg.DBMaxIdleConns,
			ConnMaxLifetimeMin: cfg.DBConnMaxLifetimeMin,
		})
		if err != nil {
			log.Fatalf("Database unreachable: %v", err)
		}
		defer db.Close()

		log.Info("[DB] Running database migrations...")
		if err := postgres.RunMigrations(ctx, db); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		matchRepo = postgres.NewMatchRepo(db)
	} else {
		log.Info("[DB] DATABASE_URL not set, match history disabled")
	}

	var liveIndex *redis.LiveIndex
	redisClient := redis.InitRedis(ctx, cfg.RedisURL, cfg.RedisPassword)
	if redisClient != nil {
		defer redisClient.Close()
		liveIndex = redis.NewLiveIndex(redisClient, cfg.LiveMatchTTL)
	}

	// 2. Services
	connManager := websocket.NewConnectionManager()
	registry, err := matchmaking.NewRegistry(matchmaking.Settings{
		Rows:          cfg.Game.Rows,
		Cols:          cfg.Game.Cols,
		Rounds:        cfg.Game.Rounds,
		Players:       cfg.Game.Players,
		BotDifficulty: cfg.Game.BotDifficulty,
		Engine: game.Settings{
			ChoiceTimeout: cfg.Game.ChoiceTimeout,
			SetupTimeout:  cfg.Game.SetupTimeout,
		},
	}, connManager, registryOptions(matchRepo, liveIndex, cfg.LiveMatchTTL)...)
	if err != nil {
		log.Fatalf("Failed to create match registry: %v", err)
	}

	// 3. Background workers
	cleanup.NewWorker(registry, cfg.CleanupInterval, cfg.MatchmakingTimeout).Start(ctx)

	// 4. Transport
	routes := transportHttp.Routes{
		AllowedOrigins: cfg.AllowedOrigins,
		Watch:          transportHttp.NewWatchHandler(registry, clusterLister(liveIndex)),
		WebSocket:      websocket.NewHandler(connManager, registry, cfg.AllowedOrigins).HandleWebSocket,
	}
	if matchRepo != nil {
		routes.History = transportHttp.NewHistoryHandler(matchRepo)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: transportHttp.NewRouter(routes),
	}

	go func() {
		log.Infof("Server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}
	registry.Shutdown()

	log.Info("Server exited gracefully")
}

func registryOptions(repo *postgres.MatchRepo, live *redis.LiveIndex, liveTTL time.Duration) []matchmaking.Option {
	var opts []matchmaking.Option
	if repo != nil {
		opts = append(opts, matchmaking.WithRecorder(repo))
	}
	if live != nil {
		opts = append(opts, matchmaking.WithLiveIndex(live, liveTTL/2))
	}
	return opts
}

// a nil *LiveIndex must not end up inside a non-nil interface
func clusterLister(live *redis.LiveIndex) transportHttp.ClusterLister {
	if live == nil {
		return nil
	}
	return live
}
