package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tezroqyoz/typebattle/go/internal/battle"
	"github.com/tezroqyoz/typebattle/go/internal/config"
	"github.com/tezroqyoz/typebattle/go/internal/friends"
	"github.com/tezroqyoz/typebattle/go/internal/gateway"
	"github.com/tezroqyoz/typebattle/go/internal/leaderboard"
	"github.com/tezroqyoz/typebattle/go/internal/store"
	"github.com/tezroqyoz/typebattle/go/internal/typing"
	"github.com/tezroqyoz/typebattle/go/internal/users"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Store.Backend).Msg("failed to open store")
	}
	defer closeStore()

	log.Info().
		Str("backend", cfg.Store.Backend).
		Int("port", cfg.Server.Port).
		Msg("starting typebattle server")

	clock := clockwork.NewRealClock()
	userRepo := users.NewRepository(st, clock)
	friendSvc := friends.NewService(st, userRepo, clock)
	board := leaderboard.NewService(userRepo)
	coordinator := battle.NewCoordinator(st, battle.WithClock(clock))
	typingSvc := typing.NewService(userRepo, clock)

	connections := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	go connections.Start(ctx)

	server := setupServer(cfg, serverDeps{
		users:       userRepo,
		friends:     friendSvc,
		leaderboard: board,
		coordinator: coordinator,
		typing:      typingSvc,
		connections: connections,
	})

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	cancel()

	log.Info().Msg("typebattle shutdown complete")
}

// openStore builds the configured store backend and returns a cleanup
// function for it.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendNATS:
		natsCfg := store.DefaultNATSConfig()
		natsCfg.URL = cfg.NATS.URL
		natsCfg.Bucket = cfg.NATS.Bucket
		st, err := store.NewNATSStore(ctx, natsCfg)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil

	case config.BackendPostgres:
		st, err := store.NewPostgresStore(ctx, cfg.Postgres.DSN())
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil

	default:
		return store.NewMemoryStore(), func() {}, nil
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
