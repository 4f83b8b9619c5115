package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/tezroqyoz/typebattle/go/internal/battle"
	"github.com/tezroqyoz/typebattle/go/internal/config"
	"github.com/tezroqyoz/typebattle/go/internal/friends"
	"github.com/tezroqyoz/typebattle/go/internal/gateway"
	"github.com/tezroqyoz/typebattle/go/internal/leaderboard"
	"github.com/tezroqyoz/typebattle/go/internal/typing"
	"github.com/tezroqyoz/typebattle/go/internal/users"
)

type serverDeps struct {
	users       *users.Repository
	friends     *friends.Service
	leaderboard *leaderboard.Service
	coordinator *battle.Coordinator
	typing      *typing.Service
	connections *gateway.ConnectionManager
}

func setupServer(cfg *config.Config, deps serverDeps) *http.Server {
	mux := http.NewServeMux()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	gateway.NewAPIHandler(deps.users, deps.friends, deps.leaderboard, deps.coordinator, nil).RegisterRoutes(mux)
	gateway.NewRaceHandler(deps.connections, deps.coordinator, nil).RegisterRoutes(mux)
	gateway.NewTestHandler(deps.connections, deps.typing, nil).RegisterRoutes(mux)

	// Add health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      c.Handler(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}
