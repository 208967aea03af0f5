package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"connectrpc.com/grpcreflect"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/typerace/go/internal/leaderboard"
)

func setupServer(config *Config, services *Services) (*http.Server, error) {
	mux := http.NewServeMux()

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedOrigins: config.Server.AllowedOrigins,
		AllowedHeaders: []string{"*"},
	})

	if err := registerServices(mux, services); err != nil {
		return nil, err
	}
	setupReflection(mux)
	setupHealthCheck(mux, services)

	return &http.Server{
		Addr:              fmt.Sprintf(":%s", config.Server.Port),
		Handler:           h2c.NewHandler(c.Handler(mux), &http2.Server{}),
		ReadHeaderTimeout: config.Server.ReadHeaderTimeout,
	}, nil
}

func registerServices(mux *http.ServeMux, services *Services) error {
	services.Gateway.RegisterRoutes(mux)
	leaderboard.RegisterRoutes(mux, services.LeaderApp)

	path, handler, err := leaderboard.NewHandler(services.Leaderboard)
	if err != nil {
		return fmt.Errorf("failed to build leaderboard handler: %w", err)
	}
	mux.Handle(path, handler)
	return nil
}

func setupReflection(mux *http.ServeMux) {
	reflector := grpcreflect.NewStaticReflector(leaderboard.ServiceName)
	mux.Handle(grpcreflect.NewHandlerV1(reflector))
	mux.Handle(grpcreflect.NewHandlerV1Alpha(reflector))
}

func setupHealthCheck(mux *http.ServeMux, services *Services) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		stats := services.Gateway.GetStats()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(map[string]any{
			"status":      "ok",
			"connections": stats.TotalConnections,
			"rooms":       stats.ActiveRooms,
		}); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}
