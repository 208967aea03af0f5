// Package gateway serves race rooms over WebSocket: it applies client events
// to the room registry and broadcasts room and stats updates to members.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/typerace/go/internal/activity"
	"github.com/mcdev12/typerace/go/internal/models"
	"github.com/mcdev12/typerace/go/internal/protocol"
	"github.com/mcdev12/typerace/go/internal/room"
	"github.com/mcdev12/typerace/go/internal/statsbus"
)

// Config holds configuration for the gateway service.
type Config struct {
	ConnectionConfig ConnectionConfig
	RequestTimeout   time.Duration
}

// DefaultConfig returns default configuration for the gateway.
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		RequestTimeout:   5 * time.Second,
	}
}

// Deps are the collaborators the gateway drives.
type Deps struct {
	Registry *room.Registry
	Bus      statsbus.Bus
	Results  ResultSubmitter
	Activity activity.Log
}

// Service is the gateway service.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	dispatcher        *Dispatcher
	registry          *room.Registry
	bus               statsbus.Bus
	activity          activity.Log
}

// NewService creates a new gateway service.
func NewService(config Config, deps Deps) (*Service, error) {
	if deps.Registry == nil || deps.Bus == nil || deps.Results == nil {
		return nil, fmt.Errorf("gateway requires a registry, a stats bus and a result submitter")
	}
	if deps.Activity == nil {
		deps.Activity = activity.NoopLog{}
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 5 * time.Second
	}

	dispatcher := &Dispatcher{
		registry: deps.Registry,
		bus:      deps.Bus,
		results:  deps.Results,
		activity: deps.Activity,
		timeout:  config.RequestTimeout,
	}
	connectionManager := NewConnectionManager(config.ConnectionConfig, dispatcher)
	dispatcher.conns = connectionManager

	return &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager),
		dispatcher:        dispatcher,
		registry:          deps.Registry,
		bus:               deps.Bus,
		activity:          deps.Activity,
	}, nil
}

// Start runs the broadcaster, the stats relay and the idle-room sweeper. It
// blocks until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting race gateway service")

	snapshots, err := s.bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to stats bus: %w", err)
	}

	go s.connectionManager.Start(ctx)
	go s.registry.RunSweeper(ctx)
	go s.relayStats(snapshots)

	<-ctx.Done()
	log.Info().Msg("race gateway service shutting down")
	return s.Stop()
}

// relayStats turns bus snapshots into playerStats broadcasts. It runs on one
// goroutine so a player's snapshots keep their bus order.
func (s *Service) relayStats(snapshots <-chan models.StatsSnapshot) {
	for snap := range snapshots {
		env, err := protocol.NewEnvelope(protocol.EventPlayerStats, protocol.PlayerStatsFromSnapshot(snap))
		if err != nil {
			log.Error().Err(err).Msg("failed to build playerStats")
			continue
		}
		s.connectionManager.BroadcastToRoom(snap.RoomID, env)
	}
}

// Stop releases the bus and the activity log.
func (s *Service) Stop() error {
	if err := s.bus.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close stats bus")
	}
	if err := s.activity.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close activity log")
	}
	log.Info().Msg("race gateway service stopped")
	return nil
}

// RegisterRoutes registers the WebSocket HTTP routes.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	log.Info().Msg("race gateway routes registered")
}

// GetStats returns connection statistics.
func (s *Service) GetStats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}
