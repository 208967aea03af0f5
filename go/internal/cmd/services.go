package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/typerace/go/internal/activity"
	"github.com/mcdev12/typerace/go/internal/dbconfig"
	"github.com/mcdev12/typerace/go/internal/gateway"
	"github.com/mcdev12/typerace/go/internal/leaderboard"
	"github.com/mcdev12/typerace/go/internal/passages"
	"github.com/mcdev12/typerace/go/internal/room"
	"github.com/mcdev12/typerace/go/internal/statsbus"
)

// Services are the long-running parts of the server.
type Services struct {
	Gateway     *gateway.Service
	Leaderboard *leaderboard.Service
	LeaderApp   *leaderboard.App
	Watcher     *leaderboard.Watcher

	db   *sql.DB
	pool *pgxpool.Pool
}

// Close releases database handles.
func (s *Services) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close database")
		}
	}
}

func setupServices(ctx context.Context, config *Config, dbCfg dbconfig.Config) (*Services, error) {
	// Wire up dependency injection chain
	// Database layer → Repository layer → App layer → Service layer
	s := &Services{}

	var repo leaderboard.Repository = leaderboard.NewMemoryRepository()
	if config.Leaderboard.Store == "postgres" {
		database, err := setupDatabase(ctx, dbCfg)
		if err != nil {
			return nil, err
		}
		s.db = database
		pg := leaderboard.NewPostgresRepository(database)
		if err := pg.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		repo = pg
	}
	s.LeaderApp = leaderboard.NewApp(repo, nil)
	s.Leaderboard = leaderboard.NewService(s.LeaderApp)
	log.Info().Str("store", config.Leaderboard.Store).Msg("leaderboard ready")

	if config.Leaderboard.Store == "postgres" {
		watcher, err := leaderboard.NewWatcher(s.LeaderApp, leaderboard.DefaultWatcherConfig(dbCfg.DSN()))
		if err != nil {
			s.Close()
			return nil, err
		}
		s.Watcher = watcher
	}

	builtin := passages.NewStatic(passages.Builtin)
	var picker room.PassagePicker = builtin
	if config.Passages.Source == "postgres" {
		pool, err := setupPool(ctx, dbCfg)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.pool = pool
		store := passages.NewStore(pool, builtin)
		if err := store.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, err
		}
		picker = store
	}
	log.Info().Str("source", config.Passages.Source).Msg("passage source ready")

	bus, err := setupStatsBus(ctx, config)
	if err != nil {
		s.Close()
		return nil, err
	}

	roomCfg := room.DefaultConfig()
	if config.Rooms.IdleTTL > 0 {
		roomCfg.IdleTTL = config.Rooms.IdleTTL
	}
	if config.Rooms.SweepInterval > 0 {
		roomCfg.SweepInterval = config.Rooms.SweepInterval
	}

	gwCfg := gateway.DefaultConfig()
	if config.Gateway.RequestTimeout > 0 {
		gwCfg.RequestTimeout = config.Gateway.RequestTimeout
	}
	if config.Gateway.PingInterval > 0 {
		gwCfg.ConnectionConfig.PingInterval = config.Gateway.PingInterval
	}
	if config.Gateway.MaxMessageSize > 0 {
		gwCfg.ConnectionConfig.MaxMessageSize = config.Gateway.MaxMessageSize
	}

	gw, err := gateway.NewService(gwCfg, gateway.Deps{
		Registry: room.NewRegistry(roomCfg, picker, nil),
		Bus:      bus,
		Results:  s.LeaderApp,
		Activity: setupActivityLog(config),
	})
	if err != nil {
		bus.Close()
		s.Close()
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}
	s.Gateway = gw
	return s, nil
}

func setupStatsBus(ctx context.Context, config *Config) (statsbus.Bus, error) {
	if config.StatsBus.Driver != "jetstream" {
		log.Info().Msg("using in-memory stats bus")
		return statsbus.NewMemoryBus(256), nil
	}

	jsCfg := statsbus.DefaultJetStreamConfig()
	if config.StatsBus.NatsURL != "" {
		jsCfg.URL = config.StatsBus.NatsURL
	}
	if config.StatsBus.Stream != "" {
		jsCfg.StreamName = config.StatsBus.Stream
	}
	if config.StatsBus.SubjectPrefix != "" {
		jsCfg.SubjectPrefix = config.StatsBus.SubjectPrefix
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	bus, err := statsbus.NewJetStreamBus(connectCtx, jsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect stats bus: %w", err)
	}
	log.Info().Str("url", jsCfg.URL).Str("stream", jsCfg.StreamName).Msg("using JetStream stats bus")
	return bus, nil
}

func setupActivityLog(config *Config) activity.Log {
	if config.Activity.Driver != "kafka" {
		return activity.NoopLog{}
	}
	kCfg := activity.DefaultKafkaConfig()
	if len(config.Activity.Brokers) > 0 {
		kCfg.Brokers = config.Activity.Brokers
	}
	if config.Activity.Topic != "" {
		kCfg.Topic = config.Activity.Topic
	}
	log.Info().Strs("brokers", kCfg.Brokers).Str("topic", kCfg.Topic).Msg("recording room activity to Kafka")
	return activity.NewKafkaLog(kCfg)
}
