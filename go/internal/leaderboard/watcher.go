package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// WatcherConfig holds LISTEN settings.
type WatcherConfig struct {
	DatabaseURL  string
	Channel      string
	PingInterval time.Duration
}

// DefaultWatcherConfig returns the default LISTEN settings.
func DefaultWatcherConfig(dsn string) WatcherConfig {
	return WatcherConfig{
		DatabaseURL:  dsn,
		Channel:      NotifyChannel,
		PingInterval: 90 * time.Second,
	}
}

type notifier interface {
	NotificationChannel() <-chan *pq.Notification
	Ping() error
	Close() error
}

// Watcher drops the ranking cache when any instance inserts a record.
type Watcher struct {
	listener   notifier
	invalidate func()
	clock      clockwork.Clock
	cfg        WatcherConfig
}

// NewWatcher opens a pq listener on the notify channel.
func NewWatcher(app *App, cfg WatcherConfig) (*Watcher, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("leaderboard listener event")
			}
		},
	)
	if err := l.Listen(cfg.Channel); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().Str("channel", cfg.Channel).Msg("listening for leaderboard changes")
	return newWatcher(l, app.Invalidate, clockwork.NewRealClock(), cfg), nil
}

func newWatcher(l notifier, invalidate func(), clock clockwork.Clock, cfg WatcherConfig) *Watcher {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 90 * time.Second
	}
	return &Watcher{listener: l, invalidate: invalidate, clock: clock, cfg: cfg}
}

// Start runs until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	pingTicker := w.clock.NewTicker(w.cfg.PingInterval)
	defer pingTicker.Stop()

	notes := w.listener.NotificationChannel()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("leaderboard watcher shutting down")
			return w.listener.Close()
		case note, ok := <-notes:
			if !ok {
				return nil
			}
			// A nil notification follows a reconnect; anything may have been
			// missed, so the cache is dropped either way.
			if note != nil {
				log.Debug().Str("record_id", note.Extra).Msg("leaderboard changed")
			}
			w.invalidate()
		case <-pingTicker.Chan():
			if err := w.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping leaderboard listener")
			}
		}
	}
}
