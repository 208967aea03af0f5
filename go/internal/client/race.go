package client

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/typerace/go/internal/models"
	"github.com/mcdev12/typerace/go/internal/protocol"
	"github.com/mcdev12/typerace/go/internal/race"
)

// DefaultSettleDelay is the pause between a room entering Running and the
// start of the countdown.
const DefaultSettleDelay = time.Second

// Result is a completed local run.
type Result struct {
	RoomID    string
	Passage   string
	Metrics   race.Metrics
	StartedAt time.Time
	Duration  time.Duration
}

// View is an immutable picture of the race for rendering.
type View struct {
	Session   SessionState
	Room      *models.Room
	IsHost    bool
	State     race.State
	Countdown int
	Counting  bool
	Sample    string
	Typed     string
	Metrics   race.Metrics
	Cue       race.Cue
	Opponents []Opponent
	Err       error
	Done      bool
}

// RaceConfig holds Race settings.
type RaceConfig struct {
	PlayerID       string
	PlayerName     string
	UserID         string
	RequestTimeout time.Duration
	SettleDelay    time.Duration
	CountdownFrom  int
	CountdownStep  time.Duration
}

// Race drives one player's multiplayer race. Run owns every piece of state;
// other goroutines talk to it through Press, Do and Views.
type Race struct {
	transport Transport
	clock     clockwork.Clock
	config    RaceConfig

	session    *RoomSession
	stats      *StatsChannel
	controller *race.Controller
	countdown  *race.Countdown

	settle    clockwork.Timer
	startedAt time.Time
	lastCue   race.Cue
	done      bool

	onComplete func(Result)

	keys    chan race.Key
	actions chan func(context.Context)
	views   chan View
	stopped chan struct{}
}

// NewRace wires a race on transport. onComplete, when set, is called from the
// Run loop after a local run finishes.
func NewRace(transport Transport, config RaceConfig, clock clockwork.Clock, onComplete func(Result)) *Race {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if config.SettleDelay <= 0 {
		config.SettleDelay = DefaultSettleDelay
	}
	return &Race{
		transport: transport,
		clock:     clock,
		config:    config,
		session: NewRoomSession(transport, SessionConfig{
			PlayerID:       config.PlayerID,
			PlayerName:     config.PlayerName,
			RequestTimeout: config.RequestTimeout,
		}, clock),
		stats:      NewStatsChannel(transport, config.PlayerID, config.UserID),
		controller: race.NewController("", clock),
		countdown:  race.NewCountdown(clock, config.CountdownFrom, config.CountdownStep),
		onComplete: onComplete,
		keys:       make(chan race.Key, 64),
		actions:    make(chan func(context.Context), 16),
		views:      make(chan View, 1),
		stopped:    make(chan struct{}),
	}
}

// Views delivers the latest view after every change. Older unread views are
// replaced.
func (r *Race) Views() <-chan View { return r.views }

// Press queues a key press.
func (r *Race) Press(k race.Key) {
	select {
	case r.keys <- k:
	default:
		log.Warn().Msg("dropped key press, input queue full")
	}
}

// Do runs fn on the Run loop. Once Run has returned fn is dropped.
func (r *Race) Do(fn func(ctx context.Context)) {
	select {
	case r.actions <- fn:
	case <-r.stopped:
	}
}

// Enter looks roomName up and joins it, creating it with fallbackText when
// it does not exist.
func (r *Race) Enter(roomName, fallbackText string) {
	r.Do(func(ctx context.Context) {
		r.session.ClearError()
		r.session.RequestEnter(ctx, roomName, fallbackText)
	})
}

// Ready signals readiness.
func (r *Race) Ready() {
	r.Do(func(ctx context.Context) {
		r.session.ClearError()
		r.session.RequestReady(ctx)
	})
}

// Reset asks the server to reset the room.
func (r *Race) Reset() {
	r.Do(func(ctx context.Context) {
		r.session.ClearError()
		r.session.RequestReset(ctx)
	})
}

// Run processes events until ctx is cancelled. It must be called once.
func (r *Race) Run(ctx context.Context) error {
	defer close(r.stopped)
	events := r.transport.Events()
	disconnected := r.transport.Done()
	r.publishView()

	for {
		select {
		case <-ctx.Done():
			r.stopSettle()
			r.countdown.Reset()
			return ctx.Err()

		case env, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			r.handleEnvelope(ctx, env)

		case <-disconnected:
			disconnected = nil
			r.handleDisconnect()

		case id := <-r.session.Timeouts():
			if r.session.HandleTimeout(id) {
				r.stats.MarkStale("")
			}

		case tick := <-r.countdown.Ticks():
			r.handleTick(tick)

		case <-r.settleChan():
			r.handleSettle()

		case k := <-r.keys:
			r.handleKey(ctx, k)

		case fn := <-r.actions:
			fn(ctx)
		}
		r.publishView()
	}
}

func (r *Race) handleEnvelope(ctx context.Context, env protocol.Envelope) {
	effect := r.session.Handle(ctx, env)

	if effect.RoomChanged {
		room := r.session.Room()
		r.stats.Forget(room)
		r.stats.Track(room)
	}
	if effect.GameReset {
		r.resetLocal()
		r.stats.Reset()
	}
	if effect.Started {
		r.beginRace()
	}
	if effect.Left != "" {
		// The local run keeps going; only the opponent view goes stale.
		r.stats.MarkStale(effect.Left)
	}
	if effect.Stats != nil {
		r.stats.Handle(*effect.Stats)
	}
}

// beginRace prepares a fresh session and schedules the countdown after the
// settle delay.
func (r *Race) beginRace() {
	room := r.session.Room()
	r.resetLocal()
	r.controller.SetSample(room.Text)
	r.stats.Reset()
	r.settle = r.clock.NewTimer(r.config.SettleDelay)
	log.Info().Str("room_id", room.ID).Msg("race starting, countdown scheduled")
}

// resetLocal cancels the settle timer and the countdown and clears the
// keystroke session.
func (r *Race) resetLocal() {
	r.stopSettle()
	r.countdown.Reset()
	r.controller.Reset()
	r.startedAt = time.Time{}
	r.lastCue = race.CueNone
	r.done = false
}

func (r *Race) stopSettle() {
	if r.settle != nil {
		r.settle.Stop()
		r.settle = nil
	}
}

func (r *Race) settleChan() <-chan time.Time {
	if r.settle == nil {
		return nil
	}
	return r.settle.Chan()
}

func (r *Race) handleSettle() {
	r.settle = nil
	r.countdown.Reset()
	r.countdown.Start()
}

func (r *Race) handleTick(tick race.Tick) {
	if !r.countdown.IsCurrent(tick) {
		return
	}
	if tick.Done() {
		r.controller.Unlock()
	}
}

func (r *Race) handleKey(ctx context.Context, k race.Key) {
	r.session.ClearError()
	out := r.controller.HandleKey(k)
	if !out.Changed {
		return
	}
	r.lastCue = out.Cue
	if r.startedAt.IsZero() {
		r.startedAt = r.controller.StartedAt()
	}

	roomID := r.session.RoomID()
	if out.Completed {
		r.complete(ctx, roomID, out.Metrics)
		return
	}
	if roomID == "" {
		return
	}
	if err := r.stats.Publish(ctx, roomID, out.Metrics.Stats()); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn().Err(err).Msg("failed to publish stats")
	}
}

func (r *Race) complete(ctx context.Context, roomID string, m race.Metrics) {
	r.done = true
	if roomID != "" {
		if err := r.stats.PublishFinal(ctx, roomID, m.Stats()); err != nil {
			log.Error().Err(err).Str("room_id", roomID).Msg("failed to send race result")
		}
	}
	res := Result{
		RoomID:    roomID,
		Passage:   r.controller.Sample(),
		Metrics:   m,
		StartedAt: r.startedAt,
		Duration:  r.clock.Since(r.startedAt),
	}
	log.Info().Str("room_id", roomID).Int("wpm", m.WPM).Int("accuracy", m.Accuracy).Msg("race completed")
	if r.onComplete != nil {
		r.onComplete(res)
	}
}

func (r *Race) handleDisconnect() {
	r.session.MarkDisconnected()
	r.stats.MarkStale("")
	log.Warn().Msg("lost connection to race server")
}

// View builds the current view. It must be called from the Run loop.
func (r *Race) View() View {
	return View{
		Session:   r.session.State(),
		Room:      r.session.Room(),
		IsHost:    r.session.IsHost(),
		State:     r.controller.State(),
		Countdown: r.countdown.Current(),
		Counting:  r.countdown.Running() || r.settle != nil,
		Sample:    r.controller.Sample(),
		Typed:     r.controller.Typed(),
		Metrics:   r.controller.Metrics(),
		Cue:       r.lastCue,
		Opponents: r.stats.Opponents(),
		Err:       r.session.Err(),
		Done:      r.done,
	}
}

func (r *Race) publishView() {
	v := r.View()
	select {
	case r.views <- v:
		return
	default:
	}
	select {
	case <-r.views:
	default:
	}
	select {
	case r.views <- v:
	default:
	}
}
