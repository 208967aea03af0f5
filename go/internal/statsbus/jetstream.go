package statsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/typerace/go/internal/models"
)

// JetStreamConfig holds the NATS connection and stream settings.
type JetStreamConfig struct {
	URL             string
	StreamName      string
	SubjectPrefix   string
	MaxReconnects   int
	ReconnectWait   time.Duration
	MaxAge          time.Duration
	DuplicateWindow time.Duration
	SubscriberQueue int
}

// DefaultJetStreamConfig returns the default stats stream settings.
func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:             nats.DefaultURL,
		StreamName:      "TYPERACE_STATS",
		SubjectPrefix:   "typerace.stats",
		MaxReconnects:   -1,
		ReconnectWait:   2 * time.Second,
		MaxAge:          10 * time.Minute,
		DuplicateWindow: time.Minute,
		SubscriberQueue: 256,
	}
}

// JetStreamBus publishes snapshots to a memory-backed JetStream stream. Every
// subscriber reads through its own ordered consumer starting at new messages,
// so each gateway instance sees every snapshot in per-subject order.
type JetStreamBus struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config JetStreamConfig
}

// NewJetStreamBus connects to NATS and ensures the stats stream exists.
func NewJetStreamBus(ctx context.Context, cfg JetStreamConfig) (*JetStreamBus, error) {
	opts := []nats.Option{
		nats.Name("typerace-gateway"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	b := &JetStreamBus{nc: nc, js: js, config: cfg}
	if err := b.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}
	return b, nil
}

func (b *JetStreamBus) streamConfig() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        b.config.StreamName,
		Description: "Live typing stats snapshots",
		Subjects:    []string{b.config.SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      b.config.MaxAge,
		Storage:     jetstream.MemoryStorage,
		Replicas:    1,
		Duplicates:  b.config.DuplicateWindow,
	}
}

func (b *JetStreamBus) ensureStream(ctx context.Context) error {
	sc := b.streamConfig()

	stream, err := b.js.Stream(ctx, sc.Name)
	if err != nil {
		if _, err = b.js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		log.Info().Str("stream", sc.Name).Msg("created JetStream stream")
		return nil
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("get stream info: %w", err)
	}
	if !isStreamConfigEqual(info.Config, sc) {
		if _, err = b.js.UpdateStream(ctx, sc); err != nil {
			return fmt.Errorf("update stream: %w", err)
		}
		log.Info().Str("stream", sc.Name).Msg("updated JetStream stream")
	}
	return nil
}

// msgID deduplicates retried publishes of the same snapshot. Seq restarts
// with every client session, so the session is part of the id.
func msgID(snap models.StatsSnapshot) string {
	if snap.Seq == 0 || snap.Session == "" {
		return uuid.NewString()
	}
	return snap.RoomID + "/" + snap.PlayerID + "/" + snap.Session + "/" + strconv.FormatUint(snap.Seq, 10)
}

// Publish sends snap on the player's subject.
func (b *JetStreamBus) Publish(ctx context.Context, snap models.StatsSnapshot) error {
	if snap.SentAt.IsZero() {
		snap.SentAt = time.Now().UTC()
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	subject := Subject(b.config.SubjectPrefix, snap.RoomID, snap.PlayerID)
	ack, err := b.js.PublishMsg(ctx, &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"Room-ID":   []string{snap.RoomID},
			"Player-ID": []string{snap.PlayerID},
		},
	},
		jetstream.WithMsgID(msgID(snap)),
		jetstream.WithExpectStream(b.config.StreamName),
	)
	if err != nil {
		return fmt.Errorf("publish to JetStream: %w", err)
	}

	log.Debug().
		Str("subject", subject).
		Uint64("sequence", ack.Sequence).
		Bool("duplicate", ack.Duplicate).
		Msg("published stats snapshot")
	return nil
}

// Subscribe starts an ordered consumer over every stats subject.
func (b *JetStreamBus) Subscribe(ctx context.Context) (<-chan models.StatsSnapshot, error) {
	consumer, err := b.js.OrderedConsumer(ctx, b.config.StreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{b.config.SubjectPrefix + ".>"},
		DeliverPolicy:  jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("create ordered consumer: %w", err)
	}

	out := make(chan models.StatsSnapshot, b.config.SubscriberQueue)
	var (
		mu     sync.Mutex
		closed bool
	)

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		var snap models.StatsSnapshot
		if err := json.Unmarshal(msg.Data(), &snap); err != nil {
			log.Error().Err(err).Str("subject", msg.Subject()).Msg("failed to decode stats snapshot")
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case out <- snap:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return nil, fmt.Errorf("start consumer: %w", err)
	}

	go func() {
		select {
		case <-ctx.Done():
		case <-cc.Closed():
		}
		cc.Stop()
		mu.Lock()
		closed = true
		close(out)
		mu.Unlock()
		log.Debug().Str("stream", b.config.StreamName).Msg("stats consumer stopped")
	}()

	return out, nil
}

// Close closes the NATS connection, which ends every consumer.
func (b *JetStreamBus) Close() error {
	if b.nc != nil {
		b.nc.Close()
	}
	return nil
}

func isStreamConfigEqual(a, b jetstream.StreamConfig) bool {
	return a.Name == b.Name &&
		a.MaxAge == b.MaxAge &&
		a.Storage == b.Storage &&
		a.Duplicates == b.Duplicates &&
		len(a.Subjects) == len(b.Subjects) &&
		(len(a.Subjects) == 0 || a.Subjects[0] == b.Subjects[0])
}
