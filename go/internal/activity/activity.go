// Package activity records room lifecycle events to an append-only log.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// Kind names a room lifecycle event.
type Kind string

const (
	RoomCreated        Kind = "room_created"
	PlayerJoined       Kind = "player_joined"
	PlayerReady        Kind = "player_ready"
	RaceStarted        Kind = "race_started"
	RaceCompleted      Kind = "race_completed"
	RoomReset          Kind = "room_reset"
	PlayerDisconnected Kind = "player_disconnected"
	RoomEvicted        Kind = "room_evicted"
)

// Event is one log entry.
type Event struct {
	Kind     Kind      `json:"kind"`
	RoomID   string    `json:"roomId"`
	PlayerID string    `json:"playerId,omitempty"`
	Status   string    `json:"status,omitempty"`
	WPM      int       `json:"wpm,omitempty"`
	Accuracy int       `json:"accuracy,omitempty"`
	At       time.Time `json:"at"`
}

// Log accepts room events. Recording never blocks gameplay on the sink.
type Log interface {
	Record(ctx context.Context, ev Event)
	Close() error
}

// NoopLog discards everything.
type NoopLog struct{}

func (NoopLog) Record(context.Context, Event) {}
func (NoopLog) Close() error                  { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig holds the activity topic settings.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// DefaultKafkaConfig returns the default topic settings.
func DefaultKafkaConfig() KafkaConfig {
	return KafkaConfig{
		Brokers: []string{"localhost:9092"},
		Topic:   "typerace.room-activity",
	}
}

// KafkaLog writes events keyed by room id so one room's events stay on one
// partition in order.
type KafkaLog struct {
	writer messageWriter
	topic  string
}

// NewKafkaLog creates an asynchronous writer for cfg.
func NewKafkaLog(cfg KafkaConfig) *KafkaLog {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Async:                  true,
		BatchSize:              1,
		AllowAutoTopicCreation: true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Error().Err(err).Int("messages", len(messages)).Msg("failed to write room activity")
			}
		},
	}
	return &KafkaLog{writer: w, topic: cfg.Topic}
}

// Record encodes ev and hands it to the writer.
func (l *KafkaLog) Record(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	msg, err := encode(ev)
	if err != nil {
		log.Error().Err(err).Str("room_id", ev.RoomID).Msg("failed to encode room activity")
		return
	}
	if err := l.writer.WriteMessages(ctx, msg); err != nil {
		log.Error().Err(err).Str("room_id", ev.RoomID).Str("kind", string(ev.Kind)).Msg("failed to queue room activity")
	}
}

// Close flushes pending writes.
func (l *KafkaLog) Close() error {
	if err := l.writer.Close(); err != nil {
		return fmt.Errorf("close kafka writer for %s: %w", l.topic, err)
	}
	return nil
}

func encode(ev Event) (kafka.Message, error) {
	value, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(ev.RoomID),
		Value: value,
		Time:  ev.At,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(ev.Kind)},
		},
	}, nil
}
