package activity

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type captureWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaLogKeysByRoom(t *testing.T) {
	w := &captureWriter{}
	l := &KafkaLog{writer: w, topic: "test"}

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	l.Record(context.Background(), Event{Kind: RaceCompleted, RoomID: "lobby", PlayerID: "p1", WPM: 70, At: at})
	l.Record(context.Background(), Event{Kind: RoomReset, RoomID: "lobby"})

	if len(w.msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "lobby" || !msg.Time.Equal(at) {
		t.Fatalf("unexpected message key=%q time=%v", msg.Key, msg.Time)
	}
	var ev Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Kind != RaceCompleted || ev.WPM != 70 || ev.PlayerID != "p1" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if w.msgs[1].Time.IsZero() {
		t.Fatalf("missing timestamp on second event")
	}

	if err := l.Close(); err != nil || !w.closed {
		t.Fatalf("close: %v closed=%v", err, w.closed)
	}
}

func TestKafkaLogSwallowsWriteErrors(t *testing.T) {
	l := &KafkaLog{writer: &captureWriter{err: errors.New("broker down")}, topic: "test"}
	l.Record(context.Background(), Event{Kind: RoomCreated, RoomID: "lobby"})
}

func TestNoopLog(t *testing.T) {
	var l Log = NoopLog{}
	l.Record(context.Background(), Event{Kind: RoomCreated})
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
