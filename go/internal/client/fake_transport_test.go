package client

import (
	"context"
	"sync"
	"testing"

	"github.com/mcdev12/typerace/go/internal/models"
	"github.com/mcdev12/typerace/go/internal/protocol"
)

type fakeTransport struct {
	mu     sync.Mutex
	sent   []protocol.Envelope
	events chan protocol.Envelope
	done   chan struct{}
	once   sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		events: make(chan protocol.Envelope, 64),
		done:   make(chan struct{}),
	}
}

func (f *fakeTransport) Send(_ context.Context, env protocol.Envelope) error {
	select {
	case <-f.done:
		return ErrDisconnected
	default:
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, env)
	return nil
}

func (f *fakeTransport) Events() <-chan protocol.Envelope { return f.events }
func (f *fakeTransport) Done() <-chan struct{}             { return f.done }

func (f *fakeTransport) Close() error {
	f.once.Do(func() { close(f.done) })
	return nil
}

func (f *fakeTransport) last(t *testing.T) protocol.Envelope {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatalf("nothing was sent")
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeTransport) sentOfType(typ protocol.EventType) []protocol.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []protocol.Envelope
	for _, env := range f.sent {
		if env.Type == typ {
			out = append(out, env)
		}
	}
	return out
}

func mustReply(t *testing.T, req protocol.Envelope, typ protocol.EventType, payload any) protocol.Envelope {
	t.Helper()
	env, err := protocol.Reply(req, typ, payload)
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	return env
}

func mustEvent(t *testing.T, typ protocol.EventType, payload any) protocol.Envelope {
	t.Helper()
	env, err := protocol.NewEnvelope(typ, payload)
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	return env
}

func testRoom(status models.RoomStatus, ready ...string) *models.Room {
	return &models.Room{
		ID:   "lobby",
		Text: "ab cd",
		Players: []models.Player{
			{ID: "p1", Name: "ana", IsHost: true},
			{ID: "p2", Name: "ben"},
		},
		Ready:  append([]string{}, ready...),
		Status: status,
	}
}
