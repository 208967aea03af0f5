// Package client is the player side of a race room: the transport to the
// gateway, the room session, the stats channel and the race coordinator that
// glues them to the keystroke controller.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/typerace/go/internal/protocol"
)

var (
	// ErrDisconnected is returned once the transport to the gateway is gone.
	ErrDisconnected = errors.New("disconnected from race server")
	// ErrRequestTimeout is surfaced when a request is never acknowledged.
	ErrRequestTimeout = errors.New("race server did not answer in time")
)

// Transport carries envelopes between the client and the gateway.
type Transport interface {
	// Send queues env without waiting for the server.
	Send(ctx context.Context, env protocol.Envelope) error
	// Events delivers inbound envelopes in arrival order.
	Events() <-chan protocol.Envelope
	// Done is closed when the transport is disconnected.
	Done() <-chan struct{}
	Close() error
}

// TransportConfig holds WebSocket client settings.
type TransportConfig struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration
	MaxMessageSize   int64
	SendBuffer       int
	EventBuffer      int
}

// DefaultTransportConfig returns default WebSocket client settings.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		ReadTimeout:      60 * time.Second,
		PingInterval:     30 * time.Second,
		MaxMessageSize:   64 * 1024,
		SendBuffer:       64,
		EventBuffer:      256,
	}
}

// WSTransport is a Transport over a gorilla WebSocket connection.
type WSTransport struct {
	conn   *websocket.Conn
	config TransportConfig

	send   chan []byte
	events chan protocol.Envelope
	done   chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	err       error
}

// RoomURL turns a server base URL (http or ws scheme) into the room socket URL.
func RoomURL(serverURL, playerID string) (string, error) {
	u, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/room"
	u.RawQuery = url.Values{"player_id": {playerID}}.Encode()
	return u.String(), nil
}

// Dial connects to the gateway room socket for playerID.
func Dial(ctx context.Context, serverURL, playerID string, config TransportConfig) (*WSTransport, error) {
	target, err := RoomURL(serverURL, playerID)
	if err != nil {
		return nil, err
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: config.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}

	t := &WSTransport{
		conn:   conn,
		config: config,
		send:   make(chan []byte, config.SendBuffer),
		events: make(chan protocol.Envelope, config.EventBuffer),
		done:   make(chan struct{}),
	}
	go t.writePump()
	go t.readPump()

	log.Info().Str("url", target).Msg("connected to race server")
	return t, nil
}

// Send implements Transport.
func (t *WSTransport) Send(ctx context.Context, env protocol.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", env.Type, err)
	}
	select {
	case <-t.done:
		return t.Err()
	case <-ctx.Done():
		return ctx.Err()
	case t.send <- data:
		return nil
	}
}

// Events implements Transport.
func (t *WSTransport) Events() <-chan protocol.Envelope { return t.events }

// Done implements Transport.
func (t *WSTransport) Done() <-chan struct{} { return t.done }

// Err returns why the transport stopped, or nil while it is connected.
func (t *WSTransport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Close implements Transport.
func (t *WSTransport) Close() error {
	t.shutdown(ErrDisconnected)
	return nil
}

func (t *WSTransport) shutdown(cause error) {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.err = cause
		t.mu.Unlock()
		close(t.done)
		t.conn.Close()
	})
}

func (t *WSTransport) writePump() {
	ticker := time.NewTicker(t.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case message := <-t.send:
			t.conn.SetWriteDeadline(time.Now().Add(t.config.WriteTimeout))
			if err := t.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Msg("failed to write to race server")
				t.shutdown(fmt.Errorf("%w: %v", ErrDisconnected, err))
				return
			}
		case <-ticker.C:
			t.conn.SetWriteDeadline(time.Now().Add(t.config.WriteTimeout))
			if err := t.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				t.shutdown(fmt.Errorf("%w: %v", ErrDisconnected, err))
				return
			}
		}
	}
}

// readPump is the only writer of events and closes it on exit.
func (t *WSTransport) readPump() {
	defer close(t.events)

	t.conn.SetReadLimit(t.config.MaxMessageSize)
	t.conn.SetReadDeadline(time.Now().Add(t.config.ReadTimeout))
	t.conn.SetPingHandler(func(data string) error {
		t.conn.SetReadDeadline(time.Now().Add(t.config.ReadTimeout))
		return t.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(t.config.WriteTimeout))
	})
	t.conn.SetPongHandler(func(string) error {
		t.conn.SetReadDeadline(time.Now().Add(t.config.ReadTimeout))
		return nil
	})

	for {
		_, raw, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("race server connection closed")
			}
			t.shutdown(fmt.Errorf("%w: %v", ErrDisconnected, err))
			return
		}
		t.conn.SetReadDeadline(time.Now().Add(t.config.ReadTimeout))

		env, err := protocol.Decode(raw)
		if err != nil {
			log.Warn().Err(err).Msg("dropped malformed message from race server")
			continue
		}
		select {
		case t.events <- env:
		case <-t.done:
			return
		}
	}
}
