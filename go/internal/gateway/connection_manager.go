package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/typerace/go/internal/protocol"
)

// MessageHandler receives everything a connection reads.
type MessageHandler interface {
	HandleMessage(c *Connection, raw []byte)
	HandleDisconnect(c *Connection)
}

// ConnectionManager manages WebSocket connections grouped by room.
type ConnectionManager struct {
	// Connections with no room yet are only in all.
	all   map[*Connection]bool
	rooms map[string]map[*Connection]bool
	mu    sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	handler  MessageHandler

	broadcastCh chan BroadcastMessage
}

// Connection represents a WebSocket connection to a player.
type Connection struct {
	ID       string
	PlayerID string
	Conn     *websocket.Conn
	Send     chan []byte
	Manager  *ConnectionManager

	// roomID is guarded by Manager.mu.
	roomID string

	ConnectedAt time.Time
}

// ConnectionConfig holds configuration for WebSocket connections.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	BroadcastBuffer int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage is an envelope addressed to every connection in a room.
type BroadcastMessage struct {
	RoomID   string
	Envelope protocol.Envelope
}

// DefaultConnectionConfig returns default WebSocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  protocol.MaxEnvelopeSize,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBuffer:      256,
		BroadcastBuffer: 1000,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager.
func NewConnectionManager(config ConnectionConfig, handler MessageHandler) *ConnectionManager {
	return &ConnectionManager{
		all:   make(map[*Connection]bool),
		rooms: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		handler:     handler,
		broadcastCh: make(chan BroadcastMessage, config.BroadcastBuffer),
	}
}

// Start processes broadcasts until ctx is cancelled. A single goroutine drains
// the queue, so broadcasts reach each connection in the order they were queued.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.closeAll()
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, playerID string) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		PlayerID:    playerID,
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBuffer),
		Manager:     cm,
		ConnectedAt: time.Now(),
	}
	cm.register(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("player_id", playerID).
		Msg("WebSocket connection established")
	return nil
}

func (cm *ConnectionManager) register(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.all[conn] = true
}

// unregister removes conn and closes its send channel. It reports whether
// this call did the removal.
func (cm *ConnectionManager) unregister(conn *Connection) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if !cm.all[conn] {
		return false
	}
	delete(cm.all, conn)
	cm.removeFromRoomLocked(conn)
	close(conn.Send)

	log.Info().
		Str("connection_id", conn.ID).
		Str("player_id", conn.PlayerID).
		Msg("connection unregistered")
	return true
}

func (cm *ConnectionManager) removeFromRoomLocked(conn *Connection) {
	if conn.roomID == "" {
		return
	}
	if pool, ok := cm.rooms[conn.roomID]; ok {
		delete(pool, conn)
		if len(pool) == 0 {
			delete(cm.rooms, conn.roomID)
		}
	}
}

// BindRoom moves conn into the pool of roomID and records the player id the
// connection acts for.
func (cm *ConnectionManager) BindRoom(conn *Connection, roomID, playerID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if !cm.all[conn] {
		return
	}
	cm.removeFromRoomLocked(conn)
	conn.roomID = roomID
	conn.PlayerID = playerID
	if cm.rooms[roomID] == nil {
		cm.rooms[roomID] = make(map[*Connection]bool)
	}
	cm.rooms[roomID][conn] = true
}

// RoomOf returns the room conn is bound to, or "".
func (cm *ConnectionManager) RoomOf(conn *Connection) string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return conn.roomID
}

// HasOtherConnection reports whether playerID has a live connection in roomID
// besides except.
func (cm *ConnectionManager) HasOtherConnection(roomID, playerID string, except *Connection) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	for conn := range cm.rooms[roomID] {
		if conn != except && conn.PlayerID == playerID {
			return true
		}
	}
	return false
}

// SendTo queues env for one connection.
func (cm *ConnectionManager) SendTo(conn *Connection, env protocol.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(env.Type)).Msg("failed to marshal event")
		return
	}

	cm.mu.RLock()
	if !cm.all[conn] {
		cm.mu.RUnlock()
		return
	}
	select {
	case conn.Send <- data:
		cm.mu.RUnlock()
	default:
		cm.mu.RUnlock()
		log.Warn().Str("connection_id", conn.ID).Msg("connection send buffer full, closing connection")
		cm.drop(conn)
	}
}

// BroadcastToRoom queues env for every connection in roomID.
func (cm *ConnectionManager) BroadcastToRoom(roomID string, env protocol.Envelope) {
	select {
	case cm.broadcastCh <- BroadcastMessage{RoomID: roomID, Envelope: env}:
	default:
		log.Warn().Str("room_id", roomID).Str("event_type", string(env.Type)).Msg("broadcast channel full, dropping message")
	}
}

func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	data, err := json.Marshal(message.Envelope)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	var slow []*Connection
	cm.mu.RLock()
	pool := cm.rooms[message.RoomID]
	for conn := range pool {
		select {
		case conn.Send <- data:
		default:
			slow = append(slow, conn)
		}
	}
	delivered := len(pool) - len(slow)
	cm.mu.RUnlock()

	for _, conn := range slow {
		log.Warn().Str("connection_id", conn.ID).Msg("connection send buffer full, closing connection")
		cm.drop(conn)
	}

	log.Debug().
		Str("event_type", string(message.Envelope.Type)).
		Str("room_id", message.RoomID).
		Int("connections", delivered).
		Msg("event broadcasted")
}

// drop closes the socket; the read pump then runs the disconnect path.
func (cm *ConnectionManager) drop(conn *Connection) {
	conn.Conn.Close()
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.all))
	for conn := range cm.all {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()
	for _, conn := range conns {
		cm.drop(conn)
	}
}

// ConnectionStats are the counts served on /ws/stats.
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveRooms      int            `json:"active_rooms"`
	RoomConnections  map[string]int `json:"room_connections"`
}

// GetConnectionStats returns statistics about active connections.
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{
		TotalConnections: len(cm.all),
		ActiveRooms:      len(cm.rooms),
		RoomConnections:  make(map[string]int, len(cm.rooms)),
	}
	for roomID, pool := range cm.rooms {
		stats.RoomConnections[roomID] = len(pool)
	}
	return stats
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to send ping")
				return
			}
		}
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.Conn.Close()
		if c.Manager.handler != nil {
			c.Manager.handler.HandleDisconnect(c)
		}
		c.Manager.unregister(c)
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("unexpected WebSocket close error")
			}
			return
		}
		if c.Manager.handler != nil {
			c.Manager.handler.HandleMessage(c, message)
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
