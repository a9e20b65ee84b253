package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/trivia/go/internal/commander"
	"github.com/mcdev12/trivia/go/internal/trivia/events"
	"github.com/mcdev12/trivia/go/internal/trivia/room"
)

// Role is what a socket connected as
type Role string

const (
	RoleDisplay Role = "display"
	RolePlayer  Role = "player"
)

// ParseRole maps the role query parameter. An empty value is a player.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case "", RolePlayer:
		return RolePlayer, nil
	case RoleDisplay:
		return RoleDisplay, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// ErrNoRoom is returned when a socket arrives before a room is attached
var ErrNoRoom = errors.New("no room attached")

// RoomSender is the part of the room the gateway forwards client actions to
type RoomSender interface {
	Send(msg room.Msg)
}

// ConnectionManager manages the trivia sockets and implements
// room.Broadcaster
type ConnectionManager struct {
	connections map[string]*Connection
	mu          sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	clock    clockwork.Clock

	room RoomSender
	// app is the shared bottom of every inbound chain
	app *commander.Chain

	broadcastCh chan BroadcastMessage
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID      string
	Role    Role
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	// inbound routes client frames, outbound filters events before they are written
	inbound  *commander.Chain
	outbound *commander.Chain

	ConnectedAt time.Time
	lastPing    time.Time
	pingMu      sync.Mutex
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage is an event queued for delivery. An empty ConnID
// targets every connection.
type BroadcastMessage struct {
	ConnID string
	Event  events.Event
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		CheckOrigin: func(r *http.Request) bool {
			// displays and phones are served from other origins
			return true
		},
	}
}

// NewConnectionManager creates a connection manager. The room must be
// attached with AttachRoom before connections are accepted.
func NewConnectionManager(config ConnectionConfig, clock clockwork.Clock) *ConnectionManager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = 256
	}

	cm := &ConnectionManager{
		connections: make(map[string]*Connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		clock:       clock,
		broadcastCh: make(chan BroadcastMessage, 1000),
	}
	cm.app = newAppChain(cm)
	return cm
}

// AttachRoom sets where client actions are forwarded
func (cm *ConnectionManager) AttachRoom(r RoomSender) {
	cm.room = r
}

// Start delivers queued events until ctx is done
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			cm.closeAll()
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, role Role) error {
	if cm.room == nil {
		return ErrNoRoom
	}

	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	now := cm.clock.Now()
	connection := &Connection{
		ID:          uuid.NewString(),
		Role:        role,
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ConnectedAt: now,
		lastPing:    now,
	}
	connection.inbound = cm.inboundChain(connection)
	connection.outbound = outboundChain(connection)

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("role", string(role)).
		Msg("WebSocket connection established")

	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.connections[conn.ID] = conn

	log.Debug().
		Str("connection_id", conn.ID).
		Int("total_connections", len(cm.connections)).
		Msg("connection registered")
}

// unregisterConnection removes a connection and tells the room it left.
// Safe to call more than once.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	_, exists := cm.connections[conn.ID]
	if exists {
		delete(cm.connections, conn.ID)
		close(conn.Send)
	}
	cm.mu.Unlock()

	if !exists {
		return
	}

	cm.room.Send(room.Leave{ConnID: conn.ID})
	log.Info().
		Str("connection_id", conn.ID).
		Str("role", string(conn.Role)).
		Msg("connection unregistered")
}

// Broadcast queues ev for every connection
func (cm *ConnectionManager) Broadcast(ev events.Event) {
	cm.enqueue(BroadcastMessage{Event: ev})
}

// SendTo queues ev for a single connection
func (cm *ConnectionManager) SendTo(connID string, ev events.Event) {
	cm.enqueue(BroadcastMessage{ConnID: connID, Event: ev})
}

func (cm *ConnectionManager) enqueue(msg BroadcastMessage) {
	select {
	case cm.broadcastCh <- msg:
	default:
		log.Warn().
			Str("event_type", string(msg.Event.Type)).
			Str("connection_id", msg.ConnID).
			Msg("broadcast channel full, dropping message")
	}
}

func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	cm.mu.RLock()
	var targets []*Connection
	if message.ConnID != "" {
		if conn, ok := cm.connections[message.ConnID]; ok {
			targets = append(targets, conn)
		}
	} else {
		targets = make([]*Connection, 0, len(cm.connections))
		for _, conn := range cm.connections {
			targets = append(targets, conn)
		}
	}
	cm.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	// Marshal the event once
	frame, err := events.Encode(message.Event)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(message.Event.Type)).Msg("failed to marshal event for broadcast")
		return
	}

	delivered := 0
	for _, conn := range targets {
		n, ok := conn.outbound.DispatchNotification(commander.Notification{
			Type:    string(message.Event.Type),
			Payload: frame,
		})
		if !ok {
			continue
		}
		out, ok := n.Payload.([]byte)
		if !ok {
			log.Error().Str("connection_id", conn.ID).Msg("outbound pipeline produced a non-frame payload")
			continue
		}
		cm.deliver(conn, out)
		delivered++
	}

	log.Debug().
		Str("event_type", string(message.Event.Type)).
		Int("connections", delivered).
		Msg("event broadcasted")
}

// deliver writes to the connection's send buffer, evicting slow clients
func (cm *ConnectionManager) deliver(conn *Connection, frame []byte) {
	cm.mu.RLock()
	_, live := cm.connections[conn.ID]
	if live {
		select {
		case conn.Send <- frame:
			cm.mu.RUnlock()
			return
		default:
		}
	}
	cm.mu.RUnlock()
	if !live {
		return
	}

	log.Warn().
		Str("connection_id", conn.ID).
		Str("role", string(conn.Role)).
		Msg("connection send buffer full, closing connection")
	cm.unregisterConnection(conn)
	conn.Conn.Close()
}

// reply bypasses the broadcast queue and the outbound pipeline. Used for
// transport-level errors on a single socket.
func (cm *ConnectionManager) reply(conn *Connection, ev events.Event) {
	frame, err := events.Encode(ev)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal reply")
		return
	}
	cm.deliver(conn, frame)
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.connections))
	for _, conn := range cm.connections {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range conns {
		conn.Conn.Close()
	}
}

// ConnectionStats is a point-in-time count of sockets by role
type ConnectionStats struct {
	TotalConnections int              `json:"total_connections"`
	Displays         int              `json:"displays"`
	Players          int              `json:"players"`
	Connections      []ConnectionInfo `json:"connections"`
}

// ConnectionInfo is one open socket, oldest first in ConnectionStats
type ConnectionInfo struct {
	ID          string    `json:"id"`
	Role        Role      `json:"role"`
	ConnectedAt time.Time `json:"connected_at"`
	LastPing    time.Time `json:"last_ping"`
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{
		TotalConnections: len(cm.connections),
		Connections:      make([]ConnectionInfo, 0, len(cm.connections)),
	}
	for _, conn := range cm.connections {
		if conn.Role == RoleDisplay {
			stats.Displays++
		} else {
			stats.Players++
		}
		stats.Connections = append(stats.Connections, ConnectionInfo{
			ID:          conn.ID,
			Role:        conn.Role,
			ConnectedAt: conn.ConnectedAt,
			LastPing:    conn.LastPing(),
		})
	}
	sort.Slice(stats.Connections, func(i, j int) bool {
		return stats.Connections[i].ConnectedAt.Before(stats.Connections[j].ConnectedAt)
	})
	return stats
}

// LastPing returns when the client last answered a ping
func (c *Connection) LastPing() time.Time {
	c.pingMu.Lock()
	defer c.pingMu.Unlock()
	return c.lastPing
}

func (c *Connection) touch() {
	c.pingMu.Lock()
	c.lastPing = c.Manager.clock.Now()
	c.pingMu.Unlock()
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				// Channel was closed
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.touch()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

// handleClientMessage decodes a frame and routes it through the inbound chain
func (c *Connection) handleClientMessage(message []byte) {
	env, err := events.Decode(message)
	if err != nil {
		log.Debug().
			Err(err).
			Str("connection_id", c.ID).
			Msg("malformed client message")
		c.Manager.reply(c, invalid("malformed message"))
		return
	}

	c.inbound.DispatchCommand(commander.Command{
		Type:    string(env.Type),
		Payload: Inbound{Conn: c, Envelope: env},
	})
}
