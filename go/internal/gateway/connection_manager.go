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
)

// ConnectionManager tracks WebSocket connections pooled by room code and
// fans broadcast messages out to them.
type ConnectionManager struct {
	roomConnections map[string]map[*Connection]bool
	mu              sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan BroadcastMessage
}

// Connection is one client's WebSocket, bound to a room for its lifetime.
type Connection struct {
	ID      string
	UserID  string
	Room    string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	// OnMessage receives raw client frames from the read pump.
	OnMessage func([]byte)
	// OnClose fires once when the connection is unregistered.
	OnClose func()

	ConnectedAt time.Time
	LastPing    time.Time

	closeOnce sync.Once
}

// ConnectionConfig holds WebSocket tuning knobs.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage is a payload addressed to a room, optionally narrowed
// to one user.
type BroadcastMessage struct {
	Room    string
	Payload any
	UserID  string
}

// DefaultConnectionConfig returns defaults sized for typing traffic:
// frames are small but arrive on every keystroke.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewConnectionManager creates a manager with the given configuration.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		roomConnections: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan BroadcastMessage, 1000),
	}
}

// Start processes broadcast messages until the context is cancelled.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// Upgrade turns the HTTP request into a WebSocket connection registered
// under the room code. The caller sets OnMessage and OnClose, then calls
// StartPumps; no frame is read before that.
func (cm *ConnectionManager) Upgrade(w http.ResponseWriter, r *http.Request, userID, room string) (*Connection, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		UserID:      userID,
		Room:        room,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}

	cm.registerConnection(connection)

	log.Info().
		Str("connection_id", connection.ID).
		Str("user_id", userID).
		Str("room", room).
		Msg("WebSocket connection established")

	return connection, nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.roomConnections[conn.Room] == nil {
		cm.roomConnections[conn.Room] = make(map[*Connection]bool)
	}
	cm.roomConnections[conn.Room][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("room", conn.Room).
		Int("total_connections", len(cm.roomConnections[conn.Room])).
		Msg("connection registered")
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	connections, exists := cm.roomConnections[conn.Room]
	removed := false
	if exists {
		if _, ok := connections[conn]; ok {
			delete(connections, conn)
			close(conn.Send)
			removed = true
			if len(connections) == 0 {
				delete(cm.roomConnections, conn.Room)
			}
		}
	}
	cm.mu.Unlock()

	if removed {
		conn.closeOnce.Do(func() {
			if conn.OnClose != nil {
				conn.OnClose()
			}
		})
		log.Info().
			Str("connection_id", conn.ID).
			Str("user_id", conn.UserID).
			Str("room", conn.Room).
			Msg("connection unregistered")
	}
}

// BroadcastToRoom queues a payload for every connection in the room.
func (cm *ConnectionManager) BroadcastToRoom(room string, payload any) {
	select {
	case cm.broadcastCh <- BroadcastMessage{Room: room, Payload: payload}:
	default:
		log.Warn().Str("room", room).Msg("broadcast channel full, dropping message")
	}
}

// BroadcastToUser queues a payload for one user's connections in the room.
func (cm *ConnectionManager) BroadcastToUser(room, userID string, payload any) {
	select {
	case cm.broadcastCh <- BroadcastMessage{Room: room, Payload: payload, UserID: userID}:
	default:
		log.Warn().
			Str("room", room).
			Str("user_id", userID).
			Msg("broadcast channel full, dropping user message")
	}
}

func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	cm.mu.RLock()
	connections, exists := cm.roomConnections[message.Room]
	if !exists {
		cm.mu.RUnlock()
		return
	}

	var targets []*Connection
	for conn := range connections {
		if message.UserID != "" && conn.UserID != message.UserID {
			continue
		}
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	data, err := json.Marshal(message.Payload)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal payload for broadcast")
		return
	}

	for _, conn := range targets {
		if !conn.Write(data) {
			log.Warn().
				Str("connection_id", conn.ID).
				Str("user_id", conn.UserID).
				Msg("connection send buffer full, closing connection")
			cm.unregisterConnection(conn)
			conn.Conn.Close()
		}
	}
}

// Stats summarizes active connections per room.
func (cm *ConnectionManager) Stats() map[string]any {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	total := 0
	perRoom := make(map[string]int)
	for room, connections := range cm.roomConnections {
		total += len(connections)
		perRoom[room] = len(connections)
	}

	return map[string]any{
		"total_connections": total,
		"active_rooms":      len(cm.roomConnections),
		"room_connections":  perRoom,
	}
}

// StartPumps launches the read and write goroutines. Call once, after the
// callbacks are in place.
func (c *Connection) StartPumps() {
	go c.writePump()
	go c.readPump()
}

// Write queues data on the connection without blocking. It reports false
// when the send buffer is full.
func (c *Connection) Write(data []byte) bool {
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// WriteJSON marshals v and queues it on the connection.
func (c *Connection) WriteJSON(v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to marshal payload")
		return false
	}
	return c.Write(data)
}

// Close tears the connection down.
func (c *Connection) Close() {
	c.Manager.unregisterConnection(c)
	c.Conn.Close()
}

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
			c.LastPing = time.Now()
		}
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.LastPing = time.Now()
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

		if c.OnMessage != nil {
			c.OnMessage(message)
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
