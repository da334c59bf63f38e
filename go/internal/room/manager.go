package room

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Moonflower2022/pair-programming-challenges/go/internal/timer"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// RelayPublisher fans broadcast frames out to other server nodes hosting the
// same room. Unicast replies never cross nodes.
type RelayPublisher interface {
	Publish(roomID string, data []byte, exceptID string)
}

// Manager owns the WebSocket connection pools, the per-room serialized
// message loops, and the join-order rosters.
type Manager struct {
	mu              sync.RWMutex
	roomConnections map[string]map[*Connection]bool
	rooms           map[string]*Room
	rosters         map[string][]string

	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan BroadcastMessage

	store timer.Store
	clock clockwork.Clock
	relay RelayPublisher

	baseCtx    context.Context
	baseCancel context.CancelFunc
}

// Connection represents one WebSocket connection to a participant.
type Connection struct {
	ID            string
	ParticipantID string
	RoomID        string
	Conn          *websocket.Conn
	Send          chan []byte
	Manager       *Manager

	ConnectedAt time.Time
	LastPing    time.Time
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

// BroadcastMessage is one delivery request on the broadcast channel. Data is
// already marshaled; ParticipantID restricts delivery to one participant,
// ExceptID excludes one.
type BroadcastMessage struct {
	RoomID        string
	Data          []byte
	ParticipantID string
	ExceptID      string
	// localOnly marks frames that arrived from another node and must not be
	// re-published to the relay.
	localOnly bool
}

// DefaultConnectionConfig returns default WebSocket configuration.
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

// NewManager creates a manager backed by the given store and clock. relay
// may be nil for single-node deployments.
func NewManager(config ConnectionConfig, store timer.Store, clock clockwork.Clock, relay RelayPublisher) *Manager {
	baseCtx, baseCancel := context.WithCancel(context.Background())
	return &Manager{
		roomConnections: make(map[string]map[*Connection]bool),
		rooms:           make(map[string]*Room),
		rosters:         make(map[string][]string),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan BroadcastMessage, 1000),
		store:       store,
		clock:       clock,
		relay:       relay,
		baseCtx:     baseCtx,
		baseCancel:  baseCancel,
	}
}

// Start processes broadcast messages until ctx is cancelled, then stops
// every room loop.
func (m *Manager) Start(ctx context.Context) {
	log.Info().Msg("room manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("room manager shutting down")
			m.baseCancel()
			return
		case message := <-m.broadcastCh:
			m.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP request to a WebSocket connection and
// joins it to the room.
func (m *Manager) UpgradeConnection(w http.ResponseWriter, r *http.Request, participantID, roomID string) error {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:            uuid.New().String(),
		ParticipantID: participantID,
		RoomID:        roomID,
		Conn:          conn,
		Send:          make(chan []byte, 256),
		Manager:       m,
		ConnectedAt:   time.Now(),
		LastPing:      time.Now(),
	}

	m.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("participant_id", participantID).
		Str("room_id", roomID).
		Msg("WebSocket connection established")

	return nil
}

// registerConnection adds a connection to its room's pool, records the
// participant in the join-order roster, and lazily starts the room loop.
func (m *Manager) registerConnection(conn *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.roomConnections[conn.RoomID] == nil {
		m.roomConnections[conn.RoomID] = make(map[*Connection]bool)
	}
	m.roomConnections[conn.RoomID][conn] = true

	roster := m.rosters[conn.RoomID]
	known := false
	for _, id := range roster {
		if id == conn.ParticipantID {
			known = true
			break
		}
	}
	if !known {
		m.rosters[conn.RoomID] = append(roster, conn.ParticipantID)
	}

	if _, exists := m.rooms[conn.RoomID]; !exists {
		m.rooms[conn.RoomID] = m.startRoom(conn.RoomID)
	}

	log.Debug().
		Str("connection_id", conn.ID).
		Str("room_id", conn.RoomID).
		Int("total_connections", len(m.roomConnections[conn.RoomID])).
		Msg("connection registered")
}

// startRoom builds a room with its timer coordinator and launches the
// serialized message loop. Caller holds m.mu.
func (m *Manager) startRoom(roomID string) *Room {
	coordinator := timer.NewCoordinator(roomID, m.store, &roomSender{manager: m, roomID: roomID}, m.clock)
	if err := coordinator.Restore(m.baseCtx); err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("failed to restore timer state")
	}

	ctx, cancel := context.WithCancel(m.baseCtx)
	room := newRoom(roomID, coordinator, cancel)
	go room.run(ctx)

	log.Info().Str("room_id", roomID).Msg("room started")
	return room
}

// unregisterConnection removes a connection, trims the roster, and tears the
// room down when its last connection leaves.
func (m *Manager) unregisterConnection(conn *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	connections, exists := m.roomConnections[conn.RoomID]
	if !exists {
		return
	}
	if _, exists := connections[conn]; !exists {
		return
	}
	delete(connections, conn)
	close(conn.Send)

	// Drop the participant from the roster once no connection of theirs
	// remains.
	remaining := false
	for other := range connections {
		if other.ParticipantID == conn.ParticipantID {
			remaining = true
			break
		}
	}
	if !remaining {
		roster := m.rosters[conn.RoomID]
		for i, id := range roster {
			if id == conn.ParticipantID {
				m.rosters[conn.RoomID] = append(roster[:i], roster[i+1:]...)
				break
			}
		}
	}

	if len(connections) == 0 {
		delete(m.roomConnections, conn.RoomID)
		delete(m.rosters, conn.RoomID)
		if room, ok := m.rooms[conn.RoomID]; ok {
			room.stop()
			delete(m.rooms, conn.RoomID)
		}
		log.Info().Str("room_id", conn.RoomID).Msg("room stopped, last connection left")
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("participant_id", conn.ParticipantID).
		Str("room_id", conn.RoomID).
		Msg("connection unregistered")
}

// Roster returns the room's participants in join order.
func (m *Manager) Roster(roomID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	roster := m.rosters[roomID]
	out := make([]string, len(roster))
	copy(out, roster)
	return out
}

// forward hands an inbound frame to the room's serialized loop.
func (m *Manager) forward(conn *Connection, data []byte) {
	m.mu.RLock()
	room, exists := m.rooms[conn.RoomID]
	m.mu.RUnlock()
	if !exists {
		return
	}
	room.deliver(conn.ParticipantID, data)
}

// BroadcastLocal delivers a frame that arrived from another node to this
// node's local connections only.
func (m *Manager) BroadcastLocal(roomID string, data []byte, exceptID string) {
	select {
	case m.broadcastCh <- BroadcastMessage{RoomID: roomID, Data: data, ExceptID: exceptID, localOnly: true}:
	default:
		log.Warn().Str("room_id", roomID).Msg("broadcast channel full, dropping relayed message")
	}
}

// enqueue pushes a delivery request, dropping it when the channel is full.
func (m *Manager) enqueue(message BroadcastMessage) {
	select {
	case m.broadcastCh <- message:
	default:
		log.Warn().Str("room_id", message.RoomID).Msg("broadcast channel full, dropping message")
	}
}

// handleBroadcast delivers one message to the matching local connections and
// republishes room-wide frames to the relay. Sends happen under the read lock:
// close(Send) only runs under the write lock in unregisterConnection, so a
// concurrent disconnect can never close a channel mid-send.
func (m *Manager) handleBroadcast(message BroadcastMessage) {
	m.mu.RLock()
	connections := m.roomConnections[message.RoomID]
	var slow []*Connection
	delivered := 0
	for conn := range connections {
		if message.ParticipantID != "" && conn.ParticipantID != message.ParticipantID {
			continue
		}
		if message.ExceptID != "" && conn.ParticipantID == message.ExceptID {
			continue
		}
		select {
		case conn.Send <- message.Data:
			delivered++
		default:
			slow = append(slow, conn)
		}
	}
	m.mu.RUnlock()

	for _, conn := range slow {
		log.Warn().
			Str("connection_id", conn.ID).
			Str("participant_id", conn.ParticipantID).
			Msg("connection send buffer full, closing connection")
		m.unregisterConnection(conn)
		conn.Conn.Close()
	}

	if m.relay != nil && !message.localOnly && message.ParticipantID == "" {
		m.relay.Publish(message.RoomID, message.Data, message.ExceptID)
	}

	log.Debug().
		Str("room_id", message.RoomID).
		Int("connections", delivered).
		Msg("frame delivered")
}

// Stats reports active room and connection counts plus rosters.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{
		ActiveRooms: len(m.roomConnections),
		Rooms:       make(map[string]RoomStats, len(m.roomConnections)),
	}
	for roomID, connections := range m.roomConnections {
		roster := make([]string, len(m.rosters[roomID]))
		copy(roster, m.rosters[roomID])
		stats.TotalConnections += len(connections)
		stats.Rooms[roomID] = RoomStats{
			Connections:  len(connections),
			Participants: roster,
		}
	}
	return stats
}

// Stats summarizes the manager's live state.
type Stats struct {
	TotalConnections int                  `json:"total_connections"`
	ActiveRooms      int                  `json:"active_rooms"`
	Rooms            map[string]RoomStats `json:"rooms"`
}

// RoomStats summarizes one room.
type RoomStats struct {
	Connections  int      `json:"connections"`
	Participants []string `json:"participants"`
}

// roomSender adapts the manager's broadcast channel to the timer
// coordinator's Sender interface for one room.
type roomSender struct {
	manager *Manager
	roomID  string
}

func (s *roomSender) SendTo(participantID string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("room_id", s.roomID).Msg("failed to marshal unicast frame")
		return
	}
	s.manager.enqueue(BroadcastMessage{RoomID: s.roomID, Data: data, ParticipantID: participantID})
}

func (s *roomSender) BroadcastExcept(participantID string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("room_id", s.roomID).Msg("failed to marshal broadcast frame")
		return
	}
	s.manager.enqueue(BroadcastMessage{RoomID: s.roomID, Data: data, ExceptID: participantID})
}

func (s *roomSender) Broadcast(payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("room_id", s.roomID).Msg("failed to marshal broadcast frame")
		return
	}
	s.manager.enqueue(BroadcastMessage{RoomID: s.roomID, Data: data})
}

// writePump handles sending messages to the WebSocket connection.
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
			c.LastPing = time.Now()
		}
	}
}

// readPump reads frames from the WebSocket connection and forwards them to
// the room's serialized loop.
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

		c.Manager.forward(c, message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
