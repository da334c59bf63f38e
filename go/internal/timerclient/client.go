package timerclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/Moonflower2022/pair-programming-challenges/go/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Client is a WebSocket participant in one room's timer protocol. It tracks
// the client-relative start instant and honors the reply obligations of the
// wire protocol.
type Client struct {
	conn    *websocket.Conn
	session *Session
	clock   clockwork.Clock

	roomID        string
	participantID string

	writeMu sync.Mutex
}

// Dial connects to a room on the given server base URL (e.g.
// "ws://localhost:8080").
func Dial(ctx context.Context, baseURL, roomID, participantID string, clock clockwork.Clock) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	u.Path = "/ws/room"
	q := u.Query()
	q.Set("room", roomID)
	q.Set("participant", participantID)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial room %s: %w", roomID, err)
	}

	return &Client{
		conn:          conn,
		session:       NewSession(clock),
		clock:         clock,
		roomID:        roomID,
		participantID: participantID,
	}, nil
}

// Countdown exposes the tracked countdown state.
func (c *Client) Countdown() *Countdown {
	return c.session.Countdown()
}

// RequestTimer asks the room to start (or report) its timer.
func (c *Client) RequestTimer() error {
	return c.send(protocol.NewGetOrCreateTimer(c.clock.Now().UnixMilli()))
}

// SyncTimer asks the room to re-send the start instant in this client's
// clock.
func (c *Client) SyncTimer() error {
	return c.send(protocol.NewSyncMyTimer(c.clock.Now().UnixMilli()))
}

// ResetTimer clears the room's timer for every participant.
func (c *Client) ResetTimer() error {
	return c.send(protocol.NewResetTimer())
}

// Run reads frames until the connection drops or ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read from room %s: %w", c.roomID, err)
		}
		if reply := c.session.HandleFrame(data); reply != nil {
			if err := c.send(reply); err != nil {
				log.Error().
					Err(err).
					Str("room_id", c.roomID).
					Msg("failed to send protocol reply")
			}
		}
	}
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) send(payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
