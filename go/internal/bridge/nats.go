package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// LocalBroadcaster is the surface the bridge delivers relayed frames
// through; the room manager implements it.
type LocalBroadcaster interface {
	BroadcastLocal(roomID string, data []byte, exceptID string)
}

// Config holds NATS connection settings for the room event bridge.
type Config struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultConfig returns default bridge configuration.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		SubjectPrefix: "party.rooms",
		MaxReconnects: -1, // infinite
		ReconnectWait: 2 * time.Second,
	}
}

// envelope wraps a broadcast frame with its origin node so a node never
// re-delivers its own publications.
type envelope struct {
	Node     string          `json:"node"`
	ExceptID string          `json:"except_id,omitempty"`
	Payload  json.RawMessage `json:"payload"`
}

// Bridge fans room broadcasts out across server nodes. Each node publishes
// its rooms' outbound broadcasts to `<prefix>.<roomID>` and re-delivers
// frames published by other nodes to its local connections.
type Bridge struct {
	nc     *nats.Conn
	nodeID string
	config Config
	sub    *nats.Subscription
}

// New connects to NATS. nodeID must be unique per server process.
func New(nodeID string, config Config) (*Bridge, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
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

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return &Bridge{nc: nc, nodeID: nodeID, config: config}, nil
}

// Start subscribes to every room subject and re-delivers frames from other
// nodes until ctx is cancelled.
func (b *Bridge) Start(ctx context.Context, local LocalBroadcaster) error {
	subject := b.config.SubjectPrefix + ".>"
	sub, err := b.nc.Subscribe(subject, func(msg *nats.Msg) {
		b.handleMessage(msg, local)
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", subject, err)
	}
	b.sub = sub

	log.Info().
		Str("subject", subject).
		Str("node_id", b.nodeID).
		Msg("room event bridge started")

	<-ctx.Done()
	return b.Close()
}

func (b *Bridge) handleMessage(msg *nats.Msg, local LocalBroadcaster) {
	var env envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		log.Error().Err(err).Str("subject", msg.Subject).Msg("failed to decode bridge envelope")
		return
	}
	if env.Node == b.nodeID {
		return
	}

	roomID := strings.TrimPrefix(msg.Subject, b.config.SubjectPrefix+".")
	local.BroadcastLocal(roomID, env.Payload, env.ExceptID)

	log.Debug().
		Str("room_id", roomID).
		Str("origin_node", env.Node).
		Msg("relayed frame from peer node")
}

// Publish sends a room broadcast to peer nodes.
func (b *Bridge) Publish(roomID string, data []byte, exceptID string) {
	env := envelope{Node: b.nodeID, ExceptID: exceptID, Payload: data}
	payload, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("failed to marshal bridge envelope")
		return
	}
	subject := b.config.SubjectPrefix + "." + roomID
	if err := b.nc.Publish(subject, payload); err != nil {
		log.Error().Err(err).Str("subject", subject).Msg("failed to publish to bridge")
	}
}

// Close drains the subscription and closes the connection.
func (b *Bridge) Close() error {
	if b.sub != nil {
		if err := b.sub.Unsubscribe(); err != nil {
			log.Error().Err(err).Msg("failed to unsubscribe bridge")
		}
	}
	b.nc.Close()
	return nil
}
