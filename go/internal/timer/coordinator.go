package timer

import (
	"context"
	"fmt"

	"github.com/Moonflower2022/pair-programming-challenges/go/internal/protocol"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Store is the durable key-value surface the coordinator persists through.
// One key per room holding the start instant; absence means no active timer.
type Store interface {
	Load(ctx context.Context, roomID string) (startedAt int64, ok bool, err error)
	Save(ctx context.Context, roomID string, startedAt int64) error
	Delete(ctx context.Context, roomID string) error
}

// Sender delivers frames to a room's connected participants. Implementations
// marshal the payload to JSON before writing it to each connection.
type Sender interface {
	// SendTo delivers a frame to a single participant.
	SendTo(participantID string, payload interface{})
	// BroadcastExcept delivers a frame to every participant but one.
	BroadcastExcept(participantID string, payload interface{})
	// Broadcast delivers a frame to every participant, including the
	// requester.
	Broadcast(payload interface{})
}

// Coordinator owns one room's authoritative timer start instant. It is not
// safe for concurrent use: the owning room processes one message to
// completion (including the awaited store write) before the next, so two
// creation requests can never race within a room.
type Coordinator struct {
	roomID string
	store  Store
	sender Sender
	clock  clockwork.Clock

	// startedAt is the authoritative start instant in server-relative Unix
	// milliseconds, or nil when no timer is running.
	startedAt *int64
}

// NewCoordinator creates a coordinator for one room. Call Restore before
// handling messages so a persisted instant survives process restarts.
func NewCoordinator(roomID string, store Store, sender Sender, clock clockwork.Clock) *Coordinator {
	return &Coordinator{
		roomID: roomID,
		store:  store,
		sender: sender,
		clock:  clock,
	}
}

// Restore loads the persisted start instant, if any.
func (c *Coordinator) Restore(ctx context.Context) error {
	startedAt, ok, err := c.store.Load(ctx, c.roomID)
	if err != nil {
		return fmt.Errorf("restore timer for room %s: %w", c.roomID, err)
	}
	if ok {
		c.startedAt = &startedAt
		log.Info().
			Str("room_id", c.roomID).
			Int64("started_at", startedAt).
			Msg("restored timer from store")
	}
	return nil
}

// StartedAt returns the authoritative start instant and whether one exists.
func (c *Coordinator) StartedAt() (int64, bool) {
	if c.startedAt == nil {
		return 0, false
	}
	return *c.startedAt, true
}

// HandleMessage decodes and dispatches one inbound frame. Malformed frames
// and unrelated replication traffic sharing the channel are dropped without
// surfacing an error or mutating any state.
func (c *Coordinator) HandleMessage(ctx context.Context, senderID string, data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		log.Debug().
			Str("room_id", c.roomID).
			Str("participant_id", senderID).
			Err(err).
			Msg("dropping undecodable frame")
		return
	}

	switch m := msg.(type) {
	case protocol.GetOrCreateTimer:
		if err := c.getOrCreate(ctx, senderID, m.ClientTime); err != nil {
			log.Error().
				Err(err).
				Str("room_id", c.roomID).
				Str("participant_id", senderID).
				Msg("getOrCreateTimer failed")
		}
	case protocol.SyncMyTimer:
		c.sync(senderID, m.ClientTime)
	case protocol.ResetTimer:
		if err := c.reset(ctx); err != nil {
			log.Error().
				Err(err).
				Str("room_id", c.roomID).
				Msg("resetTimer failed")
		}
	default:
		// Recognized wire type but not a client request; ignore.
		log.Debug().
			Str("room_id", c.roomID).
			Str("participant_id", senderID).
			Msg("ignoring non-request frame")
	}
}

// getOrCreate establishes the authoritative start instant if none exists,
// persisting it before any reply, then answers the sender with the instant
// translated into its own clock. On fresh creation every other participant
// is told the server-relative instant so it can request its own translation.
func (c *Coordinator) getOrCreate(ctx context.Context, senderID string, clientTime int64) error {
	serverTime := c.clock.Now().UnixMilli()
	isNew := c.startedAt == nil

	if isNew {
		if err := c.store.Save(ctx, c.roomID, serverTime); err != nil {
			return fmt.Errorf("persist timer start: %w", err)
		}
		startedAt := serverTime
		c.startedAt = &startedAt
		log.Info().
			Str("room_id", c.roomID).
			Int64("started_at", startedAt).
			Str("participant_id", senderID).
			Msg("timer created")
	}

	offset := ResolveOffset(clientTime, serverTime)
	c.sender.SendTo(senderID, protocol.NewTimerSync(*c.startedAt+offset))

	if isNew {
		c.sender.BroadcastExcept(senderID, protocol.NewTimerStarted(*c.startedAt, c.clock.Now().UnixMilli()))
	}
	return nil
}

// sync answers a participant with the start instant in its own clock. A
// request arriving while no timer runs is a valid steady state, not an
// error; it is silently ignored.
func (c *Coordinator) sync(senderID string, clientTime int64) {
	if c.startedAt == nil {
		return
	}
	offset := ResolveOffset(clientTime, c.clock.Now().UnixMilli())
	c.sender.SendTo(senderID, protocol.NewTimerSync(*c.startedAt+offset))
}

// reset clears the instant, deletes the persisted value, and tells every
// participant, including the requester.
func (c *Coordinator) reset(ctx context.Context) error {
	if err := c.store.Delete(ctx, c.roomID); err != nil {
		return fmt.Errorf("delete persisted timer: %w", err)
	}
	c.startedAt = nil
	c.sender.Broadcast(protocol.NewTimerReset())
	log.Info().Str("room_id", c.roomID).Msg("timer reset")
	return nil
}
