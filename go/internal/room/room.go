package room

import (
	"context"

	"github.com/Moonflower2022/pair-programming-challenges/go/internal/timer"
	"github.com/rs/zerolog/log"
)

// frame is one inbound message attributed to its sender.
type frame struct {
	participantID string
	data          []byte
}

// Room is the serialized message loop for one session scope. All timer state
// mutation for the room happens on this loop, one frame to completion
// (including the awaited store write) before the next, so two creation
// requests can never race.
type Room struct {
	id          string
	coordinator *timer.Coordinator
	inbox       chan frame
	cancel      context.CancelFunc
}

func newRoom(id string, coordinator *timer.Coordinator, cancel context.CancelFunc) *Room {
	return &Room{
		id:          id,
		coordinator: coordinator,
		inbox:       make(chan frame, 64),
		cancel:      cancel,
	}
}

// deliver queues a frame for the room loop. Frames are dropped when the
// inbox is full rather than blocking the connection's read pump.
func (r *Room) deliver(participantID string, data []byte) {
	select {
	case r.inbox <- frame{participantID: participantID, data: data}:
	default:
		log.Warn().
			Str("room_id", r.id).
			Str("participant_id", participantID).
			Msg("room inbox full, dropping frame")
	}
}

// run processes frames in arrival order until the room is stopped.
func (r *Room) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-r.inbox:
			r.coordinator.HandleMessage(ctx, f.participantID, f.data)
		}
	}
}

// stop ends the room loop.
func (r *Room) stop() {
	r.cancel()
}
