package timerclient

import (
	"github.com/Moonflower2022/pair-programming-challenges/go/internal/protocol"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Session applies inbound room frames to the countdown state. It holds no
// transport so the protocol obligations are testable without a socket.
type Session struct {
	clock     clockwork.Clock
	countdown *Countdown
}

// NewSession creates a session over the given clock.
func NewSession(clock clockwork.Clock) *Session {
	return &Session{clock: clock, countdown: NewCountdown(clock)}
}

// Countdown exposes the tracked countdown state.
func (s *Session) Countdown() *Countdown {
	return s.countdown
}

// HandleFrame applies one inbound frame and returns the frame to send back,
// if the protocol calls for one. A timerStarted notification must be
// answered with the client's own clock reading so the room can compute this
// client's offset. Undecodable frames are dropped.
func (s *Session) HandleFrame(data []byte) interface{} {
	msg, err := protocol.Decode(data)
	if err != nil {
		log.Debug().Err(err).Msg("dropping undecodable frame")
		return nil
	}

	switch m := msg.(type) {
	case protocol.TimerSync:
		s.countdown.Set(m.StartedAt)
		return nil
	case protocol.TimerStarted:
		return protocol.NewSyncMyTimer(s.clock.Now().UnixMilli())
	case protocol.TimerReset:
		s.countdown.Clear()
		return nil
	default:
		return nil
	}
}
