package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType tags every frame on the room channel.
type MessageType string

const (
	// Client -> room.
	TypeGetOrCreateTimer MessageType = "getOrCreateTimer"
	TypeSyncMyTimer      MessageType = "syncMyTimer"
	TypeResetTimer       MessageType = "resetTimer"

	// Room -> client.
	TypeTimerSync    MessageType = "timerSync"
	TypeTimerStarted MessageType = "timerStarted"
	TypeTimerReset   MessageType = "timerReset"
)

// ErrUnknownType is returned for frames whose type tag is not part of the
// timer protocol. The room channel is shared with document replication
// traffic, so callers are expected to drop these silently.
var ErrUnknownType = errors.New("protocol: unknown message type")

// ErrMissingField is returned when a recognized message lacks a required
// payload field. Decoding fails closed: a half-formed frame never reaches a
// handler.
var ErrMissingField = errors.New("protocol: missing required field")

// GetOrCreateTimer asks the room to start its timer if none is running and
// to reply with the start instant translated into the sender's clock.
type GetOrCreateTimer struct {
	Type       MessageType `json:"type"`
	ClientTime int64       `json:"clientTime"`
}

// SyncMyTimer asks the room to re-send the start instant translated into the
// sender's clock. Ignored by the room when no timer is running.
type SyncMyTimer struct {
	Type       MessageType `json:"type"`
	ClientTime int64       `json:"clientTime"`
}

// ResetTimer clears the room's timer for every participant.
type ResetTimer struct {
	Type MessageType `json:"type"`
}

// TimerSync carries the start instant already expressed in the receiving
// client's own clock.
type TimerSync struct {
	Type      MessageType `json:"type"`
	StartedAt int64       `json:"startedAt"`
}

// TimerStarted notifies a participant that another client created the timer.
// Both instants are server-relative; the receiver is expected to answer with
// a SyncMyTimer carrying its own clock reading so the room can compute its
// offset.
type TimerStarted struct {
	Type            MessageType `json:"type"`
	ServerStartedAt int64       `json:"serverStartedAt"`
	ServerTime      int64       `json:"serverTime"`
}

// TimerReset notifies every participant that the timer was cleared.
type TimerReset struct {
	Type MessageType `json:"type"`
}

// NewTimerSync builds a TimerSync frame.
func NewTimerSync(startedAt int64) TimerSync {
	return TimerSync{Type: TypeTimerSync, StartedAt: startedAt}
}

// NewTimerStarted builds a TimerStarted frame.
func NewTimerStarted(serverStartedAt, serverTime int64) TimerStarted {
	return TimerStarted{Type: TypeTimerStarted, ServerStartedAt: serverStartedAt, ServerTime: serverTime}
}

// NewTimerReset builds a TimerReset frame.
func NewTimerReset() TimerReset {
	return TimerReset{Type: TypeTimerReset}
}

// NewGetOrCreateTimer builds a GetOrCreateTimer frame.
func NewGetOrCreateTimer(clientTime int64) GetOrCreateTimer {
	return GetOrCreateTimer{Type: TypeGetOrCreateTimer, ClientTime: clientTime}
}

// NewSyncMyTimer builds a SyncMyTimer frame.
func NewSyncMyTimer(clientTime int64) SyncMyTimer {
	return SyncMyTimer{Type: TypeSyncMyTimer, ClientTime: clientTime}
}

// NewResetTimer builds a ResetTimer frame.
func NewResetTimer() ResetTimer {
	return ResetTimer{Type: TypeResetTimer}
}

// probe is the first-pass decode target. Pointer fields distinguish absent
// from zero so recognized messages with missing payloads can be rejected.
type probe struct {
	Type            MessageType `json:"type"`
	ClientTime      *int64      `json:"clientTime"`
	StartedAt       *int64      `json:"startedAt"`
	ServerStartedAt *int64      `json:"serverStartedAt"`
	ServerTime      *int64      `json:"serverTime"`
}

// Decode parses a frame into the corresponding typed message. Non-JSON data,
// frames without a type tag, and unrecognized tags all return an error rather
// than a partially-populated message.
func Decode(data []byte) (interface{}, error) {
	var p probe
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("protocol: decode frame: %w", err)
	}

	switch p.Type {
	case TypeGetOrCreateTimer:
		if p.ClientTime == nil {
			return nil, fmt.Errorf("%w: getOrCreateTimer.clientTime", ErrMissingField)
		}
		return NewGetOrCreateTimer(*p.ClientTime), nil

	case TypeSyncMyTimer:
		if p.ClientTime == nil {
			return nil, fmt.Errorf("%w: syncMyTimer.clientTime", ErrMissingField)
		}
		return NewSyncMyTimer(*p.ClientTime), nil

	case TypeResetTimer:
		return NewResetTimer(), nil

	case TypeTimerSync:
		if p.StartedAt == nil {
			return nil, fmt.Errorf("%w: timerSync.startedAt", ErrMissingField)
		}
		return NewTimerSync(*p.StartedAt), nil

	case TypeTimerStarted:
		if p.ServerStartedAt == nil || p.ServerTime == nil {
			return nil, fmt.Errorf("%w: timerStarted payload", ErrMissingField)
		}
		return NewTimerStarted(*p.ServerStartedAt, *p.ServerTime), nil

	case TypeTimerReset:
		return NewTimerReset(), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, p.Type)
	}
}
