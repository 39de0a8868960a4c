package protocol

import (
	"encoding/json"
	"fmt"
)

type EventType string

const (
	EventReady          EventType = "READY"
	EventMessageCreated EventType = "MESSAGE_CREATE"
	EventError          EventType = "ERROR"
)

// Dispatch is the inner envelope of an OpDispatch frame.
type Dispatch struct {
	T EventType       `json:"t"`
	D json.RawMessage `json:"d"`
}

type ReadyEvent struct {
	ConnectionID        string           `json:"connection_id"`
	UserID              string           `json:"user_id"`
	Username            string           `json:"username"`
	IsDeveloper         bool             `json:"is_developer"`
	HeartbeatIntervalMs int              `json:"heartbeat_interval_ms"`
	Servers             []ServerResponse `json:"servers"`
}

type MessageCreatedEvent struct {
	ID             string `json:"id"`
	ChannelID      string `json:"channel_id"`
	AuthorUserID   string `json:"author_user_id"`
	AuthorUsername string `json:"author_username"`
	Content        string `json:"content"`
	Timestamp      string `json:"timestamp"`
}

type ErrorEvent struct {
	Code string `json:"code"`
}

// Event is the decoded form of a Dispatch. Exactly one of the pointer
// fields is set, selected by Type.
type Event struct {
	Type           EventType
	Ready          *ReadyEvent
	MessageCreated *MessageCreatedEvent
	Err            *ErrorEvent
}

// ErrUnknownEvent reports a dispatch whose event type is not part of the
// protocol. Callers log and drop these frames.
type ErrUnknownEvent struct {
	T EventType
}

func (e *ErrUnknownEvent) Error() string {
	return fmt.Sprintf("unknown dispatch event type %q", string(e.T))
}

// DecodeDispatch parses the inner dispatch union of an OpDispatch frame.
func DecodeDispatch(raw json.RawMessage) (*Event, error) {
	var d Dispatch
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode dispatch envelope: %w", err)
	}

	ev := &Event{Type: d.T}
	switch d.T {
	case EventReady:
		ev.Ready = &ReadyEvent{}
		if err := json.Unmarshal(d.D, ev.Ready); err != nil {
			return nil, fmt.Errorf("decode READY: %w", err)
		}
	case EventMessageCreated:
		ev.MessageCreated = &MessageCreatedEvent{}
		if err := json.Unmarshal(d.D, ev.MessageCreated); err != nil {
			return nil, fmt.Errorf("decode MESSAGE_CREATE: %w", err)
		}
	case EventError:
		ev.Err = &ErrorEvent{}
		if err := json.Unmarshal(d.D, ev.Err); err != nil {
			return nil, fmt.Errorf("decode ERROR: %w", err)
		}
	default:
		return nil, &ErrUnknownEvent{T: d.T}
	}
	return ev, nil
}
