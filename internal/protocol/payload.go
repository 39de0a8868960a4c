package protocol

import "encoding/json"

// Gateway operation names, shared by both directions of the wire.
const (
	OpIdentify      = "Identify"
	OpSubscribe     = "Subscribe"
	OpMessageCreate = "MessageCreate"
	OpHello         = "Hello"
	OpDispatch      = "Dispatch"
)

// Payload is the gateway wire envelope. Exactly one operation per frame.
type Payload struct {
	Op string          `json:"op"`
	D  json.RawMessage `json:"d"`
}

type Identify struct {
	Token string `json:"token"`
}

type Subscribe struct {
	ChannelID string `json:"channel_id"`
}

type CreateMessage struct {
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
}

type Hello struct {
	HeartbeatIntervalMs int `json:"heartbeat_interval_ms"`
}

func newPayload(op string, body interface{}) Payload {
	d, _ := json.Marshal(body)
	return Payload{Op: op, D: d}
}

func NewIdentify(token string) Payload {
	return newPayload(OpIdentify, Identify{Token: token})
}

func NewSubscribe(channelID string) Payload {
	return newPayload(OpSubscribe, Subscribe{ChannelID: channelID})
}

func NewCreateMessage(channelID, content string) Payload {
	return newPayload(OpMessageCreate, CreateMessage{ChannelID: channelID, Content: content})
}
