// Package websocket streams committed permission changes to connected
// clients. Clients subscribe to a deal or to a single participant.
package websocket

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/dealroom/api/pkg/domain/shared"
)

// MessageType defines the type of WebSocket message.
type MessageType string

const (
	// Client -> Server messages
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
	MessageTypePing        MessageType = "ping"

	// Server -> Client messages
	MessageTypePong         MessageType = "pong"
	MessageTypeSubscribed   MessageType = "subscribed"
	MessageTypeUnsubscribed MessageType = "unsubscribed"
	MessageTypeEvent        MessageType = "event"
	MessageTypeError        MessageType = "error"
)

// Error codes sent in error messages.
const (
	CodeInvalidMessage     = "INVALID_MESSAGE"
	CodeUnknownMessageType = "UNKNOWN_MESSAGE_TYPE"
	CodeInvalidChannel     = "INVALID_CHANNEL"
	CodeSubscriptionLimit  = "SUBSCRIPTION_LIMIT"
)

// Message is the envelope of every frame in both directions.
type Message struct {
	Type      MessageType     `json:"type"`
	Channel   string          `json:"channel,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
	RequestID string          `json:"request_id,omitempty"`
}

// NewMessage creates a new message with current timestamp.
func NewMessage(msgType MessageType) *Message {
	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
	}
}

// WithChannel sets the channel for the message.
func (m *Message) WithChannel(channel string) *Message {
	m.Channel = channel
	return m
}

// WithData sets the data for the message.
func (m *Message) WithData(data any) *Message {
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			m.Data = raw
		}
	}
	return m
}

// WithRequestID sets the request ID for the message.
func (m *Message) WithRequestID(id string) *Message {
	m.RequestID = id
	return m
}

// ChannelRequest is the data of a subscribe or unsubscribe message.
type ChannelRequest struct {
	Channel   string `json:"channel"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorData represents error information sent to client.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ChannelType is the kind of entity a channel follows.
type ChannelType string

const (
	// ChannelTypeDeal carries changes to every participant of a deal: deal:{deal_id}
	ChannelTypeDeal ChannelType = "deal"
	// ChannelTypeParticipant carries changes to one participant: participant:{participant_id}
	ChannelTypeParticipant ChannelType = "participant"
)

// ParseChannel splits "{type}:{id}".
func ParseChannel(channel string) (ChannelType, string) {
	kind, id, ok := strings.Cut(channel, ":")
	if !ok {
		return "", channel
	}
	return ChannelType(kind), id
}

// MakeChannel creates a channel string from type and ID.
func MakeChannel(channelType ChannelType, id string) string {
	return string(channelType) + ":" + id
}

// ValidChannel reports whether channel names a known type and a well formed id.
func ValidChannel(channel string) bool {
	kind, id := ParseChannel(channel)
	switch kind {
	case ChannelTypeDeal, ChannelTypeParticipant:
		parsed, err := shared.IDFromString(id)
		return err == nil && !parsed.IsZero()
	default:
		return false
	}
}
