package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/relay/internal/domain"
)

// Event types - Client → Server
const (
	EventTypeSetup      = "setup"
	EventTypeJoinChat   = "join chat"
	EventTypeTyping     = "typing"
	EventTypeStopTyping = "stop typing"
	EventTypeNewMessage = "new message"
	EventTypeNewGroup   = "new group"
)

// Event types - Server → Client. Typing and stop typing are relayed under
// their inbound names.
const (
	EventTypeConnected       = "connected"
	EventTypeMessageReceived = "message recieved" // spelling is part of the wire contract
	EventTypeAddedToGroup    = "added to group"
)

var (
	ErrUnknownEvent     = errors.New("unknown event type")
	ErrMalformedPayload = errors.New("malformed payload")
)

// Event is the base envelope for all WebSocket messages.
type Event struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

// --- Client → Server payloads ---

type SetupPayload struct {
	UserID uuid.UUID `json:"user_id"`
}

type ConversationPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
}

// --- Server → Client payloads ---

type ConnectedPayload struct {
	UserID uuid.UUID `json:"user_id"`
}

type TypingPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
}

// InboundEvent is one of SetupEvent, JoinEvent, TypingEvent, MessageSentEvent
// or GroupCreatedEvent.
type InboundEvent interface {
	inbound()
}

type SetupEvent struct {
	UserID uuid.UUID
}

type JoinEvent struct {
	ConversationID uuid.UUID
}

type TypingEvent struct {
	ConversationID uuid.UUID
	Stop           bool
}

type MessageSentEvent struct {
	Message domain.Message
}

type GroupCreatedEvent struct {
	Conversation domain.Conversation
}

func (SetupEvent) inbound()        {}
func (JoinEvent) inbound()         {}
func (TypingEvent) inbound()       {}
func (MessageSentEvent) inbound()  {}
func (GroupCreatedEvent) inbound() {}

// DecodeInbound validates an envelope and turns it into its typed variant.
func DecodeInbound(evt *Event) (InboundEvent, error) {
	switch evt.Type {
	case EventTypeSetup:
		var p SetupPayload
		if err := unmarshalPayload(evt, &p); err != nil {
			return nil, err
		}
		if p.UserID == uuid.Nil {
			return nil, fmt.Errorf("%w: user_id required", ErrMalformedPayload)
		}
		return SetupEvent{UserID: p.UserID}, nil

	case EventTypeJoinChat, EventTypeTyping, EventTypeStopTyping:
		var p ConversationPayload
		if err := unmarshalPayload(evt, &p); err != nil {
			return nil, err
		}
		if p.ConversationID == uuid.Nil {
			return nil, fmt.Errorf("%w: conversation_id required", ErrMalformedPayload)
		}
		if evt.Type == EventTypeJoinChat {
			return JoinEvent{ConversationID: p.ConversationID}, nil
		}
		return TypingEvent{ConversationID: p.ConversationID, Stop: evt.Type == EventTypeStopTyping}, nil

	case EventTypeNewMessage:
		var msg domain.Message
		if err := unmarshalPayload(evt, &msg); err != nil {
			return nil, err
		}
		if msg.SenderID == uuid.Nil && msg.Sender != nil {
			msg.SenderID = msg.Sender.ID
		}
		if err := validateMessage(&msg); err != nil {
			return nil, err
		}
		return MessageSentEvent{Message: msg}, nil

	case EventTypeNewGroup:
		var conv domain.Conversation
		if err := unmarshalPayload(evt, &conv); err != nil {
			return nil, err
		}
		if err := validateGroup(&conv); err != nil {
			return nil, err
		}
		return GroupCreatedEvent{Conversation: conv}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, evt.Type)
	}
}

func unmarshalPayload(evt *Event, v any) error {
	if len(evt.Payload) == 0 {
		return fmt.Errorf("%w: %s payload missing", ErrMalformedPayload, evt.Type)
	}
	if err := json.Unmarshal(evt.Payload, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedPayload, evt.Type, err)
	}
	return nil
}

func validateMessage(msg *domain.Message) error {
	switch {
	case msg.ID == uuid.Nil:
		return fmt.Errorf("%w: message id required", ErrMalformedPayload)
	case msg.SenderID == uuid.Nil:
		return fmt.Errorf("%w: message sender required", ErrMalformedPayload)
	case msg.Conversation == nil:
		return fmt.Errorf("%w: message conversation required", ErrMalformedPayload)
	case len(msg.Conversation.Members) == 0:
		return fmt.Errorf("%w: conversation members required", ErrMalformedPayload)
	}
	return nil
}

func validateGroup(conv *domain.Conversation) error {
	switch {
	case conv.ID == uuid.Nil:
		return fmt.Errorf("%w: conversation id required", ErrMalformedPayload)
	case conv.AdminID == nil:
		return fmt.Errorf("%w: group admin required", ErrMalformedPayload)
	case len(conv.Members) == 0:
		return fmt.Errorf("%w: group members required", ErrMalformedPayload)
	}
	return nil
}

// NewEvent creates a server→client event with the current timestamp.
func NewEvent(eventType string, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:      eventType,
		Payload:   data,
		Timestamp: time.Now().Unix(),
	}, nil
}
