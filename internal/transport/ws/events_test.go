package ws

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vedran77/relay/internal/domain"
)

func envelope(t *testing.T, typ string, payload any) *Event {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return &Event{Type: typ, Payload: data}
}

func TestDecodeInboundVariants(t *testing.T) {
	user, conv := uuid.New(), uuid.New()

	got, err := DecodeInbound(envelope(t, EventTypeSetup, SetupPayload{UserID: user}))
	require.NoError(t, err)
	assert.Equal(t, SetupEvent{UserID: user}, got)

	got, err = DecodeInbound(envelope(t, EventTypeJoinChat, ConversationPayload{ConversationID: conv}))
	require.NoError(t, err)
	assert.Equal(t, JoinEvent{ConversationID: conv}, got)

	got, err = DecodeInbound(envelope(t, EventTypeTyping, ConversationPayload{ConversationID: conv}))
	require.NoError(t, err)
	assert.Equal(t, TypingEvent{ConversationID: conv}, got)

	got, err = DecodeInbound(envelope(t, EventTypeStopTyping, ConversationPayload{ConversationID: conv}))
	require.NoError(t, err)
	assert.Equal(t, TypingEvent{ConversationID: conv, Stop: true}, got)
}

func TestDecodeNewMessageTakesSenderFromSubdocument(t *testing.T) {
	sender := domain.UserSummary{ID: uuid.New(), Name: "ana"}
	msg := domain.Message{
		ID:      uuid.New(),
		Content: "hi",
		Sender:  &sender,
		Conversation: &domain.Conversation{
			ID:      uuid.New(),
			Members: []domain.UserSummary{sender, {ID: uuid.New()}},
		},
	}

	got, err := DecodeInbound(envelope(t, EventTypeNewMessage, msg))
	require.NoError(t, err)
	sent, ok := got.(MessageSentEvent)
	require.True(t, ok)
	assert.Equal(t, sender.ID, sent.Message.SenderID)
}

func TestDecodeInboundRejectsMalformed(t *testing.T) {
	admin := uuid.New()
	tests := []struct {
		name string
		evt  *Event
		want error
	}{
		{"unknown type", &Event{Type: "dance"}, ErrUnknownEvent},
		{"missing payload", &Event{Type: EventTypeSetup}, ErrMalformedPayload},
		{"bad json", &Event{Type: EventTypeTyping, Payload: json.RawMessage(`"room"`)}, ErrMalformedPayload},
		{"nil user", envelope(t, EventTypeSetup, SetupPayload{}), ErrMalformedPayload},
		{"nil conversation", envelope(t, EventTypeJoinChat, ConversationPayload{}), ErrMalformedPayload},
		{"message without conversation", envelope(t, EventTypeNewMessage, domain.Message{ID: uuid.New(), SenderID: uuid.New()}), ErrMalformedPayload},
		{"message without members", envelope(t, EventTypeNewMessage, domain.Message{
			ID: uuid.New(), SenderID: uuid.New(), Conversation: &domain.Conversation{ID: uuid.New()},
		}), ErrMalformedPayload},
		{"group without admin", envelope(t, EventTypeNewGroup, domain.Conversation{
			ID: uuid.New(), Members: []domain.UserSummary{{ID: uuid.New()}},
		}), ErrMalformedPayload},
		{"group without members", envelope(t, EventTypeNewGroup, domain.Conversation{ID: uuid.New(), AdminID: &admin}), ErrMalformedPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeInbound(tt.evt)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
