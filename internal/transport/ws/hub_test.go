package ws

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vedran77/relay/internal/domain"
)

func connect(t *testing.T, h *Hub, userID uuid.UUID) *Client {
	t.Helper()
	c := NewClient(h, nil, userID)
	h.Attach(c)
	h.Dispatch(c, SetupEvent{UserID: userID})
	evt := nextEvent(t, c)
	require.Equal(t, EventTypeConnected, evt.Type)
	return c
}

func nextEvent(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case data := <-c.send:
		var evt Event
		require.NoError(t, json.Unmarshal(data, &evt))
		return evt
	default:
		t.Fatalf("no event queued for connection %s", c.id)
		return Event{}
	}
}

func assertNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("unexpected event for connection %s: %s", c.id, data)
	default:
	}
}

func member(id uuid.UUID) domain.UserSummary {
	return domain.UserSummary{ID: id}
}

func TestSetupJoinsPersonalRoom(t *testing.T) {
	h := NewHub(zap.NewNop())
	u := uuid.New()
	c := connect(t, h, u)

	id, ok := c.UserID()
	assert.True(t, ok)
	assert.Equal(t, u, id)
	assert.Equal(t, []string{userRoom(u)}, h.Registry().RoomsOf(c))
}

func TestSetupRejectsForeignIdentityAndRepeats(t *testing.T) {
	h := NewHub(zap.NewNop())
	u := uuid.New()
	c := NewClient(h, nil, u)
	h.Attach(c)

	h.Dispatch(c, SetupEvent{UserID: uuid.New()})
	_, ok := c.UserID()
	assert.False(t, ok)
	assertNoEvent(t, c)

	h.Dispatch(c, SetupEvent{UserID: u})
	nextEvent(t, c)
	h.Dispatch(c, SetupEvent{UserID: u})
	assertNoEvent(t, c)
}

func TestEventsBeforeSetupAreDropped(t *testing.T) {
	h := NewHub(zap.NewNop())
	c := NewClient(h, nil, uuid.New())
	h.Attach(c)

	conv := uuid.New()
	h.Dispatch(c, JoinEvent{ConversationID: conv})
	assert.Empty(t, h.Registry().Members(conversationRoom(conv)))
}

func TestJoinWithUserIDDoesNotEnterPersonalRoom(t *testing.T) {
	h := NewHub(zap.NewNop())
	alice, bob, mallory := uuid.New(), uuid.New(), uuid.New()
	ca := connect(t, h, alice)
	cb := connect(t, h, bob)
	cm := connect(t, h, mallory)

	h.Dispatch(cm, JoinEvent{ConversationID: bob})
	assert.Equal(t, []*Client{cb}, h.Registry().Members(userRoom(bob)))

	h.Dispatch(ca, MessageSentEvent{Message: domain.Message{
		ID: uuid.New(), SenderID: alice, Content: "private to bob",
		Conversation: &domain.Conversation{ID: uuid.New(), Members: []domain.UserSummary{member(alice), member(bob)}},
	}})
	assert.Equal(t, EventTypeMessageReceived, nextEvent(t, cb).Type)
	assertNoEvent(t, cm)

	NewHubNotifier(h).NotifyAddedToGroup(&domain.Conversation{ID: uuid.New(), IsGroup: true}, bob)
	assert.Equal(t, EventTypeAddedToGroup, nextEvent(t, cb).Type)
	assertNoEvent(t, cm)
}

func TestMessageFanoutExcludesSender(t *testing.T) {
	h := NewHub(zap.NewNop())
	s, u1, u2, outsider := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	cs := connect(t, h, s)
	csOther := connect(t, h, s)
	c1 := connect(t, h, u1)
	c2 := connect(t, h, u2)
	cx := connect(t, h, outsider)

	msg := domain.Message{
		ID:       uuid.New(),
		SenderID: s,
		Content:  "hi",
		Conversation: &domain.Conversation{
			ID:      uuid.New(),
			Members: []domain.UserSummary{member(s), member(u1), member(u2)},
		},
	}
	h.Dispatch(cs, MessageSentEvent{Message: msg})

	for _, c := range []*Client{c1, c2} {
		evt := nextEvent(t, c)
		assert.Equal(t, EventTypeMessageReceived, evt.Type)
		var got domain.Message
		require.NoError(t, json.Unmarshal(evt.Payload, &got))
		assert.Equal(t, msg.ID, got.ID)
		assert.Equal(t, "hi", got.Content)
	}
	assertNoEvent(t, cs)
	assertNoEvent(t, csOther)
	assertNoEvent(t, cx)
}

func TestMessageFanoutReachesClosedConversations(t *testing.T) {
	h := NewHub(zap.NewNop())
	s, u := uuid.New(), uuid.New()
	cs := connect(t, h, s)
	cu := connect(t, h, u)
	convID := uuid.New()
	// cu never joins the conversation room.

	h.Dispatch(cs, MessageSentEvent{Message: domain.Message{
		ID: uuid.New(), SenderID: s, Content: "ping",
		Conversation: &domain.Conversation{ID: convID, Members: []domain.UserSummary{member(s), member(u)}},
	}})

	assert.Equal(t, EventTypeMessageReceived, nextEvent(t, cu).Type)
}

func TestMessageAnnouncedTwiceIsDeliveredOnce(t *testing.T) {
	h := NewHub(zap.NewNop())
	s, u := uuid.New(), uuid.New()
	cs := connect(t, h, s)
	cu := connect(t, h, u)

	msg := domain.Message{
		ID: uuid.New(), SenderID: s, Content: "once",
		Conversation: &domain.Conversation{ID: uuid.New(), Members: []domain.UserSummary{member(s), member(u)}},
	}

	// Server-side push first, then the client re-announces.
	NewHubNotifier(h).NotifyNewMessage(&msg)
	h.Dispatch(cs, MessageSentEvent{Message: msg})

	nextEvent(t, cu)
	assertNoEvent(t, cu)
}

func TestMessageFromAnotherSenderIsDropped(t *testing.T) {
	h := NewHub(zap.NewNop())
	s, u := uuid.New(), uuid.New()
	cs := connect(t, h, s)
	cu := connect(t, h, u)

	h.Dispatch(cu, MessageSentEvent{Message: domain.Message{
		ID: uuid.New(), SenderID: s, Content: "forged",
		Conversation: &domain.Conversation{ID: uuid.New(), Members: []domain.UserSummary{member(s), member(u)}},
	}})

	assertNoEvent(t, cs)
	assertNoEvent(t, cu)
}

func TestMalformedMessageIsDroppedWithoutPanic(t *testing.T) {
	h := NewHub(zap.NewNop())
	s := uuid.New()

	assert.Equal(t, 0, h.FanoutMessage(&domain.Message{ID: uuid.New(), SenderID: s}))
	assert.Equal(t, 0, h.FanoutMessage(&domain.Message{ID: uuid.New(), SenderID: s, Conversation: &domain.Conversation{}}))
	assert.Equal(t, 0, h.FanoutGroupCreated(&domain.Conversation{ID: uuid.New()}))
}

func TestTypingReachesWholeRoomIncludingOwnDevices(t *testing.T) {
	h := NewHub(zap.NewNop())
	a, b := uuid.New(), uuid.New()
	phone := connect(t, h, a)
	laptop := connect(t, h, a)
	other := connect(t, h, b)
	idle := connect(t, h, b)

	conv := uuid.New()
	for _, c := range []*Client{phone, laptop, other} {
		h.Dispatch(c, JoinEvent{ConversationID: conv})
	}
	h.Dispatch(other, JoinEvent{ConversationID: conv})

	h.Dispatch(phone, TypingEvent{ConversationID: conv})

	for _, c := range []*Client{phone, laptop, other} {
		evt := nextEvent(t, c)
		assert.Equal(t, EventTypeTyping, evt.Type)
		var p TypingPayload
		require.NoError(t, json.Unmarshal(evt.Payload, &p))
		assert.Equal(t, conv, p.ConversationID)
		assert.Equal(t, a, p.UserID)
	}
	assertNoEvent(t, idle)

	h.Dispatch(laptop, TypingEvent{ConversationID: conv, Stop: true})
	assert.Equal(t, EventTypeStopTyping, nextEvent(t, other).Type)
}

func TestGroupCreatedSkipsAdmin(t *testing.T) {
	h := NewHub(zap.NewNop())
	admin, u2, u3 := uuid.New(), uuid.New(), uuid.New()
	ca := connect(t, h, admin)
	c2 := connect(t, h, u2)
	c3 := connect(t, h, u3)

	conv := domain.Conversation{
		ID: uuid.New(), IsGroup: true, Name: "Team", AdminID: &admin,
		Members: []domain.UserSummary{member(u2), member(u3), member(admin)},
	}
	h.Dispatch(ca, GroupCreatedEvent{Conversation: conv})

	for _, c := range []*Client{c2, c3} {
		evt := nextEvent(t, c)
		assert.Equal(t, EventTypeAddedToGroup, evt.Type)
		var got domain.Conversation
		require.NoError(t, json.Unmarshal(evt.Payload, &got))
		assert.Equal(t, "Team", got.Name)
	}
	assertNoEvent(t, ca)

	// Non-admins cannot announce a group.
	other := domain.Conversation{ID: uuid.New(), AdminID: &admin, Members: conv.Members}
	h.Dispatch(c2, GroupCreatedEvent{Conversation: other})
	assertNoEvent(t, c3)
}

func TestDisconnectDropsRooms(t *testing.T) {
	h := NewHub(zap.NewNop())
	u := uuid.New()
	c := connect(t, h, u)
	conv := uuid.New()
	h.Dispatch(c, JoinEvent{ConversationID: conv})

	h.Detach(c)
	h.Detach(c)

	assert.Empty(t, h.Registry().Members(userRoom(u)))
	assert.Empty(t, h.Registry().Members(conversationRoom(conv)))
	assert.Equal(t, 0, h.Emit(conversationRoom(conv), EventTypeTyping, TypingPayload{}))
}

func TestFullBufferDisconnectsSlowClient(t *testing.T) {
	h := NewHub(zap.NewNop())
	u := uuid.New()
	slow := connect(t, h, u)
	room := uuid.NewString()
	h.Registry().Join(slow, room)

	for i := 0; i < sendBufSize; i++ {
		require.Equal(t, 1, h.Emit(room, EventTypeTyping, TypingPayload{}))
	}
	assert.Equal(t, 0, h.Emit(room, EventTypeTyping, TypingPayload{}))

	select {
	case <-slow.done:
	default:
		t.Fatal("slow client was not closed")
	}
	assert.Empty(t, h.Registry().RoomsOf(slow))
}

func TestRecentSetEvictsOldest(t *testing.T) {
	s := newRecentSet(2)
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	assert.True(t, s.Add(a))
	assert.False(t, s.Add(a))
	assert.True(t, s.Add(b))
	assert.True(t, s.Add(c))
	assert.True(t, s.Add(a))
	assert.False(t, s.Add(c))
}
