package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/vedran77/relay/internal/domain"
)

const recentCapacity = 4096

// Room keys carry a kind prefix so a conversation id can never name a
// personal room.
func userRoom(id uuid.UUID) string { return "user:" + id.String() }

func conversationRoom(id uuid.UUID) string { return "conv:" + id.String() }

// Hub owns the room registry and routes events between connections.
type Hub struct {
	registry *Registry
	logger   *zap.Logger

	mu      sync.Mutex
	clients map[string]*Client

	// delivered remembers recently fanned-out message and group ids so a
	// client re-announcing what the server already pushed is not delivered twice.
	delivered *recentSet
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		registry:  NewRegistry(),
		logger:    logger.Named("ws"),
		clients:   make(map[string]*Client),
		delivered: newRecentSet(recentCapacity),
	}
}

func (h *Hub) Registry() *Registry {
	return h.registry
}

// Attach tracks a freshly accepted connection.
func (h *Hub) Attach(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	total := len(h.clients)
	h.mu.Unlock()

	c.logger.Debug("ws hub: connection attached", zap.Int("total", total))
}

// Detach forgets a connection and drops it from every room. Idempotent.
func (h *Hub) Detach(c *Client) {
	h.registry.Drop(c)

	h.mu.Lock()
	_, tracked := h.clients[c.id]
	delete(h.clients, c.id)
	total := len(h.clients)
	h.mu.Unlock()

	if tracked {
		c.logger.Debug("ws hub: connection detached", zap.Int("total", total))
	}
}

// Close disconnects every client and waits, up to writeWait, for their
// close frames to be written.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.closeWith(websocket.StatusGoingAway, "server shutdown")
		h.Detach(c)
	}

	// Give the write pumps a chance to send their close frames.
	deadline := time.After(writeWait)
	for _, c := range clients {
		select {
		case <-c.closed:
		case <-deadline:
			h.logger.Warn("ws hub: close timed out", zap.Int("clients", len(clients)))
			return
		}
	}
}

// Dispatch applies one inbound event for c. Nothing here blocks on I/O.
func (h *Hub) Dispatch(c *Client, evt InboundEvent) {
	if setup, ok := evt.(SetupEvent); ok {
		h.setup(c, setup)
		return
	}

	userID, ok := c.UserID()
	if !ok {
		c.logger.Warn("ws hub: dropping event before setup")
		return
	}

	switch e := evt.(type) {
	case JoinEvent:
		h.registry.Join(c, conversationRoom(e.ConversationID))

	case TypingEvent:
		eventType := EventTypeTyping
		if e.Stop {
			eventType = EventTypeStopTyping
		}
		h.Emit(conversationRoom(e.ConversationID), eventType, TypingPayload{
			ConversationID: e.ConversationID,
			UserID:         userID,
		})

	case MessageSentEvent:
		if e.Message.SenderID != userID {
			c.logger.Warn("ws hub: dropping message announced for another sender",
				zap.String("message_id", e.Message.ID.String()))
			return
		}
		h.FanoutMessage(&e.Message)

	case GroupCreatedEvent:
		if !e.Conversation.IsAdmin(userID) {
			c.logger.Warn("ws hub: dropping group announced by non-admin",
				zap.String("conversation_id", e.Conversation.ID.String()))
			return
		}
		h.FanoutGroupCreated(&e.Conversation)
	}
}

func (h *Hub) setup(c *Client, e SetupEvent) {
	if e.UserID != c.authUserID {
		c.logger.Warn("ws hub: setup identity does not match token", zap.String("claimed", e.UserID.String()))
		return
	}
	if !c.identify(e.UserID) {
		c.logger.Warn("ws hub: duplicate setup ignored")
		return
	}

	h.registry.Join(c, userRoom(e.UserID))
	h.send(c, EventTypeConnected, ConnectedPayload{UserID: e.UserID})
}

// FanoutMessage emits "message recieved" to the personal room of every
// conversation member except the sender. It returns the number of
// connections reached.
func (h *Hub) FanoutMessage(msg *domain.Message) int {
	if msg.Conversation == nil || len(msg.Conversation.Members) == 0 {
		h.logger.Warn("ws hub: message without conversation members", zap.String("message_id", msg.ID.String()))
		return 0
	}
	if !h.delivered.Add(msg.ID) {
		h.logger.Debug("ws hub: message already delivered", zap.String("message_id", msg.ID.String()))
		return 0
	}

	data, ok := h.marshal(EventTypeMessageReceived, msg)
	if !ok {
		return 0
	}

	reached := 0
	for _, m := range msg.Conversation.Members {
		if m.ID == msg.SenderID {
			continue
		}
		reached += h.emitRaw(userRoom(m.ID), data)
	}
	return reached
}

// FanoutGroupCreated emits "added to group" to every member except the admin.
func (h *Hub) FanoutGroupCreated(conv *domain.Conversation) int {
	if conv.AdminID == nil || len(conv.Members) == 0 {
		h.logger.Warn("ws hub: group without admin or members", zap.String("conversation_id", conv.ID.String()))
		return 0
	}
	if !h.delivered.Add(conv.ID) {
		h.logger.Debug("ws hub: group already announced", zap.String("conversation_id", conv.ID.String()))
		return 0
	}

	data, ok := h.marshal(EventTypeAddedToGroup, conv)
	if !ok {
		return 0
	}

	reached := 0
	for _, m := range conv.Members {
		if m.ID == *conv.AdminID {
			continue
		}
		reached += h.emitRaw(userRoom(m.ID), data)
	}
	return reached
}

// NotifyUser emits an event to one user's personal room.
func (h *Hub) NotifyUser(userID uuid.UUID, eventType string, payload any) int {
	return h.Emit(userRoom(userID), eventType, payload)
}

// Emit sends an event to every connection joined to room.
func (h *Hub) Emit(room, eventType string, payload any) int {
	data, ok := h.marshal(eventType, payload)
	if !ok {
		return 0
	}
	return h.emitRaw(room, data)
}

func (h *Hub) emitRaw(room string, data []byte) int {
	reached := 0
	for _, c := range h.registry.Members(room) {
		if h.deliver(c, data) {
			reached++
		}
	}
	return reached
}

func (h *Hub) send(c *Client, eventType string, payload any) {
	if data, ok := h.marshal(eventType, payload); ok {
		h.deliver(c, data)
	}
}

// deliver queues data for c. A client whose buffer is full is disconnected
// so one slow reader cannot stall the others.
func (h *Hub) deliver(c *Client, data []byte) bool {
	if c.enqueue(data) {
		return true
	}
	select {
	case <-c.done:
	default:
		c.logger.Warn("ws hub: send buffer full, disconnecting")
		c.closeWith(websocket.StatusPolicyViolation, "send buffer full")
		h.Detach(c)
	}
	return false
}

func (h *Hub) marshal(eventType string, payload any) ([]byte, bool) {
	evt, err := NewEvent(eventType, payload)
	if err != nil {
		h.logger.Error("ws hub: marshal payload", zap.String("type", eventType), zap.Error(err))
		return nil, false
	}
	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("ws hub: marshal event", zap.String("type", eventType), zap.Error(err))
		return nil, false
	}
	return data, true
}

// recentSet is a fixed-size set of ids; the oldest id is evicted first.
type recentSet struct {
	mu    sync.Mutex
	items map[uuid.UUID]struct{}
	ring  []uuid.UUID
	next  int
}

func newRecentSet(capacity int) *recentSet {
	return &recentSet{
		items: make(map[uuid.UUID]struct{}, capacity),
		ring:  make([]uuid.UUID, capacity),
	}
}

// Add reports whether id was not already present.
func (s *recentSet) Add(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; ok {
		return false
	}
	if old := s.ring[s.next]; old != uuid.Nil {
		delete(s.items, old)
	}
	s.ring[s.next] = id
	s.items[id] = struct{}{}
	s.next = (s.next + 1) % len(s.ring)
	return true
}
