package ws

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vedran77/relay/internal/domain"
)

// HubNotifier implements service.Notifier using the WebSocket Hub.
type HubNotifier struct {
	hub *Hub
}

func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) NotifyNewMessage(msg *domain.Message) {
	reached := n.hub.FanoutMessage(msg)
	n.hub.logger.Debug("ws notifier: message pushed",
		zap.String("message_id", msg.ID.String()),
		zap.Int("connections", reached),
	)
}

func (n *HubNotifier) NotifyGroupCreated(conv *domain.Conversation) {
	n.hub.FanoutGroupCreated(conv)
}

func (n *HubNotifier) NotifyAddedToGroup(conv *domain.Conversation, userID uuid.UUID) {
	n.hub.NotifyUser(userID, EventTypeAddedToGroup, conv)
}
