package service

import (
	"github.com/google/uuid"
	"github.com/vedran77/relay/internal/domain"
)

// Notifier pushes real-time events to connected clients after a successful write.
type Notifier interface {
	// NotifyNewMessage receives the message with Sender and Conversation.Members resolved.
	NotifyNewMessage(msg *domain.Message)
	NotifyGroupCreated(conv *domain.Conversation)
	NotifyAddedToGroup(conv *domain.Conversation, userID uuid.UUID)
}
