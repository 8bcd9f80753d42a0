package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/vedran77/relay/internal/domain"
)

// ErrDuplicate is returned by Create methods when a unique key already exists.
var ErrDuplicate = errors.New("duplicate key")

// Lookups return (nil, nil) when the record does not exist.

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Search(ctx context.Context, query string, excludeID uuid.UUID, limit int) ([]domain.User, error)
}

// ConversationRepository returns conversations with Members populated. The
// latest message, when set, is populated with its sender.
type ConversationRepository interface {
	Create(ctx context.Context, conv *domain.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	FindDirect(ctx context.Context, userA, userB uuid.UUID) (*domain.Conversation, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error)
	Rename(ctx context.Context, id uuid.UUID, name string) error
	AddMember(ctx context.Context, id, userID uuid.UUID) error
	RemoveMember(ctx context.Context, id, userID uuid.UUID) error
	SetLatestMessage(ctx context.Context, id, messageID uuid.UUID) error
	// Delete removes the conversation and all of its messages.
	Delete(ctx context.Context, id uuid.UUID) error
}

// MessageRepository returns messages with Sender populated.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	ListByConversation(ctx context.Context, conversationID uuid.UUID, before *uuid.UUID, limit int) ([]domain.Message, error)
	// Delete clears any latest-message pointer referencing the message.
	Delete(ctx context.Context, id uuid.UUID) error
	// DeleteBySender removes the ids whose sender is senderID and reports how many went.
	DeleteBySender(ctx context.Context, senderID uuid.UUID, ids []uuid.UUID) (int64, error)
}
