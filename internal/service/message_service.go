package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/repository"
)

type MessageService struct {
	messageRepo repository.MessageRepository
	convRepo    repository.ConversationRepository
	notifier    Notifier
	logger      *zap.Logger
}

func NewMessageService(messageRepo repository.MessageRepository, convRepo repository.ConversationRepository, logger *zap.Logger) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		convRepo:    convRepo,
		logger:      logger.Named("messages"),
	}
}

// SetNotifier sets the real-time notifier (optional dependency).
func (s *MessageService) SetNotifier(n Notifier) {
	s.notifier = n
}

type SendMessageInput struct {
	Content string `json:"content"`
}

type DeleteMessagesInput struct {
	MessageIDs []uuid.UUID `json:"message_ids"`
}

type MessageListResponse struct {
	Messages []domain.Message `json:"messages"`
	HasMore  bool             `json:"has_more"`
}

// Send stores a message from a conversation member and moves the conversation's
// latest-message pointer to it. The returned message has Sender and
// Conversation.Members resolved so it can be fanned out without another lookup.
func (s *MessageService) Send(ctx context.Context, senderID, conversationID uuid.UUID, content string) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	if !conv.HasMember(senderID) {
		return nil, ErrNotParticipant
	}

	msg := &domain.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      time.Now(),
	}

	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("creating message: %w", err)
	}

	if err := s.convRepo.SetLatestMessage(ctx, conversationID, msg.ID); err != nil {
		// Undo the insert so a retry does not leave a duplicate behind.
		if delErr := s.messageRepo.Delete(context.WithoutCancel(ctx), msg.ID); delErr != nil {
			s.logger.Error("failed to roll back message",
				zap.String("message_id", msg.ID.String()), zap.Error(delErr))
		}
		return nil, fmt.Errorf("updating latest message: %w", err)
	}

	full, err := s.messageRepo.GetByID(ctx, msg.ID)
	if err != nil {
		return nil, fmt.Errorf("loading message: %w", err)
	}
	if full == nil {
		return nil, ErrMessageNotFound
	}

	conv.LatestMessageID = &full.ID
	conv.LatestMessage = nil
	full.Conversation = conv

	if s.notifier != nil {
		s.notifier.NotifyNewMessage(full)
	}

	return full, nil
}

// List returns a page of messages, oldest first. Participants only.
func (s *MessageService) List(ctx context.Context, userID, conversationID uuid.UUID, before *uuid.UUID, limit int) (*MessageListResponse, error) {
	if err := s.checkParticipant(ctx, userID, conversationID); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}

	messages, err := s.messageRepo.ListByConversation(ctx, conversationID, before, limit+1)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}

	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[len(messages)-limit:]
	}

	if messages == nil {
		messages = []domain.Message{}
	}

	return &MessageListResponse{
		Messages: messages,
		HasMore:  hasMore,
	}, nil
}

// DeleteOne hard-deletes a message. Only its sender may do so.
func (s *MessageService) DeleteOne(ctx context.Context, requesterID, messageID uuid.UUID) error {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return fmt.Errorf("loading message: %w", err)
	}
	if msg == nil {
		return ErrMessageNotFound
	}
	if msg.SenderID != requesterID {
		return ErrNotMessageOwner
	}

	if err := s.messageRepo.Delete(ctx, messageID); err != nil {
		return fmt.Errorf("deleting message: %w", err)
	}
	return nil
}

// DeleteMany deletes the subset of messageIDs sent by the requester. Ids that
// are missing or belong to someone else are skipped without error.
func (s *MessageService) DeleteMany(ctx context.Context, requesterID uuid.UUID, messageIDs []uuid.UUID) (int64, error) {
	if len(messageIDs) == 0 {
		return 0, ErrNoMessagesSelected
	}

	seen := make(map[uuid.UUID]struct{}, len(messageIDs))
	ids := make([]uuid.UUID, 0, len(messageIDs))
	for _, id := range messageIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	deleted, err := s.messageRepo.DeleteBySender(ctx, requesterID, ids)
	if err != nil {
		return 0, fmt.Errorf("deleting messages: %w", err)
	}

	s.logger.Debug("bulk delete",
		zap.String("requester_id", requesterID.String()),
		zap.Int("requested", len(ids)),
		zap.Int64("deleted", deleted),
	)
	return deleted, nil
}

func (s *MessageService) checkParticipant(ctx context.Context, userID, conversationID uuid.UUID) error {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("loading conversation: %w", err)
	}
	if conv == nil {
		return ErrConversationNotFound
	}
	if !conv.HasMember(userID) {
		return ErrNotParticipant
	}
	return nil
}
