package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/repository"
)

// ChatService resolves and mutates conversation membership.
type ChatService struct {
	convRepo repository.ConversationRepository
	userRepo repository.UserRepository
	notifier Notifier
	logger   *zap.Logger

	// direct collapses concurrent AccessDirect calls for the same pair.
	direct singleflight.Group
}

func NewChatService(convRepo repository.ConversationRepository, userRepo repository.UserRepository, logger *zap.Logger) *ChatService {
	return &ChatService{
		convRepo: convRepo,
		userRepo: userRepo,
		logger:   logger.Named("chat"),
	}
}

// SetNotifier sets the real-time notifier (optional dependency).
func (s *ChatService) SetNotifier(n Notifier) {
	s.notifier = n
}

type CreateGroupInput struct {
	Name    string      `json:"name"`
	UserIDs []uuid.UUID `json:"user_ids"`
}

type RemoveMemberResult struct {
	Conversation *domain.Conversation `json:"conversation,omitempty"`
	Deleted      bool                 `json:"deleted"`
}

// AccessDirect returns the one-to-one conversation between requester and peer,
// creating it on first contact.
func (s *ChatService) AccessDirect(ctx context.Context, requesterID, peerID uuid.UUID) (*domain.Conversation, error) {
	if requesterID == peerID {
		return nil, ErrCannotChatSelf
	}

	peer, err := s.userRepo.GetByID(ctx, peerID)
	if err != nil {
		return nil, fmt.Errorf("loading peer: %w", err)
	}
	if peer == nil {
		return nil, ErrUserNotFound
	}

	// The flight is shared, so one caller's cancellation must not fail the rest.
	flightCtx := context.WithoutCancel(ctx)
	v, err, _ := s.direct.Do(domain.DirectKey(requesterID, peerID), func() (any, error) {
		return s.findOrCreateDirect(flightCtx, requesterID, peer)
	})
	if err != nil {
		return nil, err
	}

	// The result may be shared with a concurrent caller.
	conv := *v.(*domain.Conversation)
	conv.Members = append([]domain.UserSummary(nil), conv.Members...)
	return &conv, nil
}

func (s *ChatService) findOrCreateDirect(ctx context.Context, requesterID uuid.UUID, peer *domain.User) (*domain.Conversation, error) {
	conv, err := s.convRepo.FindDirect(ctx, requesterID, peer.ID)
	if err != nil {
		return nil, fmt.Errorf("finding conversation: %w", err)
	}
	if conv != nil {
		return conv, nil
	}

	requester, err := s.userRepo.GetByID(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("loading requester: %w", err)
	}
	if requester == nil {
		return nil, ErrUserNotFound
	}

	now := time.Now()
	conv = &domain.Conversation{
		ID:        uuid.New(),
		Name:      peer.Name,
		Members:   []domain.UserSummary{requester.Summary(), peer.Summary()},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.convRepo.Create(ctx, conv); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("creating conversation: %w", err)
		}
		// Another process created it first.
		existing, findErr := s.convRepo.FindDirect(ctx, requesterID, peer.ID)
		if findErr != nil {
			return nil, fmt.Errorf("finding conversation: %w", findErr)
		}
		if existing == nil {
			return nil, fmt.Errorf("creating conversation: %w", err)
		}
		return existing, nil
	}

	s.logger.Debug("direct conversation created",
		zap.String("conversation_id", conv.ID.String()),
		zap.String("requester_id", requesterID.String()),
		zap.String("peer_id", peer.ID.String()),
	)
	return conv, nil
}

// ListConversations returns every conversation the user belongs to, most recently updated first.
func (s *ChatService) ListConversations(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	convs, err := s.convRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	if convs == nil {
		convs = []domain.Conversation{}
	}
	return convs, nil
}

// CreateGroup creates a group with the creator as admin and last member.
func (s *ChatService) CreateGroup(ctx context.Context, creatorID uuid.UUID, input CreateGroupInput) (*domain.Conversation, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrGroupNameRequired
	}

	seen := map[uuid.UUID]struct{}{creatorID: {}}
	var memberIDs []uuid.UUID
	for _, id := range input.UserIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		memberIDs = append(memberIDs, id)
	}
	if len(memberIDs) < 2 {
		return nil, ErrTooFewMembers
	}

	members := make([]domain.UserSummary, 0, len(memberIDs)+1)
	for _, id := range append(memberIDs, creatorID) {
		u, err := s.userRepo.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading member: %w", err)
		}
		if u == nil {
			return nil, ErrUserNotFound
		}
		members = append(members, u.Summary())
	}

	now := time.Now()
	admin := creatorID
	conv := &domain.Conversation{
		ID:        uuid.New(),
		IsGroup:   true,
		Name:      name,
		AdminID:   &admin,
		Members:   members,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.convRepo.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("creating group: %w", err)
	}

	s.logger.Info("group created",
		zap.String("conversation_id", conv.ID.String()),
		zap.String("admin_id", creatorID.String()),
		zap.Int("members", len(members)),
	)

	if s.notifier != nil {
		s.notifier.NotifyGroupCreated(conv)
	}

	return conv, nil
}

func (s *ChatService) RenameGroup(ctx context.Context, requesterID, convID uuid.UUID, name string) (*domain.Conversation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrGroupNameRequired
	}

	conv, err := s.loadGroup(ctx, convID)
	if err != nil {
		return nil, err
	}
	if !conv.IsAdmin(requesterID) {
		return nil, ErrNotGroupAdmin
	}

	if err := s.convRepo.Rename(ctx, convID, name); err != nil {
		return nil, fmt.Errorf("renaming group: %w", err)
	}
	return s.reload(ctx, convID)
}

func (s *ChatService) AddMember(ctx context.Context, requesterID, convID, userID uuid.UUID) (*domain.Conversation, error) {
	conv, err := s.loadGroup(ctx, convID)
	if err != nil {
		return nil, err
	}
	if !conv.IsAdmin(requesterID) {
		return nil, ErrNotGroupAdmin
	}
	if conv.HasMember(userID) {
		return nil, ErrAlreadyMember
	}

	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	if u == nil {
		return nil, ErrUserNotFound
	}

	if err := s.convRepo.AddMember(ctx, convID, userID); err != nil {
		return nil, fmt.Errorf("adding member: %w", err)
	}

	updated, err := s.reload(ctx, convID)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.NotifyAddedToGroup(updated, userID)
	}

	return updated, nil
}

// RemoveMember removes userID from a group. The admin may remove anyone and a
// member may remove themself. Removing the admin or the last member deletes
// the group; there is no admin succession.
func (s *ChatService) RemoveMember(ctx context.Context, requesterID, convID, userID uuid.UUID) (*RemoveMemberResult, error) {
	conv, err := s.loadGroup(ctx, convID)
	if err != nil {
		return nil, err
	}
	if !conv.IsAdmin(requesterID) && requesterID != userID {
		return nil, ErrNotGroupAdmin
	}
	if !conv.HasMember(userID) {
		return nil, ErrNotMember
	}

	if conv.IsAdmin(userID) || len(conv.Members) == 1 {
		if err := s.convRepo.Delete(ctx, convID); err != nil {
			return nil, fmt.Errorf("deleting group: %w", err)
		}
		s.logger.Info("group deleted on member removal",
			zap.String("conversation_id", convID.String()),
			zap.String("removed_id", userID.String()),
		)
		return &RemoveMemberResult{Deleted: true}, nil
	}

	if err := s.convRepo.RemoveMember(ctx, convID, userID); err != nil {
		return nil, fmt.Errorf("removing member: %w", err)
	}

	updated, err := s.reload(ctx, convID)
	if err != nil {
		return nil, err
	}
	return &RemoveMemberResult{Conversation: updated}, nil
}

// DeleteGroup deletes a group and its messages. Admin only.
func (s *ChatService) DeleteGroup(ctx context.Context, requesterID, convID uuid.UUID) error {
	conv, err := s.loadGroup(ctx, convID)
	if err != nil {
		return err
	}
	if !conv.IsAdmin(requesterID) {
		return ErrNotGroupAdmin
	}

	if err := s.convRepo.Delete(ctx, convID); err != nil {
		return fmt.Errorf("deleting group: %w", err)
	}
	return nil
}

func (s *ChatService) loadGroup(ctx context.Context, convID uuid.UUID) (*domain.Conversation, error) {
	conv, err := s.convRepo.GetByID(ctx, convID)
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	if !conv.IsGroup {
		return nil, ErrNotGroup
	}
	return conv, nil
}

func (s *ChatService) reload(ctx context.Context, convID uuid.UUID) (*domain.Conversation, error) {
	conv, err := s.convRepo.GetByID(ctx, convID)
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	return conv, nil
}
