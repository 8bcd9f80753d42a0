package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/repository"
	"github.com/vedran77/relay/internal/repository/memory"
)

// ctxConvRepo fails lookups made on a done context, like a real driver.
type ctxConvRepo struct {
	repository.ConversationRepository
}

func (r ctxConvRepo) FindDirect(ctx context.Context, userA, userB uuid.UUID) (*domain.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.ConversationRepository.FindDirect(ctx, userA, userB)
}

// failingLatestRepo cannot move the latest-message pointer.
type failingLatestRepo struct {
	repository.ConversationRepository
}

func (failingLatestRepo) SetLatestMessage(context.Context, uuid.UUID, uuid.UUID) error {
	return errors.New("connection reset")
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []*domain.Message
	groups   []*domain.Conversation
	added    []uuid.UUID
}

func (n *recordingNotifier) NotifyNewMessage(msg *domain.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
}

func (n *recordingNotifier) NotifyGroupCreated(conv *domain.Conversation) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.groups = append(n.groups, conv)
}

func (n *recordingNotifier) NotifyAddedToGroup(_ *domain.Conversation, userID uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.added = append(n.added, userID)
}

type fixture struct {
	store    *memory.Store
	chats    *ChatService
	messages *MessageService
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	log := zap.NewNop()
	n := &recordingNotifier{}

	chats := NewChatService(store.Conversations(), store.Users(), log)
	chats.SetNotifier(n)
	messages := NewMessageService(store.Messages(), store.Conversations(), log)
	messages.SetNotifier(n)

	return &fixture{store: store, chats: chats, messages: messages, notifier: n}
}

func (f *fixture) user(t *testing.T, name string) domain.User {
	t.Helper()
	u := domain.User{ID: uuid.New(), Name: name, Email: name + "@example.com"}
	require.NoError(t, f.store.Users().Create(context.Background(), &u))
	return u
}
