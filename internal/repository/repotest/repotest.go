// Package repotest holds the behavioural checks every repository backend
// must pass. Backends call Run from their own tests.
package repotest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/repository"
)

type Stores struct {
	Users         repository.UserRepository
	Conversations repository.ConversationRepository
	Messages      repository.MessageRepository
}

func Run(t *testing.T, s Stores) {
	t.Run("UserEmailIsUnique", func(t *testing.T) { userEmailIsUnique(t, s) })
	t.Run("DirectPairIsUnique", func(t *testing.T) { directPairIsUnique(t, s) })
	t.Run("MessagesPageBySequence", func(t *testing.T) { messagesPageBySequence(t, s) })
	t.Run("DeletingLatestClearsPointer", func(t *testing.T) { deletingLatestClearsPointer(t, s) })
	t.Run("DeleteBySenderOnlyOwn", func(t *testing.T) { deleteBySenderOnlyOwn(t, s) })
	t.Run("GroupMembership", func(t *testing.T) { groupMembership(t, s) })
}

// User creates a user with a unique email so runs against a shared database
// do not collide.
func User(t *testing.T, s Stores, name string) domain.User {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Millisecond)
	u := domain.User{
		ID:           uuid.New(),
		Name:         name,
		Email:        name + "-" + uuid.NewString()[:8] + "@example.com",
		PasswordHash: "hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, s.Users.Create(context.Background(), &u))
	return u
}

func direct(t *testing.T, s Stores, a, b domain.User) domain.Conversation {
	t.Helper()
	now := time.Now().UTC()
	conv := domain.Conversation{
		ID:        uuid.New(),
		Name:      b.Name,
		Members:   []domain.UserSummary{a.Summary(), b.Summary()},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.Conversations.Create(context.Background(), &conv))
	return conv
}

func message(t *testing.T, s Stores, conv domain.Conversation, sender domain.User, content string, at time.Time) domain.Message {
	t.Helper()
	msg := domain.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		SenderID:       sender.ID,
		Content:        content,
		CreatedAt:      at,
	}
	require.NoError(t, s.Messages.Create(context.Background(), &msg))
	return msg
}

func userEmailIsUnique(t *testing.T, s Stores) {
	ctx := context.Background()
	u := User(t, s, "ana")

	dup := domain.User{ID: uuid.New(), Name: "other", Email: u.Email, PasswordHash: "hash", CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt}
	assert.ErrorIs(t, s.Users.Create(ctx, &dup), repository.ErrDuplicate)

	got, err := s.Users.GetByEmail(ctx, u.Email)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)

	missing, err := s.Users.GetByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func directPairIsUnique(t *testing.T, s Stores) {
	ctx := context.Background()
	a, b := User(t, s, "ana"), User(t, s, "bruno")
	conv := direct(t, s, a, b)

	again := domain.Conversation{
		ID:        uuid.New(),
		Members:   []domain.UserSummary{b.Summary(), a.Summary()},
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
	}
	assert.ErrorIs(t, s.Conversations.Create(ctx, &again), repository.ErrDuplicate)

	for _, pair := range [][2]uuid.UUID{{a.ID, b.ID}, {b.ID, a.ID}} {
		found, err := s.Conversations.FindDirect(ctx, pair[0], pair[1])
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, conv.ID, found.ID)
		assert.Len(t, found.Members, 2)
	}
}

func messagesPageBySequence(t *testing.T, s Stores) {
	ctx := context.Background()
	a, b := User(t, s, "ana"), User(t, s, "bruno")
	conv := direct(t, s, a, b)

	// Identical timestamps: order must come from insertion.
	at := time.Now().UTC().Truncate(time.Second)
	m1 := message(t, s, conv, a, "one", at)
	m2 := message(t, s, conv, b, "two", at)
	m3 := message(t, s, conv, a, "three", at)

	page, err := s.Messages.ListByConversation(ctx, conv.ID, nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, m2.ID, page[0].ID)
	assert.Equal(t, m3.ID, page[1].ID)
	require.NotNil(t, page[0].Sender)
	assert.Equal(t, "bruno", page[0].Sender.Name)

	older, err := s.Messages.ListByConversation(ctx, conv.ID, &m2.ID, 10)
	require.NoError(t, err)
	require.Len(t, older, 1)
	assert.Equal(t, m1.ID, older[0].ID)

	unknown := uuid.New()
	none, err := s.Messages.ListByConversation(ctx, conv.ID, &unknown, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func deletingLatestClearsPointer(t *testing.T, s Stores) {
	ctx := context.Background()
	a, b := User(t, s, "ana"), User(t, s, "bruno")
	conv := direct(t, s, a, b)
	msg := message(t, s, conv, a, "latest", time.Now().UTC())

	require.NoError(t, s.Conversations.SetLatestMessage(ctx, conv.ID, msg.ID))
	got, err := s.Conversations.GetByID(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LatestMessageID)
	assert.Equal(t, msg.ID, *got.LatestMessageID)
	require.NotNil(t, got.LatestMessage)
	assert.Equal(t, "latest", got.LatestMessage.Content)

	require.NoError(t, s.Messages.Delete(ctx, msg.ID))
	got, err = s.Conversations.GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Nil(t, got.LatestMessageID)
	assert.Nil(t, got.LatestMessage)
}

func deleteBySenderOnlyOwn(t *testing.T, s Stores) {
	ctx := context.Background()
	a, b := User(t, s, "ana"), User(t, s, "bruno")
	conv := direct(t, s, a, b)
	now := time.Now().UTC()
	own := message(t, s, conv, a, "mine", now)
	foreign := message(t, s, conv, b, "theirs", now)

	n, err := s.Messages.DeleteBySender(ctx, a.ID, []uuid.UUID{own.ID, foreign.ID, uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	gone, err := s.Messages.GetByID(ctx, own.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	kept, err := s.Messages.GetByID(ctx, foreign.ID)
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func groupMembership(t *testing.T, s Stores) {
	ctx := context.Background()
	admin, b, c, d := User(t, s, "admin"), User(t, s, "bea"), User(t, s, "cid"), User(t, s, "dora")
	now := time.Now().UTC()
	group := domain.Conversation{
		ID:        uuid.New(),
		Name:      "Team",
		IsGroup:   true,
		AdminID:   &admin.ID,
		Members:   []domain.UserSummary{b.Summary(), c.Summary(), admin.Summary()},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.Conversations.Create(ctx, &group))

	require.NoError(t, s.Conversations.AddMember(ctx, group.ID, d.ID))
	require.NoError(t, s.Conversations.RemoveMember(ctx, group.ID, c.ID))
	require.NoError(t, s.Conversations.Rename(ctx, group.ID, "Crew"))

	got, err := s.Conversations.GetByID(ctx, group.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Crew", got.Name)
	assert.True(t, got.IsAdmin(admin.ID))
	assert.True(t, got.HasMember(d.ID))
	assert.False(t, got.HasMember(c.ID))

	listed, err := s.Conversations.ListByUser(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, group.ID, listed[0].ID)

	msg := message(t, s, *got, admin, "bye", time.Now().UTC())
	require.NoError(t, s.Conversations.Delete(ctx, group.ID))

	gone, err := s.Conversations.GetByID(ctx, group.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	orphan, err := s.Messages.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Nil(t, orphan)
}
