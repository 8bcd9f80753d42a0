package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSendUpdatesLatestAndNotifies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u1, u2 := f.user(t, "ana"), f.user(t, "bruno")
	conv, err := f.chats.AccessDirect(ctx, u1.ID, u2.ID)
	require.NoError(t, err)

	msg, err := f.messages.Send(ctx, u1.ID, conv.ID, "  hi ")
	require.NoError(t, err)
	assert.Equal(t, "hi", msg.Content)
	require.NotNil(t, msg.Sender)
	assert.Equal(t, "ana", msg.Sender.Name)
	require.NotNil(t, msg.Conversation)
	assert.Len(t, msg.Conversation.Members, 2)
	require.NotNil(t, msg.Conversation.LatestMessageID)
	assert.Equal(t, msg.ID, *msg.Conversation.LatestMessageID)

	stored, err := f.store.Conversations().GetByID(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LatestMessageID)
	assert.Equal(t, msg.ID, *stored.LatestMessageID)

	require.Len(t, f.notifier.messages, 1)
	assert.Equal(t, msg.ID, f.notifier.messages[0].ID)
}

func TestSendFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u1, u2, u3 := f.user(t, "ana"), f.user(t, "bruno"), f.user(t, "cata")
	conv, err := f.chats.AccessDirect(ctx, u1.ID, u2.ID)
	require.NoError(t, err)

	_, err = f.messages.Send(ctx, u1.ID, conv.ID, "   ")
	assert.ErrorIs(t, err, ErrEmptyContent)

	_, err = f.messages.Send(ctx, u1.ID, uuid.New(), "hi")
	assert.ErrorIs(t, err, ErrConversationNotFound)

	_, err = f.messages.Send(ctx, u3.ID, conv.ID, "hi")
	assert.ErrorIs(t, err, ErrNotParticipant)
	assert.ErrorIs(t, err, ErrPermission)

	assert.Empty(t, f.notifier.messages)
}

func TestSendRollsBackWhenLatestPointerFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u1, u2 := f.user(t, "ana"), f.user(t, "bruno")
	conv, err := f.chats.AccessDirect(ctx, u1.ID, u2.ID)
	require.NoError(t, err)

	messages := NewMessageService(f.store.Messages(), failingLatestRepo{f.store.Conversations()}, zap.NewNop())
	messages.SetNotifier(f.notifier)

	_, err = messages.Send(ctx, u1.ID, conv.ID, "hi")
	require.Error(t, err)

	stored, err := f.store.Messages().ListByConversation(ctx, conv.ID, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, stored)
	assert.Empty(t, f.notifier.messages)
}

func TestDeleteOne(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u1, u2 := f.user(t, "ana"), f.user(t, "bruno")
	conv, err := f.chats.AccessDirect(ctx, u1.ID, u2.ID)
	require.NoError(t, err)
	msg, err := f.messages.Send(ctx, u1.ID, conv.ID, "hi")
	require.NoError(t, err)

	assert.ErrorIs(t, f.messages.DeleteOne(ctx, u2.ID, msg.ID), ErrNotMessageOwner)
	require.NoError(t, f.messages.DeleteOne(ctx, u1.ID, msg.ID))
	assert.ErrorIs(t, f.messages.DeleteOne(ctx, u1.ID, msg.ID), ErrMessageNotFound)

	stored, err := f.store.Conversations().GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.LatestMessageID)
}

func TestDeleteManyIsSetIntersection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, b := f.user(t, "ana"), f.user(t, "bruno")
	conv, err := f.chats.AccessDirect(ctx, a.ID, b.ID)
	require.NoError(t, err)

	m1, err := f.messages.Send(ctx, a.ID, conv.ID, "one")
	require.NoError(t, err)
	m2, err := f.messages.Send(ctx, b.ID, conv.ID, "two")
	require.NoError(t, err)
	m3, err := f.messages.Send(ctx, a.ID, conv.ID, "three")
	require.NoError(t, err)

	deleted, err := f.messages.DeleteMany(ctx, a.ID, []uuid.UUID{m1.ID, m2.ID, m3.ID, m1.ID, uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	page, err := f.messages.List(ctx, a.ID, conv.ID, nil, 10)
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, m2.ID, page.Messages[0].ID)

	_, err = f.messages.DeleteMany(ctx, a.ID, nil)
	assert.ErrorIs(t, err, ErrNoMessagesSelected)
}

func TestListPaginatesForParticipants(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, b, c := f.user(t, "ana"), f.user(t, "bruno"), f.user(t, "cata")
	conv, err := f.chats.AccessDirect(ctx, a.ID, b.ID)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := f.messages.Send(ctx, a.ID, conv.ID, "m")
		require.NoError(t, err)
	}

	page, err := f.messages.List(ctx, b.ID, conv.ID, nil, 2)
	require.NoError(t, err)
	assert.Len(t, page.Messages, 2)
	assert.True(t, page.HasMore)

	older, err := f.messages.List(ctx, b.ID, conv.ID, &page.Messages[0].ID, 2)
	require.NoError(t, err)
	assert.Len(t, older.Messages, 1)
	assert.False(t, older.HasMore)

	_, err = f.messages.List(ctx, c.ID, conv.ID, nil, 2)
	assert.ErrorIs(t, err, ErrNotParticipant)
}
