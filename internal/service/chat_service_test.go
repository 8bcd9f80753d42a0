package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAccessDirectCreatesThenReuses(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u1, u2 := f.user(t, "ana"), f.user(t, "bruno")

	first, err := f.chats.AccessDirect(ctx, u1.ID, u2.ID)
	require.NoError(t, err)
	assert.False(t, first.IsGroup)
	assert.Equal(t, "bruno", first.Name)
	require.Len(t, first.Members, 2)
	assert.Equal(t, u1.ID, first.Members[0].ID)
	assert.Equal(t, u2.ID, first.Members[1].ID)
	assert.Nil(t, first.AdminID)

	again, err := f.chats.AccessDirect(ctx, u1.ID, u2.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	reversed, err := f.chats.AccessDirect(ctx, u2.ID, u1.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, reversed.ID)
}

func TestAccessDirectConcurrentCallsShareOneConversation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u1, u2 := f.user(t, "ana"), f.user(t, "bruno")

	const n = 16
	ids := make([]uuid.UUID, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := u1.ID, u2.ID
			if i%2 == 1 {
				a, b = b, a
			}
			conv, err := f.chats.AccessDirect(ctx, a, b)
			if err == nil {
				ids[i] = conv.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	convs, err := f.chats.ListConversations(ctx, u1.ID)
	require.NoError(t, err)
	assert.Len(t, convs, 1)
}

func TestAccessDirectSurvivesCancelledCaller(t *testing.T) {
	f := newFixture(t)
	u1, u2 := f.user(t, "ana"), f.user(t, "bruno")
	chats := NewChatService(ctxConvRepo{f.store.Conversations()}, f.store.Users(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	conv, err := chats.AccessDirect(ctx, u1.ID, u2.ID)
	require.NoError(t, err)
	assert.Len(t, conv.Members, 2)
}

func TestAccessDirectReturnsLatestMessage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u1, u2 := f.user(t, "ana"), f.user(t, "bruno")

	conv, err := f.chats.AccessDirect(ctx, u1.ID, u2.ID)
	require.NoError(t, err)
	msg, err := f.messages.Send(ctx, u1.ID, conv.ID, "hi")
	require.NoError(t, err)

	again, err := f.chats.AccessDirect(ctx, u2.ID, u1.ID)
	require.NoError(t, err)
	require.NotNil(t, again.LatestMessage)
	assert.Equal(t, msg.ID, again.LatestMessage.ID)
	assert.Equal(t, "ana", again.LatestMessage.Sender.Name)
}

func TestAccessDirectValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u1 := f.user(t, "ana")

	_, err := f.chats.AccessDirect(ctx, u1.ID, u1.ID)
	assert.ErrorIs(t, err, ErrCannotChatSelf)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.chats.AccessDirect(ctx, u1.ID, uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateGroup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u1, u2, u3 := f.user(t, "ana"), f.user(t, "bruno"), f.user(t, "cata")

	conv, err := f.chats.CreateGroup(ctx, u1.ID, CreateGroupInput{Name: "  Team ", UserIDs: []uuid.UUID{u2.ID, u3.ID, u2.ID, u1.ID}})
	require.NoError(t, err)

	assert.True(t, conv.IsGroup)
	assert.Equal(t, "Team", conv.Name)
	require.NotNil(t, conv.AdminID)
	assert.Equal(t, u1.ID, *conv.AdminID)
	require.Len(t, conv.Members, 3)
	assert.Equal(t, u1.ID, conv.Members[2].ID)

	require.Len(t, f.notifier.groups, 1)
	assert.Equal(t, conv.ID, f.notifier.groups[0].ID)
}

func TestCreateGroupValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u1, u2, u3 := f.user(t, "ana"), f.user(t, "bruno"), f.user(t, "cata")

	tests := []struct {
		name  string
		input CreateGroupInput
		want  error
	}{
		{"empty name", CreateGroupInput{Name: " ", UserIDs: []uuid.UUID{u2.ID, u3.ID}}, ErrGroupNameRequired},
		{"one member", CreateGroupInput{Name: "Team", UserIDs: []uuid.UUID{u2.ID}}, ErrTooFewMembers},
		{"creator does not count", CreateGroupInput{Name: "Team", UserIDs: []uuid.UUID{u2.ID, u1.ID}}, ErrTooFewMembers},
		{"unknown member", CreateGroupInput{Name: "Team", UserIDs: []uuid.UUID{u2.ID, uuid.New()}}, ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.chats.CreateGroup(ctx, u1.ID, tt.input)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, f.notifier.groups)
}

func newTeam(t *testing.T, f *fixture) (admin, b, c uuid.UUID, convID uuid.UUID) {
	t.Helper()
	u1, u2, u3 := f.user(t, "ana"), f.user(t, "bruno"), f.user(t, "cata")
	conv, err := f.chats.CreateGroup(context.Background(), u1.ID, CreateGroupInput{Name: "Team", UserIDs: []uuid.UUID{u2.ID, u3.ID}})
	require.NoError(t, err)
	return u1.ID, u2.ID, u3.ID, conv.ID
}

func TestRemoveAdminDeletesGroup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	admin, _, _, convID := newTeam(t, f)

	res, err := f.chats.RemoveMember(ctx, admin, convID, admin)
	require.NoError(t, err)
	assert.True(t, res.Deleted)
	assert.Nil(t, res.Conversation)

	got, err := f.store.Conversations().GetByID(ctx, convID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRemoveLastNonAdminLeavesGroup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	admin, b, c, convID := newTeam(t, f)

	res, err := f.chats.RemoveMember(ctx, admin, convID, b)
	require.NoError(t, err)
	assert.False(t, res.Deleted)
	assert.Len(t, res.Conversation.Members, 2)

	// c leaves on their own.
	res, err = f.chats.RemoveMember(ctx, c, convID, c)
	require.NoError(t, err)
	assert.False(t, res.Deleted)
	require.Len(t, res.Conversation.Members, 1)
	assert.Equal(t, admin, res.Conversation.Members[0].ID)
}

func TestRemoveMemberPermissions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, b, c, convID := newTeam(t, f)

	_, err := f.chats.RemoveMember(ctx, b, convID, c)
	assert.ErrorIs(t, err, ErrNotGroupAdmin)
	assert.ErrorIs(t, err, ErrPermission)

	outsider := f.user(t, "dora")
	_, err = f.chats.RemoveMember(ctx, outsider.ID, convID, outsider.ID)
	assert.ErrorIs(t, err, ErrNotMember)
}

func TestGroupMutationsRequireGroup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u1, u2, u3 := f.user(t, "ana"), f.user(t, "bruno"), f.user(t, "cata")
	direct, err := f.chats.AccessDirect(ctx, u1.ID, u2.ID)
	require.NoError(t, err)

	_, err = f.chats.AddMember(ctx, u1.ID, direct.ID, u3.ID)
	assert.ErrorIs(t, err, ErrNotGroup)
	_, err = f.chats.RenameGroup(ctx, u1.ID, direct.ID, "x")
	assert.ErrorIs(t, err, ErrNotGroup)
	_, err = f.chats.RemoveMember(ctx, u1.ID, direct.ID, u2.ID)
	assert.ErrorIs(t, err, ErrNotGroup)

	_, err = f.chats.RenameGroup(ctx, u1.ID, uuid.New(), "x")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestRenameAndAddMember(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	admin, b, _, convID := newTeam(t, f)
	d := f.user(t, "dora")

	_, err := f.chats.RenameGroup(ctx, b, convID, "Mine")
	assert.ErrorIs(t, err, ErrNotGroupAdmin)

	conv, err := f.chats.RenameGroup(ctx, admin, convID, "Crew")
	require.NoError(t, err)
	assert.Equal(t, "Crew", conv.Name)

	conv, err = f.chats.AddMember(ctx, admin, convID, d.ID)
	require.NoError(t, err)
	assert.True(t, conv.HasMember(d.ID))
	assert.Equal(t, []uuid.UUID{d.ID}, f.notifier.added)

	_, err = f.chats.AddMember(ctx, admin, convID, d.ID)
	assert.ErrorIs(t, err, ErrAlreadyMember)
	_, err = f.chats.AddMember(ctx, b, convID, f.user(t, "eli").ID)
	assert.ErrorIs(t, err, ErrNotGroupAdmin)
}

func TestDeleteGroupAdminOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	admin, b, _, convID := newTeam(t, f)

	assert.ErrorIs(t, f.chats.DeleteGroup(ctx, b, convID), ErrNotGroupAdmin)
	require.NoError(t, f.chats.DeleteGroup(ctx, admin, convID))
	assert.ErrorIs(t, f.chats.DeleteGroup(ctx, admin, convID), ErrConversationNotFound)
}

func TestListConversationsEmpty(t *testing.T) {
	f := newFixture(t)
	convs, err := f.chats.ListConversations(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, convs)
	assert.Empty(t, convs)
}
