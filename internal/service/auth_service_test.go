package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vedran77/relay/internal/auth"
	"github.com/vedran77/relay/internal/repository/memory"
)

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := NewAuthService(store.Users(), "secret", zap.NewNop())

	resp, err := svc.Register(ctx, RegisterInput{Name: "Ana", Email: " Ana@Example.com", Password: "Passw0rdX"})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", resp.User.Email)
	assert.NotEmpty(t, resp.User.PasswordHash)

	id, err := auth.ParseToken(resp.AccessToken, []byte("secret"))
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, id)

	_, err = svc.Register(ctx, RegisterInput{Name: "Ana 2", Email: "ana@example.com", Password: "Passw0rdX"})
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.ErrorIs(t, err, ErrConflict)

	login, err := svc.Login(ctx, LoginInput{Email: "ANA@example.com", Password: "Passw0rdX"})
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, login.User.ID)

	_, err = svc.Login(ctx, LoginInput{Email: "ana@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCreds)
	_, err = svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "Passw0rdX"})
	assert.ErrorIs(t, err, ErrInvalidCreds)
}

func TestUserSearch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "ana")
	f.user(t, "anabel")

	svc := NewUserService(f.store.Users())
	users, err := svc.Search(ctx, a.ID, "ana")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "anabel", users[0].Name)
}
