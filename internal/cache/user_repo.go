package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/repository"
)

const userKeyPrefix = "relay:user:"

// cachedUser is the stored form. Password hashes never leave the database.
type cachedUser struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserRepo puts a read-through cache in front of GetByID. Everything else,
// including GetByEmail which needs the password hash, goes straight to next.
// Cache failures degrade to the underlying repository.
type UserRepo struct {
	repository.UserRepository
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

var _ repository.UserRepository = (*UserRepo)(nil)

func NewUserRepo(next repository.UserRepository, c Cache, ttl time.Duration, logger *zap.Logger) *UserRepo {
	return &UserRepo{UserRepository: next, cache: c, ttl: ttl, logger: logger.Named("user_cache")}
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	key := userKeyPrefix + id.String()

	raw, err := r.cache.Get(ctx, key)
	switch {
	case err == nil:
		var cu cachedUser
		if jsonErr := json.Unmarshal([]byte(raw), &cu); jsonErr == nil {
			return &domain.User{
				ID:        cu.ID,
				Email:     cu.Email,
				Name:      cu.Name,
				AvatarURL: cu.AvatarURL,
				CreatedAt: cu.CreatedAt,
				UpdatedAt: cu.UpdatedAt,
			}, nil
		}
		r.logger.Warn("dropping corrupt cache entry", zap.String("key", key))
	case !errors.Is(err, ErrMiss):
		r.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	}

	user, err := r.UserRepository.GetByID(ctx, id)
	if err != nil || user == nil {
		return user, err
	}

	data, err := json.Marshal(cachedUser{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		AvatarURL: user.AvatarURL,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	})
	if err == nil {
		if err := r.cache.Set(ctx, key, string(data), r.ttl); err != nil {
			r.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		}
	}
	return user, nil
}
