package mongostore

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vedran77/relay/internal/domain"
)

type userDoc struct {
	ID           string    `bson:"_id"`
	Email        string    `bson:"email"`
	Name         string    `bson:"name"`
	PasswordHash string    `bson:"password_hash"`
	AvatarURL    *string   `bson:"avatar_url,omitempty"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func (d userDoc) toDomain() domain.User {
	return domain.User{
		ID:           parseID(d.ID),
		Email:        d.Email,
		Name:         d.Name,
		PasswordHash: d.PasswordHash,
		AvatarURL:    d.AvatarURL,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func (d userDoc) summary() domain.UserSummary {
	return domain.UserSummary{ID: parseID(d.ID), Name: d.Name, Email: d.Email, AvatarURL: d.AvatarURL}
}

type UserRepo struct {
	s     *Store
	users *collection[userDoc]
}

func (r *UserRepo) Create(ctx context.Context, user *domain.User) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	return r.users.insert(ctx, userDoc{
		ID:           user.ID.String(),
		Email:        strings.ToLower(user.Email),
		Name:         user.Name,
		PasswordHash: user.PasswordHash,
		AvatarURL:    user.AvatarURL,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	})
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.getOne(ctx, NewFilter().Eq("_id", id.String()).Build())
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, NewFilter().Eq("email", strings.ToLower(email)).Build())
}

func (r *UserRepo) Search(ctx context.Context, query string, excludeID uuid.UUID, limit int) ([]domain.User, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	f := NewFilter().Ne("_id", excludeID.String())
	if q := strings.TrimSpace(query); q != "" {
		pattern := regexp.QuoteMeta(q)
		f.Or(Contains("name", pattern), Contains("email", pattern))
	}

	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	docs, err := r.users.findAll(ctx, f.Build(), opts)
	if err != nil {
		return nil, err
	}

	users := make([]domain.User, len(docs))
	for i, d := range docs {
		users[i] = d.toDomain()
	}
	return users, nil
}

func (r *UserRepo) getOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	doc, err := r.users.findOne(ctx, filter)
	if err != nil || doc == nil {
		return nil, err
	}
	u := doc.toDomain()
	return &u, nil
}
