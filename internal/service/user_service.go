package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/repository"
)

const searchLimit = 20

type UserService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// Search matches name or email case-insensitively, never returning the requester.
func (s *UserService) Search(ctx context.Context, requesterID uuid.UUID, query string) ([]domain.UserSummary, error) {
	users, err := s.userRepo.Search(ctx, query, requesterID, searchLimit)
	if err != nil {
		return nil, fmt.Errorf("searching users: %w", err)
	}

	out := make([]domain.UserSummary, len(users))
	for i := range users {
		out[i] = users[i].Summary()
	}
	return out, nil
}
