package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/repository"
)

type UserRepo struct {
	s *Store
}

func (r *UserRepo) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, ok := r.s.emails[email]; ok {
		return repository.ErrDuplicate
	}
	if _, ok := r.s.users[user.ID]; ok {
		return repository.ErrDuplicate
	}
	r.s.users[user.ID] = *user
	r.s.emails[email] = user.ID
	return nil
}

func (r *UserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.emails[strings.ToLower(email)]
	if !ok {
		return nil, nil
	}
	u := r.s.users[id]
	return &u, nil
}

func (r *UserRepo) Search(_ context.Context, query string, excludeID uuid.UUID, limit int) ([]domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))
	var users []domain.User
	for _, u := range r.s.users {
		if u.ID == excludeID {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(u.Name), q) && !strings.Contains(strings.ToLower(u.Email), q) {
			continue
		}
		users = append(users, u)
	}

	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}
