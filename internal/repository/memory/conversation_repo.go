package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/repository"
)

type ConversationRepo struct {
	s *Store
}

func (r *ConversationRepo) Create(_ context.Context, conv *domain.Conversation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.conversations[conv.ID]; ok {
		return repository.ErrDuplicate
	}

	rec := &conversationRecord{conv: *conv, memberIDs: conv.MemberIDs()}
	rec.conv.Members = nil
	rec.conv.LatestMessage = nil

	if !conv.IsGroup && len(rec.memberIDs) == 2 {
		key := domain.DirectKey(rec.memberIDs[0], rec.memberIDs[1])
		if _, ok := r.s.direct[key]; ok {
			return repository.ErrDuplicate
		}
		rec.directKey = key
		r.s.direct[key] = conv.ID
	}

	r.s.conversations[conv.ID] = rec
	return nil
}

func (r *ConversationRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rec, ok := r.s.conversations[id]
	if !ok {
		return nil, nil
	}
	conv := r.s.populateConversationLocked(rec)
	return &conv, nil
}

func (r *ConversationRepo) FindDirect(_ context.Context, userA, userB uuid.UUID) (*domain.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.direct[domain.DirectKey(userA, userB)]
	if !ok {
		return nil, nil
	}
	conv := r.s.populateConversationLocked(r.s.conversations[id])
	return &conv, nil
}

func (r *ConversationRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var convs []domain.Conversation
	for _, rec := range r.s.conversations {
		for _, id := range rec.memberIDs {
			if id == userID {
				convs = append(convs, r.s.populateConversationLocked(rec))
				break
			}
		}
	}

	sort.Slice(convs, func(i, j int) bool { return convs[i].UpdatedAt.After(convs[j].UpdatedAt) })
	return convs, nil
}

func (r *ConversationRepo) Rename(_ context.Context, id uuid.UUID, name string) error {
	return r.mutate(id, func(rec *conversationRecord) {
		rec.conv.Name = name
	})
}

func (r *ConversationRepo) AddMember(_ context.Context, id, userID uuid.UUID) error {
	return r.mutate(id, func(rec *conversationRecord) {
		for _, m := range rec.memberIDs {
			if m == userID {
				return
			}
		}
		rec.memberIDs = append(rec.memberIDs, userID)
	})
}

func (r *ConversationRepo) RemoveMember(_ context.Context, id, userID uuid.UUID) error {
	return r.mutate(id, func(rec *conversationRecord) {
		kept := rec.memberIDs[:0]
		for _, m := range rec.memberIDs {
			if m != userID {
				kept = append(kept, m)
			}
		}
		rec.memberIDs = kept
	})
}

func (r *ConversationRepo) SetLatestMessage(_ context.Context, id, messageID uuid.UUID) error {
	return r.mutate(id, func(rec *conversationRecord) {
		rec.conv.LatestMessageID = &messageID
	})
}

func (r *ConversationRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.conversations[id]
	if !ok {
		return nil
	}
	if rec.directKey != "" {
		delete(r.s.direct, rec.directKey)
	}
	delete(r.s.conversations, id)

	for msgID, m := range r.s.messages {
		if m.msg.ConversationID == id {
			delete(r.s.messages, msgID)
		}
	}
	return nil
}

// mutate applies fn to an existing record and bumps UpdatedAt. Missing ids are a no-op.
func (r *ConversationRepo) mutate(id uuid.UUID, fn func(rec *conversationRecord)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.conversations[id]
	if !ok {
		return nil
	}
	fn(rec)
	rec.conv.UpdatedAt = r.s.now()
	return nil
}
