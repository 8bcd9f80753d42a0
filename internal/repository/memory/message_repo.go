package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/repository"
)

type MessageRepo struct {
	s *Store
}

func (r *MessageRepo) Create(_ context.Context, msg *domain.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.messages[msg.ID]; ok {
		return repository.ErrDuplicate
	}

	r.s.seq++
	stored := *msg
	stored.Sender = nil
	stored.Conversation = nil
	r.s.messages[msg.ID] = &messageRecord{msg: stored, seq: r.s.seq}
	return nil
}

func (r *MessageRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rec, ok := r.s.messages[id]
	if !ok {
		return nil, nil
	}
	msg := r.s.populateMessageLocked(rec)
	return &msg, nil
}

// ListByConversation returns up to limit messages older than before, oldest first.
func (r *MessageRepo) ListByConversation(_ context.Context, conversationID uuid.UUID, before *uuid.UUID, limit int) ([]domain.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var cursor uint64
	if before != nil {
		rec, ok := r.s.messages[*before]
		if !ok {
			return nil, nil
		}
		cursor = rec.seq
	}

	var recs []*messageRecord
	for _, rec := range r.s.messages {
		if rec.msg.ConversationID != conversationID {
			continue
		}
		if before != nil && rec.seq >= cursor {
			continue
		}
		recs = append(recs, rec)
	}

	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })
	if limit > 0 && len(recs) > limit {
		recs = recs[len(recs)-limit:]
	}

	messages := make([]domain.Message, len(recs))
	for i, rec := range recs {
		messages[i] = r.s.populateMessageLocked(rec)
	}
	return messages, nil
}

func (r *MessageRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.messages, id)
	r.s.clearLatestLocked(id)
	return nil
}

func (r *MessageRepo) DeleteBySender(_ context.Context, senderID uuid.UUID, ids []uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var deleted int64
	for _, id := range ids {
		rec, ok := r.s.messages[id]
		if !ok || rec.msg.SenderID != senderID {
			continue
		}
		delete(r.s.messages, id)
		r.s.clearLatestLocked(id)
		deleted++
	}
	return deleted, nil
}
