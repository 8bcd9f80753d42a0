// Package memory is an in-process implementation of the repository contracts.
// It backs STORE_DRIVER=memory and the service and handler tests.
package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/repository"
)

type conversationRecord struct {
	conv      domain.Conversation
	memberIDs []uuid.UUID
	directKey string
}

type messageRecord struct {
	msg domain.Message
	seq uint64
}

// Store holds the shared state behind the three repositories.
type Store struct {
	mu            sync.RWMutex
	users         map[uuid.UUID]domain.User
	emails        map[string]uuid.UUID
	conversations map[uuid.UUID]*conversationRecord
	direct        map[string]uuid.UUID
	messages      map[uuid.UUID]*messageRecord
	seq           uint64
	now           func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:         make(map[uuid.UUID]domain.User),
		emails:        make(map[string]uuid.UUID),
		conversations: make(map[uuid.UUID]*conversationRecord),
		direct:        make(map[string]uuid.UUID),
		messages:      make(map[uuid.UUID]*messageRecord),
		now:           time.Now,
	}
}

func (s *Store) Users() *UserRepo {
	return &UserRepo{s: s}
}

func (s *Store) Conversations() *ConversationRepo {
	return &ConversationRepo{s: s}
}

func (s *Store) Messages() *MessageRepo {
	return &MessageRepo{s: s}
}

// summaryLocked resolves a member. Users that vanished keep their id only.
func (s *Store) summaryLocked(id uuid.UUID) domain.UserSummary {
	u, ok := s.users[id]
	if !ok {
		return domain.UserSummary{ID: id}
	}
	return u.Summary()
}

func (s *Store) populateMessageLocked(rec *messageRecord) domain.Message {
	msg := rec.msg
	sender := s.summaryLocked(msg.SenderID)
	msg.Sender = &sender
	return msg
}

func (s *Store) populateConversationLocked(rec *conversationRecord) domain.Conversation {
	conv := rec.conv
	conv.Members = make([]domain.UserSummary, len(rec.memberIDs))
	for i, id := range rec.memberIDs {
		conv.Members[i] = s.summaryLocked(id)
	}
	if rec.conv.AdminID != nil {
		admin := *rec.conv.AdminID
		conv.AdminID = &admin
	}
	if rec.conv.LatestMessageID != nil {
		latestID := *rec.conv.LatestMessageID
		conv.LatestMessageID = &latestID
		if m, ok := s.messages[latestID]; ok {
			latest := s.populateMessageLocked(m)
			conv.LatestMessage = &latest
		}
	}
	return conv
}

func (s *Store) clearLatestLocked(messageID uuid.UUID) {
	for _, rec := range s.conversations {
		if rec.conv.LatestMessageID != nil && *rec.conv.LatestMessageID == messageID {
			rec.conv.LatestMessageID = nil
		}
	}
}

var (
	_ repository.UserRepository         = (*UserRepo)(nil)
	_ repository.ConversationRepository = (*ConversationRepo)(nil)
	_ repository.MessageRepository      = (*MessageRepo)(nil)
)
