package mongostore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vedran77/relay/internal/domain"
)

type messageDoc struct {
	ID             string    `bson:"_id"`
	Seq            int64     `bson:"seq"`
	ConversationID string    `bson:"conversation_id"`
	SenderID       string    `bson:"sender_id"`
	Content        string    `bson:"content"`
	CreatedAt      time.Time `bson:"created_at"`
}

type MessageRepo struct {
	s        *Store
	messages *collection[messageDoc]
}

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	seq, err := r.s.nextSeq(ctx, messagesCollection)
	if err != nil {
		return fmt.Errorf("allocating sequence: %w", err)
	}

	return r.messages.insert(ctx, messageDoc{
		ID:             msg.ID.String(),
		Seq:            seq,
		ConversationID: msg.ConversationID.String(),
		SenderID:       msg.SenderID.String(),
		Content:        msg.Content,
		CreatedAt:      msg.CreatedAt,
	})
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	doc, err := r.messages.findOne(ctx, NewFilter().Eq("_id", id.String()).Build())
	if err != nil || doc == nil {
		return nil, err
	}

	msgs, err := r.populate(ctx, []messageDoc{*doc})
	if err != nil {
		return nil, err
	}
	return &msgs[0], nil
}

// ListByConversation returns up to limit messages older than before, oldest first.
func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID uuid.UUID, before *uuid.UUID, limit int) ([]domain.Message, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	f := NewFilter().Eq("conversation_id", conversationID.String())
	if before != nil {
		cursor, err := r.messages.findOne(ctx, NewFilter().Eq("_id", before.String()).Build())
		if err != nil {
			return nil, err
		}
		if cursor == nil {
			return nil, nil
		}
		f.Lt("seq", cursor.Seq)
	}

	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	docs, err := r.messages.findAll(ctx, f.Build(), opts)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(docs)-1; i < j; i, j = i+1, j-1 {
		docs[i], docs[j] = docs[j], docs[i]
	}
	return r.populate(ctx, docs)
}

func (r *MessageRepo) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	if _, err := r.messages.c.DeleteOne(ctx, NewFilter().Eq("_id", id.String()).Build()); err != nil {
		return err
	}
	return r.clearLatest(ctx, []string{id.String()})
}

func (r *MessageRepo) DeleteBySender(ctx context.Context, senderID uuid.UUID, ids []uuid.UUID) (int64, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := NewFilter().Eq("sender_id", senderID.String()).In("_id", idStrings(ids)).Build()

	owned, err := r.messages.findAll(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return 0, err
	}
	if len(owned) == 0 {
		return 0, nil
	}

	ownedIDs := make([]string, len(owned))
	for i, d := range owned {
		ownedIDs[i] = d.ID
	}

	res, err := r.messages.c.DeleteMany(ctx, NewFilter().In("_id", ownedIDs).Build())
	if err != nil {
		return 0, err
	}
	if err := r.clearLatest(ctx, ownedIDs); err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// clearLatest unsets latest-message pointers to any of ids.
func (r *MessageRepo) clearLatest(ctx context.Context, ids []string) error {
	_, err := r.s.db.Collection(conversationsCollection).UpdateMany(ctx,
		NewFilter().In("latest_message_id", ids).Build(),
		bson.M{"$unset": bson.M{"latest_message_id": ""}},
	)
	return err
}

func (r *MessageRepo) byIDs(ctx context.Context, ids []string) (map[string]domain.Message, error) {
	out := make(map[string]domain.Message, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	docs, err := r.messages.findAll(ctx, NewFilter().In("_id", ids).Build())
	if err != nil {
		return nil, err
	}
	msgs, err := r.populate(ctx, docs)
	if err != nil {
		return nil, err
	}
	for i, d := range docs {
		out[d.ID] = msgs[i]
	}
	return out, nil
}

// populate converts documents and resolves each sender.
func (r *MessageRepo) populate(ctx context.Context, docs []messageDoc) ([]domain.Message, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	senderIDs := make([]string, 0, len(docs))
	for _, d := range docs {
		senderIDs = append(senderIDs, d.SenderID)
	}
	users, err := r.s.summaries(ctx, senderIDs)
	if err != nil {
		return nil, fmt.Errorf("loading senders: %w", err)
	}

	msgs := make([]domain.Message, len(docs))
	for i, d := range docs {
		sender := domain.UserSummary{ID: parseID(d.SenderID)}
		if u, ok := users[d.SenderID]; ok {
			sender = u.summary()
		}
		msgs[i] = domain.Message{
			ID:             parseID(d.ID),
			ConversationID: parseID(d.ConversationID),
			SenderID:       parseID(d.SenderID),
			Content:        d.Content,
			CreatedAt:      d.CreatedAt,
			Sender:         &sender,
		}
	}
	return msgs, nil
}
