package mongostore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/vedran77/relay/internal/domain"
)

type conversationDoc struct {
	ID              string    `bson:"_id"`
	IsGroup         bool      `bson:"is_group"`
	Name            string    `bson:"name"`
	AdminID         *string   `bson:"admin_id,omitempty"`
	MemberIDs       []string  `bson:"member_ids"`
	LatestMessageID *string   `bson:"latest_message_id,omitempty"`
	DirectKey       *string   `bson:"direct_key,omitempty"`
	CreatedAt       time.Time `bson:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at"`
}

type ConversationRepo struct {
	s     *Store
	convs *collection[conversationDoc]
}

func (r *ConversationRepo) Create(ctx context.Context, conv *domain.Conversation) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	doc := conversationDoc{
		ID:        conv.ID.String(),
		IsGroup:   conv.IsGroup,
		Name:      conv.Name,
		AdminID:   idString(conv.AdminID),
		MemberIDs: idStrings(conv.MemberIDs()),
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
	}
	if !conv.IsGroup && len(conv.Members) == 2 {
		key := domain.DirectKey(conv.Members[0].ID, conv.Members[1].ID)
		doc.DirectKey = &key
	}

	return r.convs.insert(ctx, doc)
}

func (r *ConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	return r.getOne(ctx, NewFilter().Eq("_id", id.String()).Build())
}

func (r *ConversationRepo) FindDirect(ctx context.Context, userA, userB uuid.UUID) (*domain.Conversation, error) {
	return r.getOne(ctx, NewFilter().Eq("direct_key", domain.DirectKey(userA, userB)).Build())
}

func (r *ConversationRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	docs, err := r.convs.findAll(ctx,
		NewFilter().Eq("member_ids", userID.String()).Build(),
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}
	return r.hydrate(ctx, docs)
}

func (r *ConversationRepo) Rename(ctx context.Context, id uuid.UUID, name string) error {
	return r.update(ctx, id, bson.M{"$set": bson.M{"name": name}})
}

func (r *ConversationRepo) AddMember(ctx context.Context, id, userID uuid.UUID) error {
	return r.update(ctx, id, bson.M{"$addToSet": bson.M{"member_ids": userID.String()}})
}

func (r *ConversationRepo) RemoveMember(ctx context.Context, id, userID uuid.UUID) error {
	return r.update(ctx, id, bson.M{"$pull": bson.M{"member_ids": userID.String()}})
}

func (r *ConversationRepo) SetLatestMessage(ctx context.Context, id, messageID uuid.UUID) error {
	return r.update(ctx, id, bson.M{"$set": bson.M{"latest_message_id": messageID.String()}})
}

// Delete removes the conversation's messages first, then the conversation.
func (r *ConversationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	res, err := r.s.db.Collection(messagesCollection).DeleteMany(ctx, NewFilter().Eq("conversation_id", id.String()).Build())
	if err != nil {
		return fmt.Errorf("deleting messages: %w", err)
	}
	if _, err := r.convs.c.DeleteOne(ctx, NewFilter().Eq("_id", id.String()).Build()); err != nil {
		return err
	}

	r.s.logger.Debug("conversation deleted",
		zap.String("conversation_id", id.String()),
		zap.Int64("messages_deleted", res.DeletedCount),
	)
	return nil
}

// update applies change and bumps updated_at. Missing ids are a no-op.
func (r *ConversationRepo) update(ctx context.Context, id uuid.UUID, change bson.M) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	set, _ := change["$set"].(bson.M)
	if set == nil {
		set = bson.M{}
		change["$set"] = set
	}
	set["updated_at"] = time.Now()

	_, err := r.convs.c.UpdateOne(ctx, NewFilter().Eq("_id", id.String()).Build(), change)
	return err
}

func (r *ConversationRepo) getOne(ctx context.Context, filter bson.M) (*domain.Conversation, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	doc, err := r.convs.findOne(ctx, filter)
	if err != nil || doc == nil {
		return nil, err
	}

	convs, err := r.hydrate(ctx, []conversationDoc{*doc})
	if err != nil {
		return nil, err
	}
	return &convs[0], nil
}

// hydrate resolves members and latest messages for a page of documents.
func (r *ConversationRepo) hydrate(ctx context.Context, docs []conversationDoc) ([]domain.Conversation, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	var userIDs, latestIDs []string
	for _, d := range docs {
		userIDs = append(userIDs, d.MemberIDs...)
		if d.LatestMessageID != nil {
			latestIDs = append(latestIDs, *d.LatestMessageID)
		}
	}

	users, err := r.s.summaries(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("loading members: %w", err)
	}

	latest, err := r.s.Messages().byIDs(ctx, latestIDs)
	if err != nil {
		return nil, fmt.Errorf("loading latest messages: %w", err)
	}

	convs := make([]domain.Conversation, len(docs))
	for i, d := range docs {
		conv := domain.Conversation{
			ID:              parseID(d.ID),
			IsGroup:         d.IsGroup,
			Name:            d.Name,
			AdminID:         parseIDPtr(d.AdminID),
			Members:         make([]domain.UserSummary, len(d.MemberIDs)),
			LatestMessageID: parseIDPtr(d.LatestMessageID),
			CreatedAt:       d.CreatedAt,
			UpdatedAt:       d.UpdatedAt,
		}
		for j, id := range d.MemberIDs {
			if u, ok := users[id]; ok {
				conv.Members[j] = u.summary()
			} else {
				conv.Members[j] = domain.UserSummary{ID: parseID(id)}
			}
		}
		if d.LatestMessageID != nil {
			if msg, ok := latest[*d.LatestMessageID]; ok {
				conv.LatestMessage = &msg
			}
		}
		convs[i] = conv
	}
	return convs, nil
}
