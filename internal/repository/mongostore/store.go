// Package mongostore implements the repository contracts on MongoDB. Ids are
// stored as canonical uuid strings in _id.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/vedran77/relay/internal/repository"
)

const (
	usersCollection         = "users"
	conversationsCollection = "conversations"
	messagesCollection      = "messages"
	countersCollection      = "counters"

	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 10 * time.Second
)

type Store struct {
	db     *mongo.Database
	logger *zap.Logger
}

func NewStore(db *mongo.Database, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger.Named("mongo")}
}

func (s *Store) Users() *UserRepo {
	return &UserRepo{s: s, users: newCollection[userDoc](s.db, usersCollection)}
}

func (s *Store) Conversations() *ConversationRepo {
	return &ConversationRepo{s: s, convs: newCollection[conversationDoc](s.db, conversationsCollection)}
}

func (s *Store) Messages() *MessageRepo {
	return &MessageRepo{s: s, messages: newCollection[messageDoc](s.db, messagesCollection)}
}

// EnsureIndexes creates the unique and lookup indexes the repos rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	indexes := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "name", Value: 1}}},
		},
		conversationsCollection: {
			{Keys: bson.D{{Key: "direct_key", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
			{Keys: bson.D{{Key: "member_ids", Value: 1}, {Key: "updated_at", Value: -1}}},
		},
		messagesCollection: {
			{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "seq", Value: -1}}},
		},
	}

	for coll, models := range indexes {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("creating %s indexes: %w", coll, err)
		}
	}
	return nil
}

// nextSeq returns a strictly increasing sequence number for name.
func (s *Store) nextSeq(ctx context.Context, name string) (int64, error) {
	var counter struct {
		Value int64 `bson:"value"`
	}
	err := s.db.Collection(countersCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"value": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, err
	}
	return counter.Value, nil
}

// summaries loads the users behind ids. Users that vanished are missing from the map.
func (s *Store) summaries(ctx context.Context, ids []string) (map[string]userDoc, error) {
	out := make(map[string]userDoc, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	users, err := newCollection[userDoc](s.db, usersCollection).findAll(ctx, NewFilter().In("_id", ids).Build())
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

// collection provides the typed CRUD subset the repos use.
type collection[T any] struct {
	c *mongo.Collection
}

func newCollection[T any](db *mongo.Database, name string) *collection[T] {
	return &collection[T]{c: db.Collection(name)}
}

// findOne returns (nil, nil) when nothing matches.
func (r *collection[T]) findOne(ctx context.Context, filter bson.M) (*T, error) {
	var result T
	err := r.c.FindOne(ctx, filter).Decode(&result)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *collection[T]) findAll(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := r.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []T
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *collection[T]) insert(ctx context.Context, doc T) error {
	_, err := r.c.InsertOne(ctx, doc)
	return mapError(err)
}

func ensureTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hadDeadline := ctx.Deadline(); hadDeadline {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func mapError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrDuplicate
	}
	return err
}

func idString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// parseID converts a stored id. Corrupt ids come back as uuid.Nil.
func parseID(s string) uuid.UUID {
	id, _ := uuid.Parse(s)
	return id
}

func parseIDPtr(s *string) *uuid.UUID {
	if s == nil {
		return nil
	}
	id := parseID(*s)
	return &id
}

var (
	_ repository.UserRepository         = (*UserRepo)(nil)
	_ repository.ConversationRepository = (*ConversationRepo)(nil)
	_ repository.MessageRepository      = (*MessageRepo)(nil)
)
