package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vedran77/relay/internal/domain"
)

const conversationColumns = "c.id, c.is_group, c.name, c.admin_id, c.latest_message_id, c.created_at, c.updated_at"

type ConversationRepo struct {
	pool *pgxpool.Pool
}

func NewConversationRepo(pool *pgxpool.Pool) *ConversationRepo {
	return &ConversationRepo{pool: pool}
}

// Create stores the conversation and its member list in one transaction.
// A second direct conversation for the same pair fails with ErrDuplicate.
func (r *ConversationRepo) Create(ctx context.Context, conv *domain.Conversation) error {
	var directKey *string
	if !conv.IsGroup && len(conv.Members) == 2 {
		key := domain.DirectKey(conv.Members[0].ID, conv.Members[1].ID)
		directKey = &key
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO conversations (id, is_group, name, admin_id, direct_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		conv.ID, conv.IsGroup, conv.Name, conv.AdminID, directKey, conv.CreatedAt, conv.UpdatedAt,
	)
	if err != nil {
		return mapError(err)
	}

	batch := &pgx.Batch{}
	for i, m := range conv.Members {
		batch.Queue(`INSERT INTO conversation_members (conversation_id, user_id, position) VALUES ($1, $2, $3)`, conv.ID, m.ID, i)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return mapError(err)
	}

	return tx.Commit(ctx)
}

func (r *ConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	return r.getOne(ctx, `SELECT `+conversationColumns+` FROM conversations c WHERE c.id = $1`, id)
}

func (r *ConversationRepo) FindDirect(ctx context.Context, userA, userB uuid.UUID) (*domain.Conversation, error) {
	return r.getOne(ctx, `SELECT `+conversationColumns+` FROM conversations c WHERE c.direct_key = $1`, domain.DirectKey(userA, userB))
}

// ListByUser returns the user's conversations, most recently updated first.
func (r *ConversationRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations c
		JOIN conversation_members cm ON cm.conversation_id = c.id
		WHERE cm.user_id = $1
		ORDER BY c.updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []domain.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.hydrate(ctx, convs); err != nil {
		return nil, err
	}
	return convs, nil
}

func (r *ConversationRepo) Rename(ctx context.Context, id uuid.UUID, name string) error {
	_, err := r.pool.Exec(ctx, `UPDATE conversations SET name = $1, updated_at = now() WHERE id = $2`, name, id)
	return err
}

func (r *ConversationRepo) AddMember(ctx context.Context, id, userID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO conversation_members (conversation_id, user_id, position)
		SELECT $1, $2, COALESCE(MAX(position), -1) + 1 FROM conversation_members WHERE conversation_id = $1
		ON CONFLICT DO NOTHING`, id, userID)
	if err != nil {
		return err
	}
	if err := touch(ctx, tx, id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *ConversationRepo) RemoveMember(ctx context.Context, id, userID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM conversation_members WHERE conversation_id = $1 AND user_id = $2`, id, userID); err != nil {
		return err
	}
	if err := touch(ctx, tx, id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *ConversationRepo) SetLatestMessage(ctx context.Context, id, messageID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE conversations SET latest_message_id = $1, updated_at = now() WHERE id = $2`, messageID, id)
	return err
}

// Delete removes the conversation. Members and messages cascade.
func (r *ConversationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	return err
}

func (r *ConversationRepo) getOne(ctx context.Context, query string, arg any) (*domain.Conversation, error) {
	conv, err := scanConversation(r.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	convs := []domain.Conversation{conv}
	if err := r.hydrate(ctx, convs); err != nil {
		return nil, err
	}
	return &convs[0], nil
}

// hydrate fills Members and LatestMessage for a page of conversations using
// one query each.
func (r *ConversationRepo) hydrate(ctx context.Context, convs []domain.Conversation) error {
	if len(convs) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(convs))
	index := make(map[uuid.UUID]int, len(convs))
	var latestIDs []uuid.UUID
	for i := range convs {
		ids[i] = convs[i].ID
		index[convs[i].ID] = i
		convs[i].Members = []domain.UserSummary{}
		if convs[i].LatestMessageID != nil {
			latestIDs = append(latestIDs, *convs[i].LatestMessageID)
		}
	}

	rows, err := r.pool.Query(ctx, `
		SELECT cm.conversation_id, u.id, u.name, u.email, u.avatar_url
		FROM conversation_members cm
		JOIN users u ON u.id = cm.user_id
		WHERE cm.conversation_id = ANY($1)
		ORDER BY cm.conversation_id, cm.position`, ids)
	if err != nil {
		return fmt.Errorf("loading members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var convID uuid.UUID
		var m domain.UserSummary
		if err := rows.Scan(&convID, &m.ID, &m.Name, &m.Email, &m.AvatarURL); err != nil {
			return err
		}
		i := index[convID]
		convs[i].Members = append(convs[i].Members, m)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if len(latestIDs) == 0 {
		return nil
	}

	latest, err := listMessagesByIDs(ctx, r.pool, latestIDs)
	if err != nil {
		return fmt.Errorf("loading latest messages: %w", err)
	}
	for i := range convs {
		if convs[i].LatestMessageID == nil {
			continue
		}
		if msg, ok := latest[*convs[i].LatestMessageID]; ok {
			convs[i].LatestMessage = &msg
		}
	}
	return nil
}

func touch(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	_, err := tx.Exec(ctx, `UPDATE conversations SET updated_at = now() WHERE id = $1`, id)
	return err
}

func scanConversation(row pgx.Row) (domain.Conversation, error) {
	var c domain.Conversation
	err := row.Scan(&c.ID, &c.IsGroup, &c.Name, &c.AdminID, &c.LatestMessageID, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}
