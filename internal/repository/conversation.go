package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/storefront/messaging/internal/apperr"
	"github.com/storefront/messaging/internal/logger"
	"github.com/storefront/messaging/internal/model"
)

type ConversationRepository struct {
	pool *pgxpool.Pool
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{pool: pool}
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*model.Conversation, error) {
	defer logger.DeferLogDuration("conv.GetByID", time.Now())()
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("convRepo.GetByID: %w", ErrNotFound)
	}
	c := &model.Conversation{}
	err := r.pool.QueryRow(ctx,
		`SELECT id::text, participant_low, participant_high, created_at
		 FROM conversations WHERE id = $1`, id,
	).Scan(&c.ID, &c.ParticipantLow, &c.ParticipantHigh, &c.CreatedAt)
	if err != nil {
		return nil, classify("convRepo.GetByID", err)
	}
	return c, nil
}

// FindByPair ищет диалог по канонической паре; порядок аргументов не важен.
func (r *ConversationRepository) FindByPair(ctx context.Context, a, b string) (*model.Conversation, error) {
	defer logger.DeferLogDuration("conv.FindByPair", time.Now())()
	low, high := model.CanonicalPair(a, b)
	c := &model.Conversation{}
	err := r.pool.QueryRow(ctx,
		`SELECT id::text, participant_low, participant_high, created_at
		 FROM conversations WHERE participant_low = $1 AND participant_high = $2`,
		low, high,
	).Scan(&c.ID, &c.ParticipantLow, &c.ParticipantHigh, &c.CreatedAt)
	if err != nil {
		return nil, classify("convRepo.FindByPair", err)
	}
	return c, nil
}

// Insert создаёт диалог для пары. Если параллельная вставка той же пары успела раньше,
// уникальный индекс гасит нашу и возвращается ErrConflict.
func (r *ConversationRepository) Insert(ctx context.Context, a, b string) (*model.Conversation, error) {
	defer logger.DeferLogDuration("conv.Insert", time.Now())()
	low, high := model.CanonicalPair(a, b)
	c := &model.Conversation{
		ID:              uuid.New().String(),
		ParticipantLow:  low,
		ParticipantHigh: high,
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO conversations (id, participant_low, participant_high, created_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (participant_low, participant_high) DO NOTHING
		 RETURNING created_at`,
		c.ID, low, high,
	).Scan(&c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("convRepo.Insert: %w", apperr.ErrConflict)
	}
	if err != nil {
		return nil, classify("convRepo.Insert", err)
	}
	return c, nil
}

// ListForUser - по одной сводке на диалог userID, сначала самые свежие.
func (r *ConversationRepository) ListForUser(ctx context.Context, userID string) ([]model.ConversationSummary, error) {
	defer logger.DeferLogDuration("conv.ListForUser", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT c.id::text, o.other_id, COALESCE(u.username, ''), COALESCE(u.avatar_url, ''),
		        lm.content, lm.media_ref, lm.created_at,
		        (SELECT COUNT(*) FROM messages m
		          WHERE m.conversation_id = c.id AND m.sender_id <> $1 AND m.is_read = FALSE)
		 FROM conversations c
		 CROSS JOIN LATERAL (
		     SELECT CASE WHEN c.participant_low = $1 THEN c.participant_high ELSE c.participant_low END AS other_id
		 ) o
		 LEFT JOIN users u ON u.id = o.other_id
		 LEFT JOIN LATERAL (
		     SELECT m.content, m.media_ref, m.created_at
		     FROM messages m
		     WHERE m.conversation_id = c.id
		     ORDER BY m.created_at DESC, m.seq DESC
		     LIMIT 1
		 ) lm ON TRUE
		 WHERE c.participant_low = $1 OR c.participant_high = $1
		 ORDER BY lm.created_at DESC NULLS LAST, c.created_at DESC`, userID,
	)
	if err != nil {
		return nil, classify("convRepo.ListForUser query", err)
	}
	defer rows.Close()

	out := make([]model.ConversationSummary, 0, 16)
	for rows.Next() {
		var (
			s        model.ConversationSummary
			content  *string
			mediaRef *string
		)
		if err := rows.Scan(&s.ConversationID, &s.Other.ID, &s.Other.Username, &s.Other.AvatarURL,
			&content, &mediaRef, &s.LastMessageAt, &s.UnreadCount); err != nil {
			return nil, classify("convRepo.ListForUser scan", err)
		}
		if content != nil {
			s.LastMessage = *content
		}
		if mediaRef != nil {
			s.LastMediaRef = *mediaRef
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("convRepo.ListForUser rows", err)
	}
	return out, nil
}
