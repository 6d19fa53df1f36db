package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/storefront/messaging/internal/logger"
	"github.com/storefront/messaging/internal/model"
)

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

// Create вставляет m; CreatedAt ставит БД, порядок внутри диалога - (created_at, seq).
func (r *MessageRepository) Create(ctx context.Context, m *model.Message) error {
	defer logger.DeferLogDuration("msg.Create", time.Now())()
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO messages (id, conversation_id, sender_id, content, media_ref)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		m.ID, m.ConversationID, m.SenderID, m.Content, m.MediaRef,
	).Scan(&m.CreatedAt)
	if err != nil {
		return classify("msgRepo.Create", err)
	}
	return nil
}

// ListAndMarkRead в одной транзакции помечает прочитанными сообщения диалога не от requesterID
// и возвращает сообщения диалога по возрастанию.
func (r *MessageRepository) ListAndMarkRead(ctx context.Context, conversationID, requesterID string) ([]model.Message, int64, error) {
	defer logger.DeferLogDuration("msg.ListAndMarkRead", time.Now())()
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, 0, classify("msgRepo.ListAndMarkRead begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE messages SET is_read = TRUE
		 WHERE conversation_id = $1 AND sender_id <> $2 AND is_read = FALSE`,
		conversationID, requesterID,
	)
	if err != nil {
		return nil, 0, classify("msgRepo.ListAndMarkRead update", err)
	}

	rows, err := tx.Query(ctx,
		`SELECT id::text, conversation_id::text, sender_id, content, media_ref, is_read, created_at
		 FROM messages
		 WHERE conversation_id = $1
		 ORDER BY created_at ASC, seq ASC`, conversationID,
	)
	if err != nil {
		return nil, 0, classify("msgRepo.ListAndMarkRead query", err)
	}
	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, 0, classify("msgRepo.ListAndMarkRead commit", err)
	}
	return msgs, tag.RowsAffected(), nil
}

// CountUnreadForUser считает непрочитанные сообщения, адресованные userID (от собеседника).
func (r *MessageRepository) CountUnreadForUser(ctx context.Context, userID string) (int, error) {
	defer logger.DeferLogDuration("msg.CountUnreadForUser", time.Now())()
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages m
		 JOIN conversations c ON c.id = m.conversation_id
		 WHERE (c.participant_low = $1 OR c.participant_high = $1)
		   AND m.sender_id <> $1 AND m.is_read = FALSE`, userID,
	).Scan(&n)
	if err != nil {
		return 0, classify("msgRepo.CountUnreadForUser", err)
	}
	return n, nil
}

func scanMessages(rows pgx.Rows) ([]model.Message, error) {
	defer rows.Close()
	out := make([]model.Message, 0, 32)
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.MediaRef, &m.IsRead, &m.CreatedAt); err != nil {
			return nil, classify("msgRepo scan", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("msgRepo rows", err)
	}
	return out, nil
}

