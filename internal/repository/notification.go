package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/storefront/messaging/internal/logger"
	"github.com/storefront/messaging/internal/model"
)

type NotificationRepository struct {
	pool *pgxpool.Pool
}

func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	defer logger.DeferLogDuration("notif.Create", time.Now())()
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	var kind, rid *string
	if n.Recipient != nil {
		k := string(n.Recipient.Kind)
		kind, rid = &k, &n.Recipient.ID
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO notifications (id, recipient_kind, recipient_id, type, content, link)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		n.ID, kind, rid, n.Type, n.Content, n.Link,
	).Scan(&n.CreatedAt)
	if err != nil {
		return classify("notifRepo.Create", err)
	}
	return nil
}

// visibleTo строит WHERE для видимых получателю уведомлений: свои плюс глобальные.
func visibleTo(rc model.Recipient, q model.NotificationQuery) (string, []any) {
	where := []string{"((recipient_kind = $1 AND recipient_id = $2) OR recipient_id IS NULL)"}
	args := []any{string(rc.Kind), rc.ID}
	switch q.Filter {
	case model.FilterUnread:
		where = append(where, "is_read = FALSE")
	case model.FilterRead:
		where = append(where, "is_read = TRUE")
	}
	if q.Category != "" {
		args = append(args, q.Category)
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	return strings.Join(where, " AND "), args
}

// List возвращает страницу видимых rc уведомлений и общее число подходящих строк.
func (r *NotificationRepository) List(ctx context.Context, rc model.Recipient, q model.NotificationQuery) ([]model.Notification, int, error) {
	defer logger.DeferLogDuration("notif.List", time.Now())()
	q.Normalize()
	where, args := visibleTo(rc, q)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, classify("notifRepo.List count", err)
	}

	order := "DESC"
	if q.Sort == model.SortOldest {
		order = "ASC"
	}
	args = append(args, q.PageSize, q.Offset())
	sql := `SELECT id::text, recipient_kind, recipient_id, type, content, link, is_read, created_at
		 FROM notifications WHERE ` + where +
		fmt.Sprintf(` ORDER BY created_at %s, id %s LIMIT $%d OFFSET $%d`, order, order, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, classify("notifRepo.List query", err)
	}
	defer rows.Close()

	items := make([]model.Notification, 0, q.PageSize)
	for rows.Next() {
		var (
			n         model.Notification
			kind, rid *string
		)
		if err := rows.Scan(&n.ID, &kind, &rid, &n.Type, &n.Content, &n.Link, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, 0, classify("notifRepo.List scan", err)
		}
		if kind != nil && rid != nil {
			n.Recipient = &model.Recipient{Kind: model.RecipientKind(*kind), ID: *rid}
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, classify("notifRepo.List rows", err)
	}
	return items, total, nil
}

// MarkRead ставит флаг прочтения на id, принадлежащие rc. Кривые, неизвестные
// и чужие id молча пропускаются.
func (r *NotificationRepository) MarkRead(ctx context.Context, rc model.Recipient, ids []string) (int64, error) {
	defer logger.DeferLogDuration("notif.MarkRead", time.Now())()
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE
		 WHERE id = ANY($1::uuid[]) AND recipient_kind = $2 AND recipient_id = $3 AND is_read = FALSE`,
		valid, string(rc.Kind), rc.ID,
	)
	if err != nil {
		return 0, classify("notifRepo.MarkRead", err)
	}
	return tag.RowsAffected(), nil
}

// CountUnread считает непрочитанные видимые rc уведомления (у глобальных флага прочтения нет).
func (r *NotificationRepository) CountUnread(ctx context.Context, rc model.Recipient) (int, error) {
	defer logger.DeferLogDuration("notif.CountUnread", time.Now())()
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications
		 WHERE is_read = FALSE AND ((recipient_kind = $1 AND recipient_id = $2) OR recipient_id IS NULL)`,
		string(rc.Kind), rc.ID,
	).Scan(&n)
	if err != nil {
		return 0, classify("notifRepo.CountUnread", err)
	}
	return n, nil
}
