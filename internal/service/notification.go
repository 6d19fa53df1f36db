package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/storefront/messaging/internal/apperr"
	"github.com/storefront/messaging/internal/metrics"
	"github.com/storefront/messaging/internal/model"
)

// MaxMarkReadIDs - предел id в одном запросе mark-read.
const MaxMarkReadIDs = 500

type NotificationStore interface {
	Create(ctx context.Context, n *model.Notification) error
	List(ctx context.Context, rc model.Recipient, q model.NotificationQuery) ([]model.Notification, int, error)
	MarkRead(ctx context.Context, rc model.Recipient, ids []string) (int64, error)
	CountUnread(ctx context.Context, rc model.Recipient) (int, error)
}

// CreateNotificationInput присылает сервис-источник. Recipient nil - глобальное уведомление.
type CreateNotificationInput struct {
	Recipient *model.Recipient
	Type      string
	Content   string
	Link      string
}

type NotificationService struct {
	store   NotificationStore
	unread  *UnreadCounter
	pub     Publisher
	metrics *metrics.Metrics
}

func NewNotificationService(store NotificationStore, unread *UnreadCounter, pub Publisher, m *metrics.Metrics) *NotificationService {
	if pub == nil {
		pub = nopPublisher{}
	}
	return &NotificationService{store: store, unread: unread, pub: pub, metrics: m}
}

// Create сохраняет уведомление, сбрасывает затронутые счётчики (для глобального - все)
// и отправляет live-событие notification.
func (s *NotificationService) Create(ctx context.Context, in CreateNotificationInput) (*model.Notification, error) {
	in.Type = strings.TrimSpace(in.Type)
	if in.Type == "" {
		return nil, apperr.Validation("type required")
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, apperr.Validation("content required")
	}
	if in.Recipient != nil && !in.Recipient.Valid() {
		return nil, apperr.Validation("invalid recipient")
	}

	n := &model.Notification{
		Recipient: in.Recipient,
		Type:      in.Type,
		Content:   in.Content,
		Link:      strings.TrimSpace(in.Link),
	}
	if err := s.store.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("notifService.Create: %w", err)
	}
	s.metrics.NotificationCreated(n.IsGlobal())

	if n.IsGlobal() {
		s.unread.InvalidateAll(ctx)
		s.pub.PublishAll(model.EventNotification, n)
		return n, nil
	}
	s.unread.Invalidate(ctx, *n.Recipient)
	s.pub.Publish(*n.Recipient, model.EventNotification, n)
	return n, nil
}

func (s *NotificationService) List(ctx context.Context, rc model.Recipient, q model.NotificationQuery) (*model.NotificationPage, error) {
	if !rc.Valid() {
		return nil, apperr.Unauthorized("no session identity")
	}
	q.Normalize()
	items, total, err := s.store.List(ctx, rc, q)
	if err != nil {
		return nil, fmt.Errorf("notifService.List: %w", err)
	}
	if items == nil {
		items = []model.Notification{}
	}
	return &model.NotificationPage{
		Items:      items,
		Page:       q.Page,
		TotalPages: model.TotalPages(total, q.PageSize),
	}, nil
}

// MarkRead помечает прочитанными id, принадлежащие rc; чужие и неизвестные молча пропускаются.
func (s *NotificationService) MarkRead(ctx context.Context, rc model.Recipient, ids []string) (int64, error) {
	if !rc.Valid() {
		return 0, apperr.Unauthorized("no session identity")
	}
	if len(ids) == 0 {
		return 0, apperr.Validation("ids required")
	}
	if len(ids) > MaxMarkReadIDs {
		return 0, apperr.Validation("too many ids (max %d)", MaxMarkReadIDs)
	}
	n, err := s.store.MarkRead(ctx, rc, ids)
	if err != nil {
		return 0, fmt.Errorf("notifService.MarkRead: %w", err)
	}
	if n > 0 {
		s.unread.Invalidate(ctx, rc)
	}
	return n, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, rc model.Recipient) (int, error) {
	return s.unread.Get(ctx, rc)
}
