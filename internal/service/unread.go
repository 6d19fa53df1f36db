package service

import (
	"context"
	"strconv"
	"time"

	"github.com/storefront/messaging/internal/apperr"
	"github.com/storefront/messaging/internal/logger"
	"github.com/storefront/messaging/internal/metrics"
	"github.com/storefront/messaging/internal/model"
	"github.com/storefront/messaging/internal/storage"
)

const (
	unreadKeyPrefix = "unread:"
	// lastKnownPrefix не должен начинаться с unreadKeyPrefix: InvalidateAll не трогает последние значения.
	lastKnownPrefix = "unread_last:"

	DefaultUnreadTTL      = 30 * time.Second
	DefaultUnreadStaleTTL = 10 * time.Minute
)

// NotificationCounter считает непрочитанные видимые получателю уведомления, включая глобальные.
type NotificationCounter interface {
	CountUnread(ctx context.Context, rc model.Recipient) (int, error)
}

// MessageCounter считает непрочитанные сообщения пользователю.
type MessageCounter interface {
	CountUnreadForUser(ctx context.Context, userID string) (int, error)
}

// UnreadCounter - cache-aside счётчик непрочитанных. Писатели инвалидируют после
// коммита записи; читатели при промахе пересчитывают и кладут обратно с TTL.
type UnreadCounter struct {
	cache    storage.Cache
	notifs   NotificationCounter
	messages MessageCounter
	ttl      time.Duration
	staleTTL time.Duration
	metrics  *metrics.Metrics
}

func NewUnreadCounter(cache storage.Cache, notifs NotificationCounter, messages MessageCounter, ttl, staleTTL time.Duration, m *metrics.Metrics) *UnreadCounter {
	if cache == nil {
		cache = storage.Noop{}
	}
	if ttl <= 0 {
		ttl = DefaultUnreadTTL
	}
	if staleTTL <= 0 {
		staleTTL = DefaultUnreadStaleTTL
	}
	return &UnreadCounter{
		cache:    cache,
		notifs:   notifs,
		messages: messages,
		ttl:      ttl,
		staleTTL: staleTTL,
		metrics:  m,
	}
}

func unreadKey(rc model.Recipient) string    { return unreadKeyPrefix + rc.Key() }
func lastKnownKey(rc model.Recipient) string { return lastKnownPrefix + rc.Key() }

// Get возвращает счётчик rc. Сбой кэша считается промахом. Если пересчёт упал
// временно, отдаём последнее известное значение, если оно есть.
func (u *UnreadCounter) Get(ctx context.Context, rc model.Recipient) (int, error) {
	if !rc.Valid() {
		return 0, apperr.Unauthorized("no session identity")
	}
	if v, ok, err := u.cache.Get(ctx, unreadKey(rc)); err != nil {
		logger.Warnf("unread: cache get %s: %v", rc.LogKey(), err)
	} else if ok {
		if n, err := strconv.Atoi(v); err == nil {
			u.metrics.CacheHit()
			return n, nil
		}
	}
	u.metrics.CacheMiss()

	n, err := u.Recompute(ctx, rc)
	if err == nil {
		u.store(ctx, rc, n)
		return n, nil
	}
	if !apperr.IsTransient(err) {
		return 0, err
	}
	if v, ok, cerr := u.cache.Get(ctx, lastKnownKey(rc)); cerr == nil && ok {
		if last, perr := strconv.Atoi(v); perr == nil {
			logger.Warnf("unread: serving last known count for %s: %v", rc.LogKey(), err)
			u.metrics.StaleServed()
			return last, nil
		}
	}
	return 0, err
}

// Recompute читает счётчик из БД в обход кэша.
func (u *UnreadCounter) Recompute(ctx context.Context, rc model.Recipient) (int, error) {
	n, err := u.notifs.CountUnread(ctx, rc)
	if err != nil {
		return 0, err
	}
	if rc.IsUser() && u.messages != nil {
		m, err := u.messages.CountUnreadForUser(ctx, rc.ID)
		if err != nil {
			return 0, err
		}
		n += m
	}
	return n, nil
}

func (u *UnreadCounter) store(ctx context.Context, rc model.Recipient, n int) {
	v := strconv.Itoa(n)
	if err := u.cache.Set(ctx, unreadKey(rc), v, u.ttl); err != nil {
		logger.Warnf("unread: cache set %s: %v", rc.LogKey(), err)
	}
	if err := u.cache.Set(ctx, lastKnownKey(rc), v, u.staleTTL); err != nil {
		logger.Warnf("unread: cache set last known %s: %v", rc.LogKey(), err)
	}
}

// Invalidate сбрасывает кэш счётчиков получателей. Ошибки только логируются:
// запись тогда истечёт по TTL.
func (u *UnreadCounter) Invalidate(ctx context.Context, rcs ...model.Recipient) {
	keys := make([]string, 0, len(rcs))
	for _, rc := range rcs {
		if rc.Valid() {
			keys = append(keys, unreadKey(rc))
		}
	}
	if len(keys) == 0 {
		return
	}
	if err := u.cache.Delete(ctx, keys...); err != nil {
		logger.Warnf("unread: invalidate %v: %v", keys, err)
		return
	}
	u.metrics.CacheInvalidated("recipient")
}

// InvalidateAll сбрасывает все счётчики; нужно, когда глобальное уведомление меняет счётчик всем.
func (u *UnreadCounter) InvalidateAll(ctx context.Context) {
	n, err := u.cache.DeletePrefix(ctx, unreadKeyPrefix)
	if err != nil {
		logger.Warnf("unread: invalidate all (removed %d): %v", n, err)
		return
	}
	u.metrics.CacheInvalidated("all")
	logger.Debugf("unread: invalidated %d cached counts", n)
}
