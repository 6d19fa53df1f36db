// Package stream - поток счётчика уведомлений: цикл на клиента, который
// периодически читает счётчик непрочитанных и отправляет его при изменении.
package stream

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/storefront/messaging/internal/apperr"
	"github.com/storefront/messaging/internal/logger"
	"github.com/storefront/messaging/internal/metrics"
	"github.com/storefront/messaging/internal/model"
)

const (
	DefaultBaseInterval = 5 * time.Second
	DefaultIdleInterval = 10 * time.Second
	DefaultIdleAfter    = 1
	// MaxDisplayCount ограничивает отправляемый счётчик; больше - показываем это значение.
	MaxDisplayCount = 99
)

// CountFunc возвращает текущий счётчик непрочитанных rc.
type CountFunc func(ctx context.Context, rc model.Recipient) (int, error)

// EventWriter пишет одно именованное событие и сбрасывает его клиенту.
type EventWriter interface {
	WriteEvent(event model.EventType, data string) error
}

type Config struct {
	BaseInterval time.Duration
	IdleInterval time.Duration
	// IdleAfter - число тиков подряд без изменений, после которого
	// включается интервал простоя.
	IdleAfter int
}

func (c *Config) normalize() {
	if c.BaseInterval <= 0 {
		c.BaseInterval = DefaultBaseInterval
	}
	if c.IdleInterval <= 0 {
		c.IdleInterval = DefaultIdleInterval
	}
	if c.IdleInterval < c.BaseInterval {
		c.IdleInterval = c.BaseInterval
	}
	if c.IdleAfter <= 0 {
		c.IdleAfter = DefaultIdleAfter
	}
}

type Notifier struct {
	cfg     Config
	count   CountFunc
	metrics *metrics.Metrics
}

func NewNotifier(cfg Config, count CountFunc, m *metrics.Metrics) *Notifier {
	cfg.normalize()
	return &Notifier{cfg: cfg, count: count, metrics: m}
}

func (n *Notifier) Config() Config { return n.cfg }

type state int

const (
	stateConnected state = iota
	stateClosed
)

// session - состояние одного потока. lastSent = -1 до первой отправки.
type session struct {
	state     state
	lastSent  int
	unchanged int
}

// Display обрезает счётчик для показа.
func Display(count int) int {
	if count > MaxDisplayCount {
		return MaxDisplayCount
	}
	if count < 0 {
		return 0
	}
	return count
}

// observe запоминает счётчик тика и говорит, надо ли его отправить.
func (s *session) observe(count int) bool {
	v := Display(count)
	if v == s.lastSent {
		s.unchanged++
		return false
	}
	s.lastSent = v
	s.unchanged = 0
	return true
}

func (n *Notifier) interval(s *session) time.Duration {
	if s.unchanged >= n.cfg.IdleAfter {
		return n.cfg.IdleInterval
	}
	return n.cfg.BaseInterval
}

// Serve ведёт поток для rc до отмены ctx или ошибки записи. Без валидной identity
// пишет одно событие error и выходит. Первый тик - сразу.
func (n *Notifier) Serve(ctx context.Context, rc model.Recipient, w EventWriter) error {
	if !rc.Valid() {
		n.metrics.StreamEvent(string(model.EventError))
		return w.WriteEvent(model.EventError, "unauthorized")
	}
	n.metrics.StreamOpened()
	defer n.metrics.StreamClosed()

	s := &session{state: stateConnected, lastSent: -1}
	timer := time.NewTimer(0)
	defer timer.Stop()

	for s.state == stateConnected {
		select {
		case <-ctx.Done():
			s.state = stateClosed
			continue
		case <-timer.C:
		}

		if err := n.tick(ctx, rc, s, w); err != nil {
			s.state = stateClosed
			if ctx.Err() == nil {
				return err
			}
			continue
		}
		timer.Reset(n.interval(s))
	}
	return nil
}

func (n *Notifier) tick(ctx context.Context, rc model.Recipient, s *session, w EventWriter) error {
	count, err := n.count(ctx, rc)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, apperr.ErrUnauthorized) || errors.Is(err, apperr.ErrForbidden) {
			n.metrics.StreamEvent(string(model.EventError))
			if werr := w.WriteEvent(model.EventError, apperr.Message(err)); werr != nil {
				return werr
			}
			return err
		}
		// Временные сбои пропускают тик; поток остаётся открытым, счётчик считается прежним.
		logger.Warnf("stream: count for %s: %v", rc.LogKey(), err)
		s.unchanged++
		return nil
	}
	if !s.observe(count) {
		return nil
	}
	n.metrics.StreamEvent(string(model.EventNotificationCount))
	return w.WriteEvent(model.EventNotificationCount, strconv.Itoa(s.lastSent))
}
