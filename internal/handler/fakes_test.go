package handler_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/storefront/messaging/internal/apperr"
	"github.com/storefront/messaging/internal/model"
	"github.com/storefront/messaging/internal/push"
)

type memConvs struct {
	mu     sync.Mutex
	byID   map[string]*model.Conversation
	byPair map[[2]string]string
}

func newMemConvs() *memConvs {
	return &memConvs{byID: map[string]*model.Conversation{}, byPair: map[[2]string]string{}}
}

func (s *memConvs) GetByID(_ context.Context, id string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.byID[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, fmt.Errorf("memConvs.GetByID: %w", apperr.ErrNotFound)
}

func (s *memConvs) FindByPair(_ context.Context, a, b string) (*model.Conversation, error) {
	low, high := model.CanonicalPair(a, b)
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byPair[[2]string{low, high}]; ok {
		cp := *s.byID[id]
		return &cp, nil
	}
	return nil, fmt.Errorf("memConvs.FindByPair: %w", apperr.ErrNotFound)
}

func (s *memConvs) Insert(_ context.Context, a, b string) (*model.Conversation, error) {
	low, high := model.CanonicalPair(a, b)
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]string{low, high}
	if _, ok := s.byPair[key]; ok {
		return nil, fmt.Errorf("memConvs.Insert: %w", apperr.ErrConflict)
	}
	c := &model.Conversation{ID: uuid.NewString(), ParticipantLow: low, ParticipantHigh: high, CreatedAt: time.Now()}
	s.byID[c.ID] = c
	s.byPair[key] = c.ID
	cp := *c
	return &cp, nil
}

func (s *memConvs) ListForUser(_ context.Context, userID string) ([]model.ConversationSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ConversationSummary
	for _, c := range s.byID {
		if c.HasParticipant(userID) {
			out = append(out, model.ConversationSummary{ConversationID: c.ID, Other: model.UserPublic{ID: c.Other(userID)}})
		}
	}
	return out, nil
}

type memMessages struct {
	mu   sync.Mutex
	msgs []*model.Message
}

func (s *memMessages) Create(_ context.Context, m *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = uuid.NewString()
	m.CreatedAt = time.Now()
	cp := *m
	s.msgs = append(s.msgs, &cp)
	return nil
}

func (s *memMessages) ListAndMarkRead(_ context.Context, conversationID, requesterID string) ([]model.Message, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Message
	var marked int64
	for _, m := range s.msgs {
		if m.ConversationID != conversationID {
			continue
		}
		if m.SenderID != requesterID && !m.IsRead {
			m.IsRead = true
			marked++
		}
		out = append(out, *m)
	}
	return out, marked, nil
}

func (s *memMessages) CountUnreadForUser(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.msgs {
		if m.RecipientID == userID && !m.IsRead {
			n++
		}
	}
	return n, nil
}

type memNotifications struct {
	mu    sync.Mutex
	items []*model.Notification
}

func (s *memNotifications) visible(rc model.Recipient, n *model.Notification) bool {
	return n.Recipient == nil || *n.Recipient == rc
}

func (s *memNotifications) Create(_ context.Context, n *model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = uuid.NewString()
	n.CreatedAt = time.Now()
	cp := *n
	s.items = append(s.items, &cp)
	return nil
}

func (s *memNotifications) List(_ context.Context, rc model.Recipient, q model.NotificationQuery) ([]model.Notification, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []model.Notification
	for _, n := range s.items {
		if s.visible(rc, n) {
			all = append(all, *n)
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	from := q.Offset()
	if from > total {
		from = total
	}
	to := from + q.PageSize
	if to > total {
		to = total
	}
	return all[from:to], total, nil
}

func (s *memNotifications) MarkRead(_ context.Context, rc model.Recipient, ids []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var n int64
	for _, it := range s.items {
		if want[it.ID] && it.Recipient != nil && *it.Recipient == rc && !it.IsRead {
			it.IsRead = true
			n++
		}
	}
	return n, nil
}

func (s *memNotifications) CountUnread(_ context.Context, rc model.Recipient) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, it := range s.items {
		if s.visible(rc, it) && !it.IsRead {
			n++
		}
	}
	return n, nil
}

type memUsers struct {
	mu    sync.Mutex
	users map[string]model.UserPublic
}

func (s *memUsers) Upsert(_ context.Context, u *model.UserPublic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = *u
	return nil
}

func (s *memUsers) GetPublic(_ context.Context, id string) (*model.UserPublic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return &u, nil
	}
	return nil, fmt.Errorf("memUsers.GetPublic: %w", apperr.ErrNotFound)
}

type fakeSubscriber struct {
	mu   sync.Mutex
	subs map[string][]string
}

func (f *fakeSubscriber) Subscribe(_ context.Context, userID string, sub push.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[userID] = append(f.subs[userID], sub.Endpoint)
	return nil
}

func (f *fakeSubscriber) Unsubscribe(_ context.Context, userID, endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keep []string
	for _, e := range f.subs[userID] {
		if e != endpoint {
			keep = append(keep, e)
		}
	}
	f.subs[userID] = keep
	return nil
}

func (f *fakeSubscriber) endpoints(userID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.subs[userID]...)
}
