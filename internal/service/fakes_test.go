package service_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/storefront/messaging/internal/apperr"
	"github.com/storefront/messaging/internal/model"
)

// convStore соблюдает уникальность канонической пары, как настоящая таблица.
type convStore struct {
	mu     sync.Mutex
	byID   map[string]*model.Conversation
	byPair map[[2]string]*model.Conversation

	finds int
	// beforeInsert вызывается в Insert до проверки уникальности, вне лока.
	beforeInsert func(a, b string)
	// dropOnConflict прячет выигравшую строку от повторного поиска.
	dropOnConflict bool
}

func newConvStore() *convStore {
	return &convStore{
		byID:   make(map[string]*model.Conversation),
		byPair: make(map[[2]string]*model.Conversation),
	}
}

func (s *convStore) GetByID(_ context.Context, id string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("convStore.GetByID: %w", apperr.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (s *convStore) FindByPair(_ context.Context, a, b string) (*model.Conversation, error) {
	low, high := model.CanonicalPair(a, b)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finds++
	c, ok := s.byPair[[2]string{low, high}]
	if !ok {
		return nil, fmt.Errorf("convStore.FindByPair: %w", apperr.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (s *convStore) Insert(_ context.Context, a, b string) (*model.Conversation, error) {
	if s.beforeInsert != nil {
		s.beforeInsert(a, b)
	}
	low, high := model.CanonicalPair(a, b)
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]string{low, high}
	if _, ok := s.byPair[key]; ok {
		if s.dropOnConflict {
			delete(s.byPair, key)
		}
		return nil, fmt.Errorf("convStore.Insert: %w", apperr.ErrConflict)
	}
	c := &model.Conversation{ID: uuid.NewString(), ParticipantLow: low, ParticipantHigh: high, CreatedAt: time.Now()}
	s.byPair[key] = c
	s.byID[c.ID] = c
	cp := *c
	return &cp, nil
}

func (s *convStore) ListForUser(_ context.Context, userID string) ([]model.ConversationSummary, error) {
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

func (s *convStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

type messageStore struct {
	mu   sync.Mutex
	msgs []model.Message
	base time.Time
	err  error
}

func newMessageStore() *messageStore {
	return &messageStore{base: time.Unix(1_700_000_000, 0)}
}

func (s *messageStore) Create(_ context.Context, m *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	m.ID = uuid.NewString()
	m.CreatedAt = s.base.Add(time.Duration(len(s.msgs)) * time.Millisecond)
	s.msgs = append(s.msgs, *m)
	return nil
}

func (s *messageStore) ListAndMarkRead(_ context.Context, conversationID, requesterID string) ([]model.Message, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var marked int64
	var out []model.Message
	for i := range s.msgs {
		m := &s.msgs[i]
		if m.ConversationID != conversationID {
			continue
		}
		if m.SenderID != requesterID && !m.IsRead {
			m.IsRead = true
			marked++
		}
		out = append(out, *m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, marked, nil
}

func (s *messageStore) CountUnreadForUser(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	n := 0
	for _, m := range s.msgs {
		if m.RecipientID == userID && !m.IsRead {
			n++
		}
	}
	return n, nil
}

type notificationStore struct {
	mu     sync.Mutex
	items  []model.Notification
	counts int
	err    error
}

func (s *notificationStore) Create(_ context.Context, n *model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	n.ID = uuid.NewString()
	n.CreatedAt = time.Now()
	s.items = append(s.items, *n)
	return nil
}

func (s *notificationStore) visible(rc model.Recipient, n model.Notification) bool {
	return n.Recipient == nil || *n.Recipient == rc
}

func (s *notificationStore) List(_ context.Context, rc model.Recipient, q model.NotificationQuery) ([]model.Notification, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []model.Notification
	for _, n := range s.items {
		if !s.visible(rc, n) {
			continue
		}
		if (q.Filter == model.FilterUnread && n.IsRead) || (q.Filter == model.FilterRead && !n.IsRead) {
			continue
		}
		if q.Category != "" && n.Type != q.Category {
			continue
		}
		all = append(all, n)
	}
	if q.Sort == model.SortNewest {
		for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
			all[i], all[j] = all[j], all[i]
		}
	}
	total := len(all)
	start := q.Offset()
	if start > total {
		start = total
	}
	end := start + q.PageSize
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (s *notificationStore) MarkRead(_ context.Context, rc model.Recipient, ids []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var n int64
	for i := range s.items {
		it := &s.items[i]
		if _, ok := want[it.ID]; !ok || it.Recipient == nil || *it.Recipient != rc || it.IsRead {
			continue
		}
		it.IsRead = true
		n++
	}
	return n, nil
}

func (s *notificationStore) CountUnread(_ context.Context, rc model.Recipient) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts++
	if s.err != nil {
		return 0, s.err
	}
	n := 0
	for _, it := range s.items {
		if s.visible(rc, it) && !it.IsRead {
			n++
		}
	}
	return n, nil
}

func (s *notificationStore) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *notificationStore) countCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(rc model.Recipient, event model.EventType, payload any) int {
	args := m.Called(rc, event, payload)
	return args.Int(0)
}

func (m *mockPublisher) PublishAll(event model.EventType, payload any) int {
	args := m.Called(event, payload)
	return args.Int(0)
}

type pushCall struct {
	userID, title, body string
	data                map[string]string
}

type fakePush struct {
	calls chan pushCall
}

func newFakePush() *fakePush { return &fakePush{calls: make(chan pushCall, 8)} }

func (p *fakePush) Notify(_ context.Context, userID, title, body string, data map[string]string) {
	p.calls <- pushCall{userID: userID, title: title, body: body, data: data}
}

type userDir map[string]model.UserPublic

func (d userDir) GetPublic(_ context.Context, id string) (*model.UserPublic, error) {
	u, ok := d[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &u, nil
}
