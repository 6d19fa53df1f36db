package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/storefront/messaging/internal/apperr"
	"github.com/storefront/messaging/internal/logger"
	"github.com/storefront/messaging/internal/metrics"
	"github.com/storefront/messaging/internal/model"
)

// MaxContentLength - максимальная длина текста сообщения в рунах.
const MaxContentLength = 5000

type ConversationStore interface {
	GetByID(ctx context.Context, id string) (*model.Conversation, error)
	FindByPair(ctx context.Context, a, b string) (*model.Conversation, error)
	Insert(ctx context.Context, a, b string) (*model.Conversation, error)
	ListForUser(ctx context.Context, userID string) ([]model.ConversationSummary, error)
}

type MessageStore interface {
	Create(ctx context.Context, m *model.Message) error
	ListAndMarkRead(ctx context.Context, conversationID, requesterID string) ([]model.Message, int64, error)
	CountUnreadForUser(ctx context.Context, userID string) (int, error)
}

type UserDirectory interface {
	GetPublic(ctx context.Context, id string) (*model.UserPublic, error)
}

// Publisher доставляет событие во все живые каналы комнаты получателя и возвращает,
// скольким каналам оно поставлено. Не возвращает ошибок.
type Publisher interface {
	Publish(rc model.Recipient, event model.EventType, payload any) int
	PublishAll(event model.EventType, payload any) int
}

// PushNotifier отправляет пуш-уведомления получателю без живого канала.
type PushNotifier interface {
	Notify(ctx context.Context, userID, title, body string, data map[string]string)
}

type nopPublisher struct{}

func (nopPublisher) Publish(model.Recipient, model.EventType, any) int { return 0 }
func (nopPublisher) PublishAll(model.EventType, any) int               { return 0 }

type publisherHolder struct{ p Publisher }

// MessageService: поиск диалогов, список сообщений и отправка.
type MessageService struct {
	convs    ConversationStore
	messages MessageStore
	users    UserDirectory
	unread   *UnreadCounter
	push     PushNotifier
	metrics  *metrics.Metrics
	pub      atomic.Pointer[publisherHolder]
}

func NewMessageService(convs ConversationStore, messages MessageStore, users UserDirectory, unread *UnreadCounter, push PushNotifier, m *metrics.Metrics) *MessageService {
	s := &MessageService{
		convs:    convs,
		messages: messages,
		users:    users,
		unread:   unread,
		push:     push,
		metrics:  m,
	}
	s.SetPublisher(nil)
	return s
}

// SetPublisher подключает роутер рассылки. Роутер сам зависит от сервиса (входящие
// send_message), поэтому подключается после создания.
func (s *MessageService) SetPublisher(p Publisher) {
	if p == nil {
		p = nopPublisher{}
	}
	s.pub.Store(&publisherHolder{p: p})
}

func (s *MessageService) publisher() Publisher {
	return s.pub.Load().p
}

// GetOrCreate возвращает диалог неупорядоченной пары (a, b), создавая его при первом
// контакте. Параллельная вставка той же пары приходит как конфликт, после чего пару
// ищем ещё ровно один раз.
func (s *MessageService) GetOrCreate(ctx context.Context, a, b string) (*model.Conversation, error) {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return nil, apperr.Validation("recipient_id required")
	}
	if a == b {
		return nil, apperr.Validation("cannot start a conversation with yourself")
	}

	c, err := s.convs.FindByPair(ctx, a, b)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("msgService.GetOrCreate find: %w", err)
	}

	c, err = s.convs.Insert(ctx, a, b)
	if err == nil {
		logger.Debugf("conversation %s created for %s/%s", c.ID, c.ParticipantLow, c.ParticipantHigh)
		return c, nil
	}
	if !errors.Is(err, apperr.ErrConflict) {
		return nil, fmt.Errorf("msgService.GetOrCreate insert: %w", err)
	}

	c, err = s.convs.FindByPair(ctx, a, b)
	if err != nil {
		if apperr.IsTransient(err) {
			return nil, fmt.Errorf("msgService.GetOrCreate retry: %w", err)
		}
		return nil, fmt.Errorf("msgService.GetOrCreate retry: %w (%v)", apperr.ErrConflict, err)
	}
	return c, nil
}

func (s *MessageService) ListConversations(ctx context.Context, userID string) ([]model.ConversationSummary, error) {
	if userID == "" {
		return nil, apperr.Unauthorized("no session identity")
	}
	items, err := s.convs.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("msgService.ListConversations: %w", err)
	}
	if items == nil {
		items = []model.ConversationSummary{}
	}
	return items, nil
}

// participantConversation загружает диалог и проверяет, что userID в нём участвует.
func (s *MessageService) participantConversation(ctx context.Context, conversationID, userID string) (*model.Conversation, error) {
	if userID == "" {
		return nil, apperr.Unauthorized("no session identity")
	}
	c, err := s.convs.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound("conversation not found")
		}
		return nil, err
	}
	if !c.HasParticipant(userID) {
		return nil, apperr.Forbidden("not a participant of this conversation")
	}
	return c, nil
}

// ListMessages возвращает сообщения диалога от старых к новым и помечает прочитанными
// все, что не от requesterID. Кэш счётчика запросившего сбрасывается, если
// что-то изменилось.
func (s *MessageService) ListMessages(ctx context.Context, conversationID, requesterID string) ([]model.Message, error) {
	c, err := s.participantConversation(ctx, conversationID, requesterID)
	if err != nil {
		return nil, err
	}
	msgs, marked, err := s.messages.ListAndMarkRead(ctx, c.ID, requesterID)
	if err != nil {
		return nil, fmt.Errorf("msgService.ListMessages: %w", err)
	}
	if marked > 0 {
		s.unread.Invalidate(ctx, model.UserRecipient(requesterID))
	}
	other := c.Other(requesterID)
	for i := range msgs {
		if msgs[i].SenderID == requesterID {
			msgs[i].RecipientID = other
		} else {
			msgs[i].RecipientID = requesterID
		}
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	return msgs, nil
}

func validateBody(content, mediaRef string) error {
	if strings.TrimSpace(content) == "" && strings.TrimSpace(mediaRef) == "" {
		return apperr.Validation("content or media_ref required")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return apperr.Validation("content exceeds %d characters", MaxContentLength)
	}
	return nil
}

// Append сохраняет сообщение в существующий диалог, сбрасывает кэш счётчика
// получателя и рассылает сообщение в его комнату.
func (s *MessageService) Append(ctx context.Context, conversationID, senderID, content, mediaRef string) (*model.Message, error) {
	if err := validateBody(content, mediaRef); err != nil {
		return nil, err
	}
	c, err := s.participantConversation(ctx, conversationID, senderID)
	if err != nil {
		return nil, err
	}
	return s.appendTo(ctx, c, senderID, content, mediaRef)
}

// Send находит диалог отправителя и получателя (создаёт при первом контакте) и вызывает Append.
func (s *MessageService) Send(ctx context.Context, senderID, recipientID, content, mediaRef string) (*model.Message, error) {
	if senderID == "" {
		return nil, apperr.Unauthorized("no session identity")
	}
	if err := validateBody(content, mediaRef); err != nil {
		return nil, err
	}
	c, err := s.GetOrCreate(ctx, senderID, recipientID)
	if err != nil {
		return nil, err
	}
	return s.appendTo(ctx, c, senderID, content, mediaRef)
}

func (s *MessageService) appendTo(ctx context.Context, c *model.Conversation, senderID, content, mediaRef string) (*model.Message, error) {
	m := &model.Message{
		ConversationID: c.ID,
		SenderID:       senderID,
		RecipientID:    c.Other(senderID),
		Content:        content,
		MediaRef:       strings.TrimSpace(mediaRef),
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("msgService.Append: %w", err)
	}
	s.metrics.MessageSent()

	recipient := model.UserRecipient(m.RecipientID)
	s.unread.Invalidate(ctx, recipient)
	if delivered := s.publisher().Publish(recipient, model.EventNewMessage, m); delivered == 0 {
		s.notifyOffline(m)
	}
	return m, nil
}

func (s *MessageService) notifyOffline(m *model.Message) {
	if s.push == nil {
		return
	}
	body := m.Content
	if body == "" {
		body = "Attachment"
	}
	if utf8.RuneCountInString(body) > 120 {
		body = string([]rune(body)[:117]) + "..."
	}
	data := map[string]string{"conversation_id": m.ConversationID, "message_id": m.ID}
	go func(senderID, recipientID string) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		title := "New message"
		if s.users != nil {
			if u, err := s.users.GetPublic(ctx, senderID); err == nil && u.Username != "" {
				title = u.Username
			}
		}
		s.push.Notify(ctx, recipientID, title, body, data)
	}(m.SenderID, m.RecipientID)
}
