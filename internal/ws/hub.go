package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/storefront/messaging/internal/apperr"
	"github.com/storefront/messaging/internal/logger"
	"github.com/storefront/messaging/internal/metrics"
	"github.com/storefront/messaging/internal/model"
)

var (
	ErrTooManyConnections = errors.New("ws connection limit reached")
	ErrHubStopped         = errors.New("ws hub stopped")
)

// MessageSender сохраняет сообщение и рассылает его в комнату получателя.
type MessageSender interface {
	Send(ctx context.Context, senderID, recipientID, content, mediaRef string) (*model.Message, error)
}

// Hub - роутер рассылки на весь процесс: identity получателя -> множество живых каналов,
// вошедших в его комнату. Комната создаётся при join и удаляется, когда пустеет.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[model.Recipient]map[*Client]struct{}
	clients  map[*Client]struct{}
	maxConns int
	stopped  bool

	// pubMu сериализует публикации: все участники комнаты видят их в порядке вызовов.
	pubMu sync.Mutex

	sender  MessageSender
	metrics *metrics.Metrics

	unregister chan *Client
	// stopping закрывается в начале остановки; завершившиеся после этого циклы не зовут Unregister.
	stopping   chan struct{}
	done       chan struct{}
}

func NewHub(sender MessageSender, maxConns int, m *metrics.Metrics) *Hub {
	if maxConns <= 0 {
		maxConns = 10000
	}
	return &Hub{
		rooms:      make(map[model.Recipient]map[*Client]struct{}),
		clients:    make(map[*Client]struct{}),
		maxConns:   maxConns,
		sender:     sender,
		metrics:    m,
		unregister: make(chan *Client, 64),
		stopping:   make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) shutdown() {
	// Собираем клиентов под локом, I/O под мьютексом НЕ делаем.
	close(h.stopping)
	h.mu.Lock()
	h.stopped = true
	all := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		all = append(all, c)
	}
	h.clients = make(map[*Client]struct{})
	h.rooms = make(map[model.Recipient]map[*Client]struct{})
	h.mu.Unlock()

	for _, c := range all {
		c.Close()
	}
	for _, c := range all {
		c.Wait()
	}
	h.metrics.SetConnections(0)
	h.metrics.SetRooms(0)
}

// Register принимает соединение, ни в какую комнату не добавляя.
func (h *Hub) Register(c *Client) error {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return ErrHubStopped
	}
	if len(h.clients) >= h.maxConns {
		h.mu.Unlock()
		logger.Errorf("ws connection limit reached (%d), rejecting %s", h.maxConns, c.identity.LogKey())
		return ErrTooManyConnections
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.SetConnections(n)
	return nil
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stopping:
	case <-h.done:
	}
}

// removeClient убирает c из всех его комнат и закрывает.
func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	for rc := range c.rooms {
		h.leaveLocked(c, rc)
	}
	conns, rooms := len(h.clients), len(h.rooms)
	h.mu.Unlock()

	// Сетевой I/O вне лока.
	c.Close()
	h.metrics.SetConnections(conns)
	h.metrics.SetRooms(rooms)
}

// Join добавляет c в комнату rc; повторный join ничего не меняет. Снятое с хаба
// соединение войти не может.
func (h *Hub) Join(c *Client, rc model.Recipient) bool {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return false
	}
	room, ok := h.rooms[rc]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[rc] = room
	}
	room[c] = struct{}{}
	c.rooms[rc] = struct{}{}
	rooms := len(h.rooms)
	h.mu.Unlock()
	h.metrics.SetRooms(rooms)
	return true
}

// Leave убирает c только из комнаты rc.
func (h *Hub) Leave(c *Client, rc model.Recipient) {
	h.mu.Lock()
	h.leaveLocked(c, rc)
	rooms := len(h.rooms)
	h.mu.Unlock()
	h.metrics.SetRooms(rooms)
}

// LeaveAll убирает c из всех комнат, соединение остаётся зарегистрированным.
func (h *Hub) LeaveAll(c *Client) {
	h.mu.Lock()
	for rc := range c.rooms {
		h.leaveLocked(c, rc)
	}
	rooms := len(h.rooms)
	h.mu.Unlock()
	h.metrics.SetRooms(rooms)
}

func (h *Hub) leaveLocked(c *Client, rc model.Recipient) {
	delete(c.rooms, rc)
	room, ok := h.rooms[rc]
	if !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, rc)
	}
}

// RoomSize - число живых каналов в комнате rc.
func (h *Hub) RoomSize(rc model.Recipient) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[rc])
}

// Publish ставит событие в очередь каждому каналу комнаты rc (не больше раза на канал)
// и возвращает число принявших. Пустая комната - не ошибка.
func (h *Hub) Publish(rc model.Recipient, event model.EventType, payload any) int {
	defer logger.DeferLogDuration("ws.Publish", time.Now())()
	h.pubMu.Lock()
	defer h.pubMu.Unlock()

	h.mu.RLock()
	room := h.rooms[rc]
	targets := make([]*Client, 0, len(room))
	for c := range room {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	return h.deliver(targets, OutgoingMessage{Type: event, Payload: payload})
}

// PublishAll ставит событие по одному разу каждому каналу, вошедшему хоть в одну комнату.
func (h *Hub) PublishAll(event model.EventType, payload any) int {
	defer logger.DeferLogDuration("ws.PublishAll", time.Now())()
	h.pubMu.Lock()
	defer h.pubMu.Unlock()

	h.mu.RLock()
	seen := make(map[*Client]struct{}, len(h.clients))
	targets := make([]*Client, 0, len(h.clients))
	for _, room := range h.rooms {
		for c := range room {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	return h.deliver(targets, OutgoingMessage{Type: event, Payload: payload})
}

func (h *Hub) deliver(targets []*Client, msg OutgoingMessage) int {
	n := 0
	for _, c := range targets {
		if h.sendToClient(c, msg) {
			n++
		}
	}
	h.metrics.FanoutDelivered(n)
	return n
}

func (h *Hub) sendToClient(c *Client, msg OutgoingMessage) bool {
	select {
	case <-c.done:
		h.metrics.FanoutDropped()
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	case <-c.done:
	default:
		// Backpressure: буфер отправки полон, закрываем медленного клиента.
		logger.Errorf("ws send buffer full, closing slow client %s", c.identity.LogKey())
		c.Close()
	}
	h.metrics.FanoutDropped()
	return false
}

// HandleMessage разбирает входящие сообщения WebSocket.
func (h *Hub) HandleMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	switch msg.Type {
	case model.EventJoin:
		h.handleJoin(c, msg)
	case model.EventLeave:
		h.handleLeave(c, msg)
	case model.EventSendMessage:
		h.handleSendMessage(ctx, c, msg)
	case model.EventPing:
		h.sendToClient(c, OutgoingMessage{Type: model.EventPong, Payload: nil})
	default:
		h.sendToClient(c, errorEvent("unknown event type"))
	}
}

// roomFor определяет комнату для join/leave; соединению доступна только своя.
func roomFor(c *Client, userID string) (model.Recipient, bool) {
	if userID == "" || userID == c.identity.ID {
		return c.identity, true
	}
	return model.Recipient{}, false
}

func (h *Hub) handleJoin(c *Client, msg IncomingMessage) {
	rc, ok := roomFor(c, msg.UserID)
	if !ok {
		h.sendToClient(c, errorEvent("cannot join another recipient's room"))
		return
	}
	if !h.Join(c, rc) {
		// Клиент уже снят с хаба (закрывается) - сообщаем, а не молчим.
		h.sendToClient(c, errorEvent("connection closing"))
		return
	}
	h.sendToClient(c, OutgoingMessage{Type: model.EventJoined, Payload: RoomPayload{Room: rc.Key()}})
}

func (h *Hub) handleLeave(c *Client, msg IncomingMessage) {
	rc, ok := roomFor(c, msg.UserID)
	if !ok {
		h.sendToClient(c, errorEvent("not a member of that room"))
		return
	}
	h.Leave(c, rc)
	h.sendToClient(c, OutgoingMessage{Type: model.EventLeft, Payload: RoomPayload{Room: rc.Key()}})
}

func (h *Hub) handleSendMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	defer logger.DeferLogDuration("ws.handleSendMessage", time.Now())()
	if !c.identity.IsUser() {
		h.sendToClient(c, errorEvent("sign in to send messages"))
		return
	}
	if h.sender == nil {
		h.sendToClient(c, errorEvent("messaging unavailable"))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	m, err := h.sender.Send(ctx, c.identity.ID, msg.RecipientID, msg.Content, msg.MediaRef)
	if err != nil {
		if apperr.HTTPStatus(err) >= 500 {
			logger.Errorf("ws send message from=%s to=%s: %v", c.identity.ID, msg.RecipientID, err)
		}
		h.sendToClient(c, errorEvent(apperr.Message(err)))
		return
	}
	h.sendToClient(c, OutgoingMessage{Type: model.EventMessageSent, Payload: m})
}
