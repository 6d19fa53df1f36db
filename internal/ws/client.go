package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/storefront/messaging/internal/logger"
	"github.com/storefront/messaging/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	// DefaultSendBufSize - исходящая очередь соединения; переполнение закрывает соединение.
	DefaultSendBufSize = 256
)

var errMalformed = errors.New("malformed message")

// Client - один живой канал. Жизненный цикл: NewClient -> Hub.Register -> Start -> Close -> Wait.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan OutgoingMessage
	identity model.Recipient

	// rooms защищён hub.mu.
	rooms map[model.Recipient]struct{}

	done   chan struct{}
	cancel context.CancelFunc
	once   sync.Once
	wg     sync.WaitGroup
}

func NewClient(hub *Hub, conn *websocket.Conn, identity model.Recipient, sendBufSize int) *Client {
	if sendBufSize <= 0 {
		sendBufSize = DefaultSendBufSize
	}
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan OutgoingMessage, sendBufSize),
		identity: identity,
		rooms:    make(map[model.Recipient]struct{}),
		done:     make(chan struct{}),
	}
}

func (c *Client) Identity() model.Recipient { return c.identity }

// Start крутит циклы чтения и записи до отмены ctx или обрыва соединения.
func (c *Client) Start(ctx context.Context, cancel context.CancelFunc) {
	c.cancel = cancel
	c.wg.Add(2)
	go c.writePump(ctx)
	go c.readPump(ctx)
}

func (c *Client) Wait() {
	c.wg.Wait()
}

// Close идемпотентен. Закрытие сокета разблокирует оба цикла.
func (c *Client) Close() {
	c.once.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		close(c.done)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

func (c *Client) prepareRead() error {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return c.conn.SetReadDeadline(time.Now().Add(pongWait))
}

// readIncoming возвращает errMalformed для кадра, который не является событием; любая другая
// ошибка значит, что соединения больше нет.
func (c *Client) readIncoming() (IncomingMessage, error) {
	var msg IncomingMessage
	_, r, err := c.conn.NextReader()
	if err != nil {
		return msg, err
	}
	if err := json.NewDecoder(r).Decode(&msg); err != nil {
		return msg, errMalformed
	}
	return msg, nil
}

func (c *Client) readPump(ctx context.Context) {
	defer c.wg.Done()
	defer func() {
		c.hub.Unregister(c)
		c.Close()
	}()

	if err := c.prepareRead(); err != nil {
		logger.Errorf("ws prepare read %s: %v", c.identity.LogKey(), err)
		return
	}
	for ctx.Err() == nil {
		msg, err := c.readIncoming()
		if errors.Is(err, errMalformed) {
			c.hub.sendToClient(c, errorEvent(errMalformed.Error()))
			continue
		}
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warnf("ws read %s: %v", c.identity.LogKey(), err)
			}
			return
		}
		c.hub.HandleMessage(ctx, c, msg)
	}
}

func (c *Client) writeEvent(msg OutgoingMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		// Ошибка payload, а не соединения: событие выбрасываем, канал оставляем.
		logger.Errorf("ws encode %s for %s: %v", msg.Type, c.identity.LogKey(), err)
		return nil
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) writeControl(kind int, data []byte) error {
	return c.conn.WriteControl(kind, data, time.Now().Add(writeWait))
}

func (c *Client) writePump(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.Close()

	for {
		select {
		case <-ctx.Done():
			bye := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			if err := c.writeControl(websocket.CloseMessage, bye); err != nil {
				logger.Debugf("ws close %s: %v", c.identity.LogKey(), err)
			}
			return
		case msg := <-c.send:
			if err := c.writeEvent(msg); err != nil {
				logger.Debugf("ws write %s: %v", c.identity.LogKey(), err)
				return
			}
		case <-ticker.C:
			if err := c.writeControl(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
