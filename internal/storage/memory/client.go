package memory

import (
	"context"
	"strings"
	"sync"
	"time"
)

type item struct {
	val string
	exp time.Time
}

// Client - кеш в памяти процесса с ленивым истечением TTL.
type Client struct {
	mu    sync.RWMutex
	items map[string]item
	now   func() time.Time
}

func New() *Client {
	return &Client{items: make(map[string]item), now: time.Now}
}

// NewWithClock - для тестов с управляемым временем.
func NewWithClock(now func() time.Time) *Client {
	c := New()
	c.now = now
	return c
}

func (c *Client) Close() error { return nil }

func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.RLock()
	v, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if !v.exp.IsZero() && !c.now().Before(v.exp) {
		c.mu.Lock()
		if cur, still := c.items[key]; still && cur.exp.Equal(v.exp) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return "", false, nil
	}
	return v.val, true, nil
}

func (c *Client) Set(ctx context.Context, key, val string, ttl time.Duration) error {
	var exp time.Time
	if ttl > 0 {
		exp = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.items[key] = item{val: val, exp: exp}
	c.mu.Unlock()
	return nil
}

func (c *Client) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	for _, k := range keys {
		delete(c.items, k)
	}
	c.mu.Unlock()
	return nil
}

func (c *Client) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.items {
		if strings.HasPrefix(k, prefix) {
			delete(c.items, k)
			n++
		}
	}
	return n, nil
}

// Len - число хранимых ключей, включая ещё не вычищенные просроченные.
func (c *Client) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
