package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// scanBatch - COUNT для SCAN при удалении по префиксу.
const scanBatch = 500

type Client struct {
	cli *redis.Client
}

func New(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: cli}, nil
}

// NewFromClient оборачивает уже настроенный клиент (тесты, общий пул).
func NewFromClient(cli *redis.Client) *Client {
	return &Client{cli: cli}
}

func (c *Client) Close() error {
	return c.cli.Close()
}

// Get возвращает значение; отсутствие ключа - не ошибка.
func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.cli.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *Client) Set(ctx context.Context, key, val string, ttl time.Duration) error {
	return c.cli.Set(ctx, key, val, ttl).Err()
}

func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.cli.Del(ctx, keys...).Err()
}

// DeletePrefix собирает ключи полным проходом SCAN MATCH prefix* и только потом удаляет их
// пачками по scanBatch: удаление во время SCAN сдвигает курсор и часть ключей пропускается.
func (c *Client) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	var (
		cursor uint64
		found  []string
	)
	for {
		keys, next, err := c.cli.Scan(ctx, cursor, prefix+"*", scanBatch).Result()
		if err != nil {
			return 0, err
		}
		found = append(found, keys...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	deleted := 0
	for start := 0; start < len(found); start += scanBatch {
		end := start + scanBatch
		if end > len(found) {
			end = len(found)
		}
		n, err := c.cli.Del(ctx, found[start:end]...).Result()
		if err != nil {
			return deleted, err
		}
		deleted += int(n)
	}
	return deleted, nil
}
