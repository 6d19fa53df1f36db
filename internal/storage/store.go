package storage

import (
	"context"
	"time"
)

// Cache - кеш для счётчиков непрочитанного: get / set с TTL / delete.
// Реализации: redis.Client, memory.Client (для -dev и тестов), Noop (кеш не настроен).
// Любая реализация может быть заменена на Noop: ядро тогда всегда пересчитывает из БД.
type Cache interface {
	Get(ctx context.Context, key string) (val string, ok bool, err error)
	Set(ctx context.Context, key, val string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePrefix удаляет все ключи с префиксом и возвращает их число.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	Close() error
}

// Noop - кеш, все операции которого успешны и ничего не хранят.
type Noop struct{}

func (Noop) Get(context.Context, string) (string, bool, error)        { return "", false, nil }
func (Noop) Set(context.Context, string, string, time.Duration) error { return nil }
func (Noop) Delete(context.Context, ...string) error                  { return nil }
func (Noop) DeletePrefix(context.Context, string) (int, error)        { return 0, nil }
func (Noop) Close() error                                             { return nil }

var _ Cache = Noop{}
