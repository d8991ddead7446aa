// redisstore реализует store.Store поверх Redis — бэкенд для headless-клиентов
// (боты мониторинга, CI-сценарии), у которых нет локальной файловой системы
// с постоянным каталогом. Ключи изолируются префиксом.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Moneyhil/fyp-project/internal/store"
)

// Store — Redis-бэкенд хранилища сессии.
type Store struct {
	rdb    *redis.Client
	prefix string
}

// New создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// Если prefix пустой — используется "bloodlink:session:".
func New(redisURL, prefix string) (*Store, error) {
	const op = "store.redisstore.New"

	if prefix == "" {
		prefix = "bloodlink:session:"
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Store{rdb: rdb, prefix: prefix}, nil
}

func (s *Store) key(k string) string { return s.prefix + k }

// Get возвращает значение по ключу либо store.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	const op = "store.redisstore.Get"

	v, err := s.rdb.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("%s: %w", op, store.ErrNotFound)
		}

		return "", fmt.Errorf("%s: %w", op, err)
	}

	return v, nil
}

// Set сохраняет значение без TTL: временем жизни токенов управляет бэкенд.
func (s *Store) Set(ctx context.Context, key, value string) error {
	const op = "store.redisstore.Set"

	if err := s.rdb.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Remove удаляет ключ; отсутствие ключа — не ошибка.
func (s *Store) Remove(ctx context.Context, key string) error {
	const op = "store.redisstore.Remove"

	if err := s.rdb.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Close закрывает клиент Redis.
func (s *Store) Close() error { return s.rdb.Close() }
