package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"roomlink/internal/core/domain"
	"roomlink/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// RedisSessionStorage keeps the session under two keys, "<prefix>:authToken"
// and "<prefix>:currentUser", so several client processes on one host can
// share a login. Keys expire with the token when its expiry is known.
type RedisSessionStorage struct {
	client *redis.Client
	prefix string
}

func NewRedisSessionStorage(client *redis.Client, prefix string) ports.SessionStorage {
	if prefix == "" {
		prefix = "roomlink"
	}
	return &RedisSessionStorage{
		client: client,
		prefix: prefix,
	}
}

func (r *RedisSessionStorage) tokenKey() string {
	return r.prefix + ":authToken"
}

func (r *RedisSessionStorage) userKey() string {
	return r.prefix + ":currentUser"
}

func (r *RedisSessionStorage) Load(ctx context.Context) (*domain.Session, error) {
	values, err := r.client.MGet(ctx, r.tokenKey(), r.userKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load session from Redis: %w", err)
	}

	token, _ := values[0].(string)
	userData, _ := values[1].(string)
	if token == "" || userData == "" {
		return nil, nil
	}

	var user domain.User
	if err := json.Unmarshal([]byte(userData), &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}

	return &domain.Session{Token: token, User: user}, nil
}

func (r *RedisSessionStorage) Save(ctx context.Context, session *domain.Session) error {
	userData, err := json.Marshal(session.User)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	var ttl time.Duration
	if !session.ExpiresAt.IsZero() {
		ttl = time.Until(session.ExpiresAt)
		if ttl <= 0 {
			return errors.New("refusing to store an expired session")
		}
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.tokenKey(), session.Token, ttl)
		pipe.Set(ctx, r.userKey(), userData, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store session in Redis: %w", err)
	}
	return nil
}

func (r *RedisSessionStorage) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.tokenKey(), r.userKey()).Err(); err != nil {
		return fmt.Errorf("failed to clear session in Redis: %w", err)
	}
	return nil
}
