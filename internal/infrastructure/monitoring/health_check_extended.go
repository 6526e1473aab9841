package monitoring

import (
	"context"
	"errors"
	"time"

	"roomlink/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// AddRedisCheck pings the Redis session backend.
func (h *HealthChecker) AddRedisCheck(client *redis.Client, timeout time.Duration) {
	h.AddCheck("redis", func(ctx context.Context) (bool, error) {
		if err := client.Ping(ctx).Err(); err != nil {
			return false, err
		}
		return true, nil
	}, timeout)
}

// AddSessionStorageCheck verifies the persisted session can be read.
func (h *HealthChecker) AddSessionStorageCheck(storage ports.SessionStorage, timeout time.Duration) {
	h.AddCheck("session_storage", func(ctx context.Context) (bool, error) {
		if _, err := storage.Load(ctx); err != nil {
			return false, err
		}
		return true, nil
	}, timeout)
}

// AddSignalingCheck reports whether the signaling channel is up. It is
// optional: a client that is not in a room has no channel.
func (h *HealthChecker) AddSignalingCheck(channel func() ports.SignalingChannel) {
	h.AddOptionalCheck("signaling", func(ctx context.Context) (bool, error) {
		ch := channel()
		if ch == nil {
			return false, errors.New("not connected")
		}
		return ch.Connected(), nil
	}, time.Second)
}
