// Package lock serializes turns of one session across server instances.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dtroode/telcoassist-server/internal/logger"
	"github.com/dtroode/telcoassist-server/internal/model"
)

var _ model.SessionLocker = (*RedisLocker)(nil)

// releaseScript deletes the lock only if it still carries our token.
// KEYS[1] = lock key
// ARGV[1] = token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

const pollInterval = 50 * time.Millisecond

// RedisLocker is a SET NX PX lock keyed by session id.
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	wait   time.Duration
	logger *logger.Logger
}

// NewRedisLocker creates a locker. Locks expire after ttl so a crashed
// holder cannot block a session forever; Acquire waits up to wait.
func NewRedisLocker(client redis.UniversalClient, ttl, wait time.Duration, logger *logger.Logger) *RedisLocker {
	return &RedisLocker{
		client: client,
		ttl:    ttl,
		wait:   wait,
		logger: logger,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, sessionID string) (func(), error) {
	key := fmt.Sprintf("session_lock:%s", sessionID)
	token := uuid.NewString()

	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire session lock: %w", err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, model.ErrLockHeld
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}

	return func() { l.release(key, token) }, nil
}

// release runs on its own context because the turn context may already be
// cancelled. A failed release leaves the key to expire after ttl.
func (l *RedisLocker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
		l.logger.Error("RedisLocker: failed to release session lock",
			"key", key,
			"ttl", l.ttl.String(),
			"error", err.Error())
	}
}

// Noop is used when no lock service is configured; turns rely on
// conditional writes alone.
type Noop struct{}

var _ model.SessionLocker = Noop{}

func (Noop) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}
