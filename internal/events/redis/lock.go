package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ms-events/internal/logger"

	"github.com/go-redis/redis/v8"
)

const lockPrefix = "registration_lock:"

// releaseScript deletes the key only while it still holds our token, so an
// expired lock re-acquired by another request is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Redis struct {
	Client *redis.Client
	TTL    time.Duration
	Logger *logger.Logger
}

func NewRedis(client *redis.Client, ttl time.Duration, log *logger.Logger) *Redis {
	return &Redis{
		Client: client,
		TTL:    ttl,
		Logger: log,
	}
}

func lockKey(eventID, email string) string {
	return fmt.Sprintf("%s%s:%s", lockPrefix, eventID, strings.ToLower(email))
}

// Acquire takes the lock for one (event, email) pair. It reports false
// without error when another request holds it.
func (r *Redis) Acquire(ctx context.Context, eventID, email, token string) (bool, error) {
	ok, err := r.Client.SetNX(ctx, lockKey(eventID, email), token, r.TTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis lock error: %w", err)
	}
	if !ok {
		r.Logger.Debug("REDIS", fmt.Sprintf("Registration lock busy for event %s", eventID))
	}
	return ok, nil
}

// Release frees the lock if token still owns it.
func (r *Redis) Release(ctx context.Context, eventID, email, token string) error {
	err := releaseScript.Run(ctx, r.Client, []string{lockKey(eventID, email)}, token).Err()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("redis unlock error: %w", err)
	}
	return nil
}

// IsLocked reports whether a registration for the pair is in flight.
func (r *Redis) IsLocked(ctx context.Context, eventID, email string) (bool, error) {
	_, err := r.Client.Get(ctx, lockKey(eventID, email)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// NoopLock always grants the lock. Used when Redis is disabled.
type NoopLock struct{}

func (NoopLock) Acquire(context.Context, string, string, string) (bool, error) { return true, nil }

func (NoopLock) Release(context.Context, string, string, string) error { return nil }
