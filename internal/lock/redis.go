package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dreamsync/dreamsync-backend/internal/logger"
)

// releaseScript deletes the key only while it still holds our token, so a
// lock that expired and was taken over is never released by the old holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by every process pointed at the same Redis.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	retry  time.Duration
	log    *logger.Logger
}

func NewRedis(client redis.UniversalClient, prefix string, ttl time.Duration, log *logger.Logger) *Redis {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Redis{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		retry:  50 * time.Millisecond,
		log:    log.With("component", "RedisLock"),
	}
}

// Conn opens a Redis client and verifies it answers PING.
func Conn(ctx context.Context, addr, password string, db int, timeout time.Duration) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: timeout,
		Password:    password,
		DB:          db,
	})
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		client.Close()
		return nil, err
	}
	if pong != "PONG" {
		client.Close()
		return nil, fmt.Errorf("expected PONG, got %s", pong)
	}
	return client, nil
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := r.prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(r.retry)
	defer ticker.Stop()
	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("redis lock %s: %w", redisKey, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	return r.unlocker(redisKey, token), nil
}

// unlocker releases redisKey if it still holds token. Failures are logged.
func (r *Redis) unlocker(redisKey, token string) func() {
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.release(releaseCtx, redisKey, token); err != nil {
			r.log.Warn("failed to release lock, it stays held until expiry", "key", redisKey, "ttl", r.ttl, "error", err)
		}
	}
}

func (r *Redis) release(ctx context.Context, redisKey, token string) error {
	if err := releaseScript.Run(ctx, r.client, []string{redisKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis unlock %s: %w", redisKey, err)
	}
	return nil
}
