package lock

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dreamsync/dreamsync-backend/internal/logger"
)

func exerciseMutualExclusion(t *testing.T, l Locker, key string) {
	t.Helper()
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Lock(context.Background(), key)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}

func TestLocal_MutualExclusion(t *testing.T) {
	l := NewLocal()
	exerciseMutualExclusion(t, l, "entry-1")
	assert.Equal(t, 0, l.held())
}

func TestLocal_IndependentKeys(t *testing.T) {
	l := NewLocal()
	releaseA, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer releaseA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	releaseB, err := l.Lock(ctx, "b")
	require.NoError(t, err)
	releaseB()
}

func TestLocal_ContextCancelWhileWaiting(t *testing.T) {
	l := NewLocal()
	release, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release() // second call is a no-op
	assert.Equal(t, 0, l.held())
}

func TestRedis_MutualExclusion(t *testing.T) {
	addr := os.Getenv("DREAMSYNC_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("DREAMSYNC_TEST_REDIS_ADDR not set")
	}
	client, err := Conn(context.Background(), addr, os.Getenv("DREAMSYNC_TEST_REDIS_PASSWORD"), 0, 2*time.Second)
	require.NoError(t, err)
	defer client.Close()

	l := NewRedis(client, "dreamsync:test:lock:", 5*time.Second, logger.Nop())
	exerciseMutualExclusion(t, l, uuid.NewString())
}

func TestRedis_ReleaseFailureIsLogged(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	core, logs := observer.New(zapcore.WarnLevel)
	l := NewRedis(client, "dreamsync:test:lock:", time.Second, logger.NewWithCore(core))

	err := l.release(context.Background(), "dreamsync:test:lock:e1", "token")
	require.Error(t, err)

	l.unlocker("dreamsync:test:lock:e1", "token")()

	warnings := logs.FilterMessage("failed to release lock, it stays held until expiry").All()
	require.Len(t, warnings, 1)
	fields := warnings[0].ContextMap()
	assert.Equal(t, "dreamsync:test:lock:e1", fields["key"])
	assert.Contains(t, fields["error"], "redis unlock")
}
