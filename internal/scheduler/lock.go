package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "outreach:lock:"

// ErrLocked is returned when another run of the same task holds the lock.
var ErrLocked = errors.New("task is already running")

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// TaskLock serializes a task across processes with SET NX PX.
type TaskLock struct {
	rdb *redis.Client
}

func NewTaskLock(rdb *redis.Client) *TaskLock {
	return &TaskLock{rdb: rdb}
}

// Do runs fn while holding the lock for name. The lock expires after ttl even
// if the holder dies. ErrLocked is returned without running fn when it is taken.
func (l *TaskLock) Do(ctx context.Context, name string, ttl time.Duration, fn func(ctx context.Context) error) error {
	key := lockKeyPrefix + name
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire %s lock: %w", name, err)
	}
	if !ok {
		return ErrLocked
	}
	defer func() {
		_ = releaseScript.Run(context.WithoutCancel(ctx), l.rdb, []string{key}, token).Err()
	}()

	return fn(ctx)
}
