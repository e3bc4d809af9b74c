package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another run already owns the cohort.
var ErrLockHeld = errors.New("cohort lock held")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// CohortLockRepository serializes runs per cohort. With a redis client the
// lock is a SET NX PX key shared across instances; without one it falls back
// to an in-process table.
type CohortLockRepository struct {
	client *redis.Client
	ttl    time.Duration

	mu    sync.Mutex
	local map[string]string
}

// NewCohortLockRepository constructs the lock store.
func NewCohortLockRepository(client *redis.Client, ttl time.Duration) *CohortLockRepository {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CohortLockRepository{client: client, ttl: ttl, local: make(map[string]string)}
}

// Acquire takes the lock for key without waiting. The returned release
// function is safe to call more than once.
func (r *CohortLockRepository) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	lockKey := "timetable:lock:" + key

	if r.client == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, held := r.local[lockKey]; held {
			return nil, ErrLockHeld
		}
		r.local[lockKey] = token
		return r.releaseLocal(lockKey, token), nil
	}

	ok, err := r.client.SetNX(ctx, lockKey, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire cohort lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, r.client, []string{lockKey}, token).Err()
		})
	}, nil
}

func (r *CohortLockRepository) releaseLocal(lockKey, token string) func() {
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.local[lockKey] == token {
			delete(r.local, lockKey)
		}
	}
}
