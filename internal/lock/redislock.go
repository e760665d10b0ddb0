package lock

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// releaseScript deletes the lock only while this instance still owns it, so a
// holder that lost the key to TTL expiry cannot release someone else's lock.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
end
return 0`

// RedisLock is an advisory named mutex over Redis. Single-attempt acquire,
// owner-checked release, TTL reclaim on crash. No fairness: losers poll the
// protected state themselves.
type RedisLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	owner  string
}

// New builds a lock for a key. Each instance carries its own owner token; two
// instances on the same key contend rather than share.
func New(client *redis.Client, key string, ttl time.Duration) *RedisLock {
	return &RedisLock{
		client: client,
		key:    key,
		ttl:    ttl,
		owner:  uuid.NewString(),
	}
}

// Acquire makes one attempt. True only if this call created the lock.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.owner, l.ttl).Result()
}

// Release frees the lock if this instance still owns it.
func (l *RedisLock) Release(ctx context.Context) (bool, error) {
	res, err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.owner).Result()
	if err != nil {
		return false, err
	}
	n, ok := res.(int64)
	return ok && n == 1, nil
}

// IsLocked reports whether any instance currently holds the lock.
func (l *RedisLock) IsLocked(ctx context.Context) (bool, error) {
	n, err := l.client.Exists(ctx, l.key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
