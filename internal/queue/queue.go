package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	readyKey   = "billrelay:jobs"
	delayedKey = "billrelay:jobs:delayed"
)

// Job is one sync attempt for a billing record. RealmID may be empty (default
// connection); Attempt starts at 1.
type Job struct {
	ID      string `json:"id"`
	BillID  string `json:"bill_id"`
	RealmID string `json:"realm_id,omitempty"`
	Attempt int    `json:"attempt"`
}

// Queue is a durable Redis-backed work queue: a list for ready jobs and a
// sorted set for delayed retries, scored by their due time.
type Queue struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Queue {
	return &Queue{rdb: rdb}
}

// Enqueue pushes a job ready for immediate execution.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Attempt == 0 {
		job.Attempt = 1
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("error encoding job: %w", err)
	}
	return q.rdb.LPush(ctx, readyKey, string(payload)).Err()
}

// EnqueueIn schedules a job to become ready after delay.
func (q *Queue) EnqueueIn(ctx context.Context, job Job, delay time.Duration) error {
	if delay <= 0 {
		return q.Enqueue(ctx, job)
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("error encoding job: %w", err)
	}
	due := time.Now().Add(delay).Unix()
	return q.rdb.ZAdd(ctx, delayedKey, &redis.Z{Score: float64(due), Member: payload}).Err()
}

// Dequeue blocks up to timeout for the next ready job. Returns nil with no
// error when the wait times out.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	res, err := q.rdb.BRPop(ctx, timeout, readyKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply of length %d", len(res))
	}

	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("error decoding job: %w", err)
	}
	return &job, nil
}

// promoteScript moves due members from the delayed set onto the ready list in
// one atomic step, so concurrent promoters across replicas cannot push the
// same job twice.
const promoteScript = `local due = redis.call("zrangebyscore", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, ARGV[2])
for _, job in ipairs(due) do
	redis.call("lpush", KEYS[2], job)
	redis.call("zrem", KEYS[1], job)
end
return #due`

// MoveDue promotes delayed jobs whose due time has passed onto the ready list.
func (q *Queue) MoveDue(ctx context.Context, now time.Time, batch int64) error {
	return q.rdb.Eval(ctx, promoteScript, []string{delayedKey, readyKey}, now.Unix(), batch).Err()
}

// Ping reports whether the queue backend is reachable, for the webhook's
// 503 path.
func (q *Queue) Ping(ctx context.Context) error {
	return q.rdb.Ping(ctx).Err()
}
