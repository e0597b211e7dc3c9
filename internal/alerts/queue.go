package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrEmpty is returned by Dequeue when no job arrived before the poll
// timeout. The worker treats it as "sleep and try again".
var ErrEmpty = errors.New("queue empty")

// Delivery is one dequeued job plus the bookkeeping the queue needs to
// ack or redeliver it.
type Delivery struct {
	Job     Job
	Attempt int

	raw string
}

// Queue is the durable at-least-once job queue as the producer and
// worker see it.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Dequeue(ctx context.Context) (*Delivery, error)
	// Ack removes a processed job for good.
	Ack(ctx context.Context, d *Delivery) error
	// Retry returns the job to the pending list for redelivery, or
	// parks it on the dead-letter list once its attempt budget is
	// spent. Either way the in-flight copy is released.
	Retry(ctx context.Context, d *Delivery) error
}

// RedisQueue is a Redis-list queue: LPUSH onto pending, BLMOVE into a
// processing list while in flight (so a crashed worker leaves the job
// recoverable), LREM on ack. Attempt counts live in a hash keyed by
// alert id.
type RedisQueue struct {
	client      *redis.Client
	maxAttempts int

	pendingKey    string
	processingKey string
	attemptsKey   string
	deadKey       string
}

func NewRedisQueue(client *redis.Client, name string, maxAttempts int) *RedisQueue {
	return &RedisQueue{
		client:        client,
		maxAttempts:   maxAttempts,
		pendingKey:    name + ":pending",
		processingKey: name + ":processing",
		attemptsKey:   name + ":attempts",
		deadKey:       name + ":dead",
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.pendingKey, raw).Err()
}

func (q *RedisQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	raw, err := q.client.BLMove(ctx, q.pendingKey, q.processingKey, "RIGHT", "LEFT", 5*time.Second).Result()
	if err == redis.Nil {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, err
	}

	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		// Poison payload: park it rather than loop on it forever.
		q.client.LRem(ctx, q.processingKey, 1, raw)
		q.client.LPush(ctx, q.deadKey, raw)
		return nil, fmt.Errorf("malformed job parked on dead-letter: %w", err)
	}

	attempt, err := q.client.HIncrBy(ctx, q.attemptsKey, job.AlertID, 1).Result()
	if err != nil {
		attempt = 1
	}

	return &Delivery{Job: job, Attempt: int(attempt), raw: raw}, nil
}

func (q *RedisQueue) Ack(ctx context.Context, d *Delivery) error {
	if err := q.client.LRem(ctx, q.processingKey, 1, d.raw).Err(); err != nil {
		return err
	}
	return q.client.HDel(ctx, q.attemptsKey, d.Job.AlertID).Err()
}

func (q *RedisQueue) Retry(ctx context.Context, d *Delivery) error {
	if err := q.client.LRem(ctx, q.processingKey, 1, d.raw).Err(); err != nil {
		return err
	}
	if d.Attempt >= q.maxAttempts {
		if err := q.client.LPush(ctx, q.deadKey, d.raw).Err(); err != nil {
			return err
		}
		return q.client.HDel(ctx, q.attemptsKey, d.Job.AlertID).Err()
	}
	return q.client.LPush(ctx, q.pendingKey, d.raw).Err()
}
