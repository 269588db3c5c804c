package queue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis keeps pending messages in a sorted set scored by due time in
// milliseconds, and dead letters in the list "{name}:dead".
type Redis struct {
	client *redis.Client
	name   string
	policy Policy
}

// NewRedis wraps an existing client; the caller owns its lifetime.
func NewRedis(client *redis.Client, name string, policy Policy) *Redis {
	return &Redis{client: client, name: name, policy: policy}
}

func (q *Redis) deadKey() string { return q.name + ":dead" }

func score(t time.Time) float64 { return float64(t.UnixMilli()) }

func (q *Redis) add(ctx context.Context, msg Message) error {
	member, err := encode(msg)
	if err != nil {
		return err
	}
	if err := q.client.ZAdd(ctx, q.name, redis.Z{Score: score(msg.DueAt), Member: member}).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", msg.SubscriptionID, err)
	}
	return nil
}

func (q *Redis) Enqueue(ctx context.Context, subscriptionID string, delay time.Duration) error {
	return q.add(ctx, newMessage(subscriptionID, time.Now().Add(delay)))
}

func (q *Redis) Claim(ctx context.Context, now time.Time, limit int) ([]Message, error) {
	members, err := q.client.ZRangeByScore(ctx, q.name, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatFloat(score(now), 'f', 0, 64),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("read due messages: %w", err)
	}
	out := make([]Message, 0, len(members))
	for _, m := range members {
		// only the worker whose ZREM succeeds owns the message
		removed, err := q.client.ZRem(ctx, q.name, m).Result()
		if err != nil {
			return out, fmt.Errorf("claim message: %w", err)
		}
		if removed == 0 {
			continue
		}
		msg, err := decode(m)
		if err != nil {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func (q *Redis) Retry(ctx context.Context, msg Message) (bool, error) {
	if q.policy.exhausted(msg) {
		member, err := encode(msg)
		if err != nil {
			return false, err
		}
		if err := q.client.LPush(ctx, q.deadKey(), member).Err(); err != nil {
			return false, fmt.Errorf("dead-letter %s: %w", msg.SubscriptionID, err)
		}
		return true, nil
	}
	msg.Attempt++
	msg.DueAt = time.Now().Add(q.policy.RetryDelay)
	return false, q.add(ctx, msg)
}

func (q *Redis) Purge(ctx context.Context, subscriptionID string) (int, error) {
	members, err := q.client.ZRange(ctx, q.name, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("read queue: %w", err)
	}
	var doomed []any
	for _, m := range members {
		msg, err := decode(m)
		if err != nil || msg.SubscriptionID == subscriptionID {
			doomed = append(doomed, m)
		}
	}
	if len(doomed) == 0 {
		return 0, nil
	}
	n, err := q.client.ZRem(ctx, q.name, doomed...).Result()
	if err != nil {
		return 0, fmt.Errorf("purge %s: %w", subscriptionID, err)
	}
	return int(n), nil
}

func (q *Redis) DeadLetters(ctx context.Context) ([]Message, error) {
	members, err := q.client.LRange(ctx, q.deadKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read dead letters: %w", err)
	}
	out := make([]Message, 0, len(members))
	for _, m := range members {
		if msg, err := decode(m); err == nil {
			out = append(out, msg)
		}
	}
	return out, nil
}
