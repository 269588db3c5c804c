package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/theoremus-urban-solutions/siri-vm-hub/model"
)

const validationErrorPrefix = "validation-error:"

// RedisValidationErrors keeps validation errors as JSON values that expire after ttl.
type RedisValidationErrors struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisValidationErrors wraps an existing client; the caller owns its lifetime.
func NewRedisValidationErrors(client *redis.Client, ttl time.Duration) *RedisValidationErrors {
	return &RedisValidationErrors{client: client, ttl: ttl}
}

func validationErrorKey(subscriptionID, id string) string {
	return validationErrorPrefix + subscriptionID + ":" + id
}

func (r *RedisValidationErrors) AddValidationErrors(ctx context.Context, errs []model.ValidationError) error {
	if len(errs) == 0 {
		return nil
	}
	pipe := r.client.Pipeline()
	for _, e := range errs {
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		ttl := r.ttl
		if !e.ExpiresAt.IsZero() {
			ttl = time.Until(e.ExpiresAt)
		}
		if ttl <= 0 {
			continue
		}
		pipe.Set(ctx, validationErrorKey(e.SubscriptionID, e.ID), data, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store validation errors: %w", err)
	}
	return nil
}

func (r *RedisValidationErrors) ListValidationErrors(ctx context.Context, subscriptionID string) ([]model.ValidationError, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, validationErrorKey(subscriptionID, "*"), 500).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan validation errors: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read validation errors: %w", err)
	}
	out := make([]model.ValidationError, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			// expired between SCAN and MGET
			continue
		}
		var e model.ValidationError
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
