package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"dietdash/internal/cache"
	"dietdash/internal/model"
)

const provisioningRetryKey = "provisioning:retry"

// RetryQueue holds provisioning retries until the worker picks them up.
type RetryQueue interface {
	Enqueue(ctx context.Context, retry model.ProvisioningRetry) error
	// Dequeue returns nil, nil when the queue is empty.
	Dequeue(ctx context.Context) (*model.ProvisioningRetry, error)
}

// CorruptRetryError reports a queued record that could not be decoded. The
// record has already been removed from the queue.
type CorruptRetryError struct {
	Payload string
	Err     error
}

func (e *CorruptRetryError) Error() string {
	return fmt.Sprintf("unmarshal provisioning retry: %v", e.Err)
}

func (e *CorruptRetryError) Unwrap() error { return e.Err }

type redisRetryQueue struct {
	cache *cache.Client
}

// NewRedisRetryQueue keeps retries in a Redis list so they survive restarts
// and outages of the SQL store.
func NewRedisRetryQueue(cache *cache.Client) RetryQueue {
	return &redisRetryQueue{cache: cache}
}

func (q *redisRetryQueue) Enqueue(ctx context.Context, retry model.ProvisioningRetry) error {
	payload, err := json.Marshal(retry)
	if err != nil {
		return fmt.Errorf("marshal provisioning retry: %w", err)
	}
	return q.cache.Push(ctx, provisioningRetryKey, payload)
}

func (q *redisRetryQueue) Dequeue(ctx context.Context) (*model.ProvisioningRetry, error) {
	data, err := q.cache.Pop(ctx, provisioningRetryKey)
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, nil
		}
		return nil, err
	}
	var retry model.ProvisioningRetry
	if err := json.Unmarshal(data, &retry); err != nil {
		return nil, &CorruptRetryError{Payload: string(data), Err: err}
	}
	return &retry, nil
}
