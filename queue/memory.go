package queue

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Queue.
type Memory struct {
	mu      sync.Mutex
	pending []Message
	dead    []Message
	policy  Policy
	now     func() time.Time
}

// NewMemory returns an empty in-memory queue.
func NewMemory(policy Policy) *Memory {
	return &Memory{policy: policy, now: time.Now}
}

func (q *Memory) Enqueue(_ context.Context, subscriptionID string, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, newMessage(subscriptionID, q.now().Add(delay)))
	return nil
}

func (q *Memory) Claim(_ context.Context, now time.Time, limit int) ([]Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	sort.SliceStable(q.pending, func(i, j int) bool { return q.pending[i].DueAt.Before(q.pending[j].DueAt) })
	var out []Message
	rest := q.pending[:0]
	for _, msg := range q.pending {
		if len(out) < limit && !msg.DueAt.After(now) {
			out = append(out, msg)
			continue
		}
		rest = append(rest, msg)
	}
	q.pending = rest
	return out, nil
}

func (q *Memory) Retry(_ context.Context, msg Message) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.policy.exhausted(msg) {
		q.dead = append([]Message{msg}, q.dead...)
		return true, nil
	}
	msg.Attempt++
	msg.DueAt = q.now().Add(q.policy.RetryDelay)
	q.pending = append(q.pending, msg)
	return false, nil
}

func (q *Memory) Purge(_ context.Context, subscriptionID string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	rest := q.pending[:0]
	n := 0
	for _, msg := range q.pending {
		if msg.SubscriptionID == subscriptionID {
			n++
			continue
		}
		rest = append(rest, msg)
	}
	q.pending = rest
	return n, nil
}

func (q *Memory) DeadLetters(context.Context) ([]Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Message(nil), q.dead...), nil
}

// Pending returns a copy of the scheduled messages ordered by due time.
func (q *Memory) Pending() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := append([]Message(nil), q.pending...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) })
	return out
}
