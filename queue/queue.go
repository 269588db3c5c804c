// Package queue is the delay queue that drives consumer fan-out. Each
// message carries only a consumer subscription id and becomes visible once
// its due time passes.
//
// Claim removes a message from the queue, so a message is handed to at most
// one worker. A failed message is put back with Retry; after MaxAttempts it
// is moved to the dead-letter list instead.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/theoremus-urban-solutions/siri-vm-hub/config"
)

// Message is one scheduled tick for a consumer subscription.
type Message struct {
	ID             string    `json:"id"`
	SubscriptionID string    `json:"subscriptionId"`
	Attempt        int       `json:"attempt"`
	DueAt          time.Time `json:"dueAt"`
}

// Queue is a delayed message queue.
type Queue interface {
	// Enqueue schedules a message for subscriptionID after delay.
	Enqueue(ctx context.Context, subscriptionID string, delay time.Duration) error
	// Claim removes and returns up to limit messages due at or before now.
	Claim(ctx context.Context, now time.Time, limit int) ([]Message, error)
	// Retry reschedules msg, or dead-letters it once its attempts are used up.
	Retry(ctx context.Context, msg Message) (deadLettered bool, err error)
	// Purge drops every pending message for subscriptionID.
	Purge(ctx context.Context, subscriptionID string) (int, error)
	// DeadLetters lists dead-lettered messages, newest first.
	DeadLetters(ctx context.Context) ([]Message, error)
}

// Policy holds the redelivery settings shared by implementations.
type Policy struct {
	MaxAttempts int
	RetryDelay  time.Duration
}

// PolicyFromConfig converts queue configuration.
func PolicyFromConfig(cfg config.QueueConfig) Policy {
	return Policy{
		MaxAttempts: cfg.MaxAttempts,
		RetryDelay:  time.Duration(cfg.RetryDelaySeconds) * time.Second,
	}
}

// exhausted reports whether msg has no redeliveries left.
func (p Policy) exhausted(msg Message) bool {
	return msg.Attempt+1 >= p.MaxAttempts
}

func newMessage(subscriptionID string, due time.Time) Message {
	return Message{ID: uuid.NewString(), SubscriptionID: subscriptionID, DueAt: due}
}

func encode(msg Message) (string, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("encode message: %w", err)
	}
	return string(data), nil
}

func decode(s string) (Message, error) {
	var msg Message
	if err := json.Unmarshal([]byte(s), &msg); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	return msg, nil
}
