package fanout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/theoremus-urban-solutions/siri-vm-hub/model"
	"github.com/theoremus-urban-solutions/siri-vm-hub/queue"
	"github.com/theoremus-urban-solutions/siri-vm-hub/store"
)

// ladderSpan is the window covered by one arming.
const ladderSpan = 60 * time.Second

var (
	ErrInvalidCadence = errors.New("cadence must be one of 10, 15, 20, 30 seconds")
	ErrUnknownQueue   = errors.New("unknown queue")
)

// Ladder returns the delays c, 2c, ... up to 60 seconds for a cadence of c
// seconds, or nil when c is not an allowed update interval.
func Ladder(cadence int) []time.Duration {
	if !model.ValidUpdateInterval(cadence) {
		return nil
	}
	step := time.Duration(cadence) * time.Second
	var out []time.Duration
	for d := step; d <= ladderSpan; d += step {
		out = append(out, d)
	}
	return out
}

// ArmEvent asks for one ladder of ticks for a subscription.
type ArmEvent struct {
	SubscriptionID string
	Queue          string
	Cadence        int
}

// Armer turns ArmEvents into delayed queue messages.
type Armer struct {
	queue     queue.Queue
	queueName string
	logger    *slog.Logger
}

// NewArmer creates an Armer that accepts events addressed to queueName.
func NewArmer(q queue.Queue, queueName string, logger *slog.Logger) *Armer {
	return &Armer{queue: q, queueName: queueName, logger: logger.With("component", "armer")}
}

// Arm enqueues one message per ladder step. It does not deliver anything.
func (a *Armer) Arm(ctx context.Context, ev ArmEvent) error {
	if ev.Queue != "" && ev.Queue != a.queueName {
		return fmt.Errorf("%w: %s", ErrUnknownQueue, ev.Queue)
	}
	delays := Ladder(ev.Cadence)
	if delays == nil {
		return fmt.Errorf("%w: got %d", ErrInvalidCadence, ev.Cadence)
	}
	for _, d := range delays {
		if err := a.queue.Enqueue(ctx, ev.SubscriptionID, d); err != nil {
			return fmt.Errorf("arm %s: %w", ev.SubscriptionID, err)
		}
	}
	return nil
}

// Rearmer arms every live consumer subscription.
type Rearmer struct {
	consumers store.ConsumerSubscriptions
	armer     *Armer
	logger    *slog.Logger
}

func NewRearmer(consumers store.ConsumerSubscriptions, armer *Armer, logger *slog.Logger) *Rearmer {
	return &Rearmer{consumers: consumers, armer: armer, logger: logger.With("component", "rearmer")}
}

// ArmAll arms each live subscription once and returns how many were armed.
// A failure on one subscription does not stop the others.
func (r *Rearmer) ArmAll(ctx context.Context) (int, error) {
	subs, err := r.consumers.ListConsumersByStatus(ctx, model.StatusLive)
	if err != nil {
		return 0, fmt.Errorf("list live consumers: %w", err)
	}
	armed := 0
	var errs []error
	for _, sub := range subs {
		err := r.armer.Arm(ctx, ArmEvent{
			SubscriptionID: sub.ID,
			Queue:          sub.QueueName,
			Cadence:        sub.UpdateInterval,
		})
		if err != nil {
			r.logger.Error("arm failed", "subscription_id", sub.ID, "error", err)
			errs = append(errs, err)
			continue
		}
		armed++
	}
	return armed, errors.Join(errs...)
}

// Run arms immediately and then every interval until ctx is cancelled.
func (r *Rearmer) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if n, err := r.ArmAll(ctx); err == nil {
			r.logger.Debug("armed consumer subscriptions", "count", n)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
