package fanout

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/theoremus-urban-solutions/siri-vm-hub/config"
	"github.com/theoremus-urban-solutions/siri-vm-hub/metrics"
	"github.com/theoremus-urban-solutions/siri-vm-hub/queue"
)

// Ticker runs one delivery for a subscription.
type Ticker interface {
	Tick(ctx context.Context, subscriptionID string) error
}

// Worker polls the delay queue and runs due ticks in parallel.
type Worker struct {
	queue       queue.Queue
	ticker      Ticker
	metrics     *metrics.Metrics
	concurrency int
	poll        time.Duration
	logger      *slog.Logger
}

func NewWorker(q queue.Queue, t Ticker, m *metrics.Metrics, cfg config.FanoutConfig, logger *slog.Logger) *Worker {
	return &Worker{
		queue:       q,
		ticker:      t,
		metrics:     m,
		concurrency: cfg.Concurrency,
		poll:        time.Duration(cfg.PollIntervalMS) * time.Millisecond,
		logger:      logger.With("component", "worker"),
	}
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	t := time.NewTicker(w.poll)
	defer t.Stop()
	w.logger.Info("fan-out worker started", "concurrency", w.concurrency, "poll", w.poll)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := w.Drain(ctx, time.Now()); err != nil {
				w.logger.Error("claim failed", "error", err)
			}
		}
	}
}

// Drain claims the messages due at now and handles them, at most
// concurrency at a time. It returns how many messages were handled.
func (w *Worker) Drain(ctx context.Context, now time.Time) (int, error) {
	msgs, err := w.queue.Claim(ctx, now, w.concurrency*4)
	if err != nil {
		return 0, err
	}
	var g errgroup.Group
	g.SetLimit(w.concurrency)
	for _, msg := range msgs {
		g.Go(func() error {
			w.handle(ctx, msg)
			return nil
		})
	}
	_ = g.Wait()
	return len(msgs), nil
}

func (w *Worker) handle(ctx context.Context, msg queue.Message) {
	err := w.ticker.Tick(ctx, msg.SubscriptionID)
	if err == nil {
		return
	}
	if errors.Is(err, ErrSubscriptionNotLive) {
		w.logger.Debug("dropping tick", "subscription_id", msg.SubscriptionID, "reason", err)
		return
	}
	w.logger.Warn("tick failed", "subscription_id", msg.SubscriptionID, "attempt", msg.Attempt, "error", err)
	dead, rerr := w.queue.Retry(ctx, msg)
	if rerr != nil {
		w.logger.Error("requeue failed", "subscription_id", msg.SubscriptionID, "error", rerr)
		return
	}
	if dead {
		w.logger.Warn("message dead-lettered", "subscription_id", msg.SubscriptionID, "message_id", msg.ID)
		if w.metrics != nil {
			w.metrics.QueueDeadLetters.Inc()
		}
	}
}
