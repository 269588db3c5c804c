package fanout

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/theoremus-urban-solutions/siri-vm-hub/config"
	"github.com/theoremus-urban-solutions/siri-vm-hub/metrics"
	"github.com/theoremus-urban-solutions/siri-vm-hub/model"
	"github.com/theoremus-urban-solutions/siri-vm-hub/store"
)

// ErrSubscriptionNotLive is returned by Tick for a subscription that is
// missing or not live. It is terminal: the message must not be retried.
var ErrSubscriptionNotLive = errors.New("consumer subscription is not live")

// Store is what a Deliverer reads and updates.
type Store interface {
	store.ConsumerSubscriptions
	store.Records
}

// Renderer wraps records in a SIRI-VM document.
type Renderer interface {
	RenderRecords(records []model.VehicleActivityRecord) []byte
}

// Deliverer runs one delivery tick for a consumer subscription.
type Deliverer struct {
	store     Store
	renderer  Renderer
	client    *http.Client
	metrics   *metrics.Metrics
	maxBatch  int
	maxFailed int
	logger    *slog.Logger
	now       func() time.Time
}

func NewDeliverer(s Store, renderer Renderer, m *metrics.Metrics, cfg config.FanoutConfig, logger *slog.Logger) *Deliverer {
	return &Deliverer{
		store:     s,
		renderer:  renderer,
		client:    &http.Client{Timeout: time.Duration(cfg.DeliveryTimeoutSeconds) * time.Second},
		metrics:   m,
		maxBatch:  cfg.MaxBatch,
		maxFailed: cfg.MaxFailedAttempts,
		logger:    logger.With("component", "deliverer"),
		now:       time.Now,
	}
}

func (d *Deliverer) observe(result string, elapsed time.Duration) {
	if d.metrics != nil {
		d.metrics.ObserveDelivery(result, elapsed)
	}
}

// Tick posts records newer than the subscription cursor to its callback URL.
func (d *Deliverer) Tick(ctx context.Context, subscriptionID string) error {
	sub, err := d.store.GetConsumer(ctx, subscriptionID)
	if errors.Is(err, store.ErrSubscriptionNotFound) {
		d.observe("terminal", 0)
		return fmt.Errorf("%w: %s not found", ErrSubscriptionNotLive, subscriptionID)
	}
	if err != nil {
		return fmt.Errorf("load consumer %s: %w", subscriptionID, err)
	}
	if sub.Status != model.StatusLive {
		d.observe("terminal", 0)
		return fmt.Errorf("%w: %s is %s", ErrSubscriptionNotLive, subscriptionID, sub.Status)
	}

	records, err := d.store.RecordsAfter(ctx, sub.LastRecordID, sub.Filter(), d.maxBatch)
	if err != nil {
		return fmt.Errorf("read records for %s: %w", subscriptionID, err)
	}
	if len(records) == 0 {
		d.observe("empty", 0)
		return nil
	}

	body := d.renderer.RenderRecords(records)
	start := d.now()
	postErr := d.post(ctx, sub.URL, body)
	elapsed := d.now().Sub(start)

	if postErr != nil {
		d.observe("error", elapsed)
		updated, err := d.store.RecordDeliveryFailure(ctx, subscriptionID, d.maxFailed)
		if err != nil {
			d.logger.Error("record delivery failure", "subscription_id", subscriptionID, "error", err)
		} else if updated.Status == model.StatusError {
			d.logger.Warn("consumer subscription moved to error",
				"subscription_id", subscriptionID, "failed_attempts", updated.FailedAttempts)
		}
		return fmt.Errorf("deliver to %s: %w", subscriptionID, postErr)
	}

	var last int64
	for _, r := range records {
		last = max(last, r.ID)
	}
	if err := d.store.AdvanceCursor(ctx, subscriptionID, last, d.now()); err != nil {
		return fmt.Errorf("advance cursor for %s: %w", subscriptionID, err)
	}
	d.observe("ok", elapsed)
	d.logger.Debug("delivered", "subscription_id", subscriptionID, "records", len(records), "cursor", last)
	return nil
}

func (d *Deliverer) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/xml")
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}
	return nil
}
