// Package ingest is the inbound data gateway for producer deliveries.
//
// Checks run in a fixed order: the subscription must exist and not be
// inactive, the API key must match, and the body must be a SIRI document.
// Heartbeats go to the producer state machine; vehicle activity is archived
// raw and then handed to the matching engine.
package ingest

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/theoremus-urban-solutions/siri-vm-hub/matching"
	"github.com/theoremus-urban-solutions/siri-vm-hub/model"
	"github.com/theoremus-urban-solutions/siri-vm-hub/objectstore"
	"github.com/theoremus-urban-solutions/siri-vm-hub/siri"
	"github.com/theoremus-urban-solutions/siri-vm-hub/store"
	"github.com/theoremus-urban-solutions/siri-vm-hub/utils"
)

var (
	// ErrInvalidAPIKey is returned when the presented key does not match.
	ErrInvalidAPIKey = errors.New("invalid api key")
	// ErrClientError is returned for bodies that are not usable SIRI.
	ErrClientError = errors.New("malformed siri payload")
)

// Kind says what an accepted delivery contained.
type Kind string

const (
	KindHeartbeat Kind = "heartbeat"
	KindEmpty     Kind = "empty"
	KindActivity  Kind = "activity"
)

// Outcome summarises an accepted delivery.
type Outcome struct {
	Kind     Kind
	Records  int
	Rejected int
}

// HeartbeatRecorder receives HeartbeatNotifications.
type HeartbeatRecorder interface {
	Heartbeat(ctx context.Context, id, status, timestamp string) error
}

// Processor validates and persists vehicle activity.
type Processor interface {
	Process(ctx context.Context, b matching.Batch) (matching.Result, error)
}

// Gateway handles POST /data/{subscriptionId}.
type Gateway struct {
	producers     store.ProducerSubscriptions
	heartbeats    HeartbeatRecorder
	processor     Processor
	archive       objectstore.Store
	archivePrefix string
	logger        *slog.Logger
	now           func() time.Time
}

func NewGateway(producers store.ProducerSubscriptions, heartbeats HeartbeatRecorder, processor Processor, archive objectstore.Store, archivePrefix string, logger *slog.Logger) *Gateway {
	return &Gateway{
		producers:     producers,
		heartbeats:    heartbeats,
		processor:     processor,
		archive:       archive,
		archivePrefix: archivePrefix,
		logger:        logger.With("component", "ingest"),
		now:           time.Now,
	}
}

// CheckAPIKey compares the presented key with the subscription's key.
func CheckAPIKey(sub model.ProducerSubscription, presented string) error {
	if sub.APIKey == "" || subtle.ConstantTimeCompare([]byte(sub.APIKey), []byte(presented)) != 1 {
		return ErrInvalidAPIKey
	}
	return nil
}

// ArchiveKey is the object key a raw payload is stored under.
func ArchiveKey(prefix, subscriptionID string, at time.Time) string {
	return path.Join(prefix, subscriptionID, utils.ArchiveStamp(at)+".xml")
}

// Ingest runs one delivery through the gateway.
func (g *Gateway) Ingest(ctx context.Context, subscriptionID, apiKey string, body []byte) (Outcome, error) {
	sub, err := g.producers.GetProducer(ctx, subscriptionID)
	if err != nil {
		return Outcome{}, err
	}
	if sub.Status == model.StatusInactive {
		return Outcome{}, fmt.Errorf("%w: %s is inactive", store.ErrSubscriptionNotFound, subscriptionID)
	}
	if err := CheckAPIKey(sub, apiKey); err != nil {
		return Outcome{}, err
	}

	doc, err := siri.Decode(body)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrClientError, err)
	}

	if hb := doc.HeartbeatNotification; hb != nil {
		if err := g.heartbeats.Heartbeat(ctx, subscriptionID, hb.Status, hb.RequestTimestamp); err != nil {
			return Outcome{}, err
		}
		return Outcome{Kind: KindHeartbeat}, nil
	}
	if doc.ServiceDelivery == nil {
		return Outcome{}, fmt.Errorf("%w: no ServiceDelivery or HeartbeatNotification", ErrClientError)
	}

	activities := doc.VehicleActivities()
	if len(activities) == 0 {
		return Outcome{Kind: KindEmpty}, nil
	}

	key := ArchiveKey(g.archivePrefix, subscriptionID, g.now())
	if err := g.archive.Put(ctx, key, body, "application/xml"); err != nil {
		g.logger.Error("archive failed", "subscription_id", subscriptionID, "key", key, "error", err)
	}

	res, err := g.processor.Process(ctx, matching.Batch{
		SubscriptionID:    subscriptionID,
		ProducerRef:       doc.ServiceDelivery.ProducerRef,
		ResponseTimestamp: doc.ServiceDelivery.ResponseTimestamp,
		Activities:        activities,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("process delivery: %w", err)
	}
	g.logger.Debug("delivery processed", "subscription_id", subscriptionID,
		"records", len(res.Records), "rejected", len(res.Errors))
	return Outcome{Kind: KindActivity, Records: len(res.Records), Rejected: len(res.Errors)}, nil
}
