package store

import (
	"context"
	"errors"
	"time"

	"github.com/theoremus-urban-solutions/siri-vm-hub/model"
)

// ErrSubscriptionNotFound is returned for unknown producer or consumer subscription ids.
var ErrSubscriptionNotFound = errors.New("subscription not found")

// ProducerSubscriptions persists upstream producer subscriptions.
type ProducerSubscriptions interface {
	SaveProducer(ctx context.Context, sub model.ProducerSubscription) error
	GetProducer(ctx context.Context, id string) (model.ProducerSubscription, error)
	// ListProducers returns every subscription, or only those in the given statuses.
	ListProducers(ctx context.Context, statuses ...model.SubscriptionStatus) ([]model.ProducerSubscription, error)
	// TouchHeartbeat records a positive heartbeat at `at`: it clears the
	// missed-heartbeat counter and moves an error subscription back to live.
	TouchHeartbeat(ctx context.Context, id string, at, modified time.Time) error
	// RecordMissedHeartbeat counts a missed heartbeat on a live subscription
	// whose last heartbeat is still seen, moving it to error once the count
	// reaches maxAttempts. It returns ErrSubscriptionNotFound when no such
	// row exists, for example after a heartbeat or an update raced the check.
	RecordMissedHeartbeat(ctx context.Context, id string, seen *time.Time, maxAttempts int, modified time.Time) (model.ProducerSubscription, error)
}

// ConsumerSubscriptions persists downstream consumer subscriptions and their cursors.
type ConsumerSubscriptions interface {
	SaveConsumer(ctx context.Context, sub model.ConsumerSubscription) error
	GetConsumer(ctx context.Context, id string) (model.ConsumerSubscription, error)
	ListConsumers(ctx context.Context, userID string) ([]model.ConsumerSubscription, error)
	ListConsumersByStatus(ctx context.Context, status model.SubscriptionStatus) ([]model.ConsumerSubscription, error)
	// AdvanceCursor moves LastRecordID forward to lastRecordID (never back)
	// and clears the failure counter.
	AdvanceCursor(ctx context.Context, id string, lastRecordID int64, deliveredAt time.Time) error
	// RecordDeliveryFailure increments the failure counter and moves a live
	// subscription to error once the counter reaches maxFailed.
	RecordDeliveryFailure(ctx context.Context, id string, maxFailed int) (model.ConsumerSubscription, error)
}

// Records persists vehicle activity records.
type Records interface {
	// InsertRecords appends records, assigning ids, and returns them.
	InsertRecords(ctx context.Context, recs []model.VehicleActivityRecord) ([]model.VehicleActivityRecord, error)
	CurrentFleet(ctx context.Context, f model.Filter) ([]model.VehicleActivityRecord, error)
	// RecordsAfter returns records with id > afterID matching f, ordered by id.
	RecordsAfter(ctx context.Context, afterID int64, f model.Filter, limit int) ([]model.VehicleActivityRecord, error)
	MaxRecordID(ctx context.Context) (int64, error)
	// DeleteExpired removes records whose ValidUntilTime is before cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// ValidationErrors persists per-element rejections with a time-to-live.
type ValidationErrors interface {
	AddValidationErrors(ctx context.Context, errs []model.ValidationError) error
	ListValidationErrors(ctx context.Context, subscriptionID string) ([]model.ValidationError, error)
}

// Store is the relational part of persistence.
type Store interface {
	ProducerSubscriptions
	ConsumerSubscriptions
	Records
	Close()
}
