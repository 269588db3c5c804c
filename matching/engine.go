package matching

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/theoremus-urban-solutions/siri-vm-hub/gtfs"
	"github.com/theoremus-urban-solutions/siri-vm-hub/metrics"
	"github.com/theoremus-urban-solutions/siri-vm-hub/model"
	"github.com/theoremus-urban-solutions/siri-vm-hub/siri"
	"github.com/theoremus-urban-solutions/siri-vm-hub/store"
)

// ReferenceIndex resolves routes and trips from scheduled-service data.
type ReferenceIndex interface {
	Match(operatorRef, lineName, journeyCode string) gtfs.Match
}

// Batch is one inbound delivery for a producer subscription.
type Batch struct {
	SubscriptionID    string
	ProducerRef       string
	ResponseTimestamp string
	Activities        []siri.VehicleActivity
}

// Result holds both outputs of a batch.
type Result struct {
	Records []model.VehicleActivityRecord
	Errors  []model.ValidationError
}

// Engine validates, matches and persists vehicle activity.
type Engine struct {
	records  store.Records
	verrs    store.ValidationErrors
	index    ReferenceIndex
	metrics  *metrics.Metrics
	logger   *slog.Logger
	errorTTL time.Duration
	now      func() time.Time
}

// NewEngine wires the engine to its stores and reference index.
func NewEngine(records store.Records, verrs store.ValidationErrors, index ReferenceIndex, m *metrics.Metrics, errorTTL time.Duration, logger *slog.Logger) *Engine {
	return &Engine{
		records:  records,
		verrs:    verrs,
		index:    index,
		metrics:  m,
		logger:   logger.With("component", "matching"),
		errorTTL: errorTTL,
		now:      time.Now,
	}
}

// Process handles every activity in the batch. A store failure is returned;
// per-element rejections are not errors.
func (e *Engine) Process(ctx context.Context, b Batch) (Result, error) {
	var res Result
	now := e.now()
	accepted := make([]model.VehicleActivityRecord, 0, len(b.Activities))

	for _, va := range b.Activities {
		parsed := ParseActivity(va)
		if !parsed.OK() {
			res.Errors = append(res.Errors, model.ValidationError{
				ID:                uuid.NewString(),
				SubscriptionID:    b.SubscriptionID,
				Severity:          parsed.Severity(),
				Name:              parsed.Errors[0].Field,
				Details:           parsed.Detail(),
				ResponseTimestamp: b.ResponseTimestamp,
				CreatedAt:         now,
				ExpiresAt:         now.Add(e.errorTTL),
			})
			continue
		}
		rec := *parsed.Record
		rec.SubscriptionID = b.SubscriptionID
		rec.ProducerRef = b.ProducerRef
		e.match(&rec)
		accepted = append(accepted, rec)
	}

	if len(res.Errors) > 0 {
		if err := e.verrs.AddValidationErrors(ctx, res.Errors); err != nil {
			// records are persisted regardless
			e.logger.Error("validation errors not stored", "subscription_id", b.SubscriptionID, "count", len(res.Errors), "error", err)
		}
		for _, ve := range res.Errors {
			e.metrics.ValidationErrors.WithLabelValues(string(ve.Severity)).Inc()
		}
	}

	if len(accepted) > 0 {
		inserted, err := e.records.InsertRecords(ctx, accepted)
		if err != nil {
			return res, fmt.Errorf("persist vehicle activity: %w", err)
		}
		res.Records = inserted
		e.metrics.RecordsIngested.WithLabelValues(b.SubscriptionID).Add(float64(len(inserted)))
	}

	e.logger.Debug("batch processed", "subscription_id", b.SubscriptionID,
		"records", len(res.Records), "rejected", len(res.Errors))
	return res, nil
}

func (e *Engine) match(rec *model.VehicleActivityRecord) {
	line := rec.PublishedLineName
	if line == "" {
		line = rec.LineRef
	}
	m := e.index.Match(rec.OperatorRef, line, rec.DatedVehicleJourneyRef)
	rec.RouteID, rec.TripID = m.RouteID, m.TripID
	switch {
	case rec.Matched():
		e.metrics.MatchOutcomes.WithLabelValues("trip").Inc()
	case rec.RouteID != nil:
		e.metrics.MatchOutcomes.WithLabelValues("route").Inc()
	default:
		e.metrics.MatchOutcomes.WithLabelValues("unmatched").Inc()
	}
}
