package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/theoremus-urban-solutions/siri-vm-hub/fanout"
	"github.com/theoremus-urban-solutions/siri-vm-hub/feed"
	"github.com/theoremus-urban-solutions/siri-vm-hub/ingest"
	"github.com/theoremus-urban-solutions/siri-vm-hub/metrics"
	"github.com/theoremus-urban-solutions/siri-vm-hub/model"
	"github.com/theoremus-urban-solutions/siri-vm-hub/producer"
	"github.com/theoremus-urban-solutions/siri-vm-hub/queue"
	"github.com/theoremus-urban-solutions/siri-vm-hub/store"
)

// ProducerService is the producer subscription state machine.
type ProducerService interface {
	Subscribe(ctx context.Context, req producer.SubscribeRequest) (model.ProducerSubscription, error)
	Unsubscribe(ctx context.Context, id string) (producer.UnsubscribeOutcome, error)
	Update(ctx context.Context, id string, req producer.UpdateRequest) (producer.UpdateOutcome, error)
}

// Ingestor accepts producer deliveries.
type Ingestor interface {
	Ingest(ctx context.Context, subscriptionID, apiKey string, body []byte) (ingest.Outcome, error)
}

// FeedRenderer serves the aggregated feed.
type FeedRenderer interface {
	Render(ctx context.Context, variant feed.Variant, f model.Filter) ([]byte, string, error)
	SnapshotURL(ctx context.Context, variant feed.Variant) (string, error)
}

// Deps are the components the HTTP layer calls into.
type Deps struct {
	Producers        ProducerService
	ProducerStore    store.ProducerSubscriptions
	ValidationErrors store.ValidationErrors
	Consumers        store.ConsumerSubscriptions
	Records          store.Records
	Queue            queue.Queue
	Armer            *fanout.Armer
	Gateway          Ingestor
	Feed             FeedRenderer
	Metrics          *metrics.Metrics
	// Health, when set, is run by GET /health.
	Health func(ctx context.Context) error
	// SnapshotRedirect sends unfiltered SIRI-VM feed requests to the
	// published snapshot.
	SnapshotRedirect bool
	MaxBodyBytes     int64
	QueueName        string
	Logger           *slog.Logger
}

type handler struct {
	Deps
	validate *validator.Validate
	logger   *slog.Logger
}

// NewRouter builds the chi router with every route mounted.
func NewRouter(d Deps) http.Handler {
	h := &handler{
		Deps:     d,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   d.Logger.With("component", "api"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware(h.logger))

	r.Get("/health", h.health)
	if d.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{}))
	}

	r.Post("/subscribe", h.subscribe)
	r.Post("/unsubscribe", h.unsubscribe)
	r.Post("/update/{subscriptionId}", h.update)
	r.Get("/subscriptions", h.listSubscriptions)
	r.Get("/subscriptions/{subscriptionId}", h.getSubscription)
	r.Get("/subscriptions/{subscriptionId}/validation-errors", h.listValidationErrors)

	r.Post("/data/{subscriptionId}", h.data)
	r.Get("/feed", h.feed)

	r.Route("/consumer-subscriptions", func(r chi.Router) {
		r.Post("/", h.createConsumer)
		r.Get("/", h.listConsumers)
		r.Get("/{id}", h.getConsumer)
		r.Delete("/{id}", h.deleteConsumer)
	})
	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if h.Health != nil {
		if err := h.Health(r.Context()); err != nil {
			h.logger.Warn("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
