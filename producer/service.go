package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/theoremus-urban-solutions/siri-vm-hub/config"
	"github.com/theoremus-urban-solutions/siri-vm-hub/formatter"
	"github.com/theoremus-urban-solutions/siri-vm-hub/metrics"
	"github.com/theoremus-urban-solutions/siri-vm-hub/model"
	"github.com/theoremus-urban-solutions/siri-vm-hub/store"
	"github.com/theoremus-urban-solutions/siri-vm-hub/utils"
)

// subscriptionLifetime is the InitialTerminationTime offset sent to producers.
const subscriptionLifetime = 10 * 365 * 24 * time.Hour

// Secrets stores producer credentials by subscription id.
type Secrets interface {
	Put(subscriptionID string, creds model.Credentials) error
	Get(subscriptionID string) (model.Credentials, error)
	Delete(subscriptionID string) error
}

// SubscribeRequest is the body of POST /subscribe.
type SubscribeRequest struct {
	SubscriptionID       string `json:"subscriptionId"`
	DataProducerEndpoint string `json:"dataProducerEndpoint" validate:"required,url"`
	Description          string `json:"description" validate:"required"`
	ShortDescription     string `json:"shortDescription" validate:"required"`
	Username             string `json:"username" validate:"required"`
	Password             string `json:"password" validate:"required"`
	RequestorRef         string `json:"requestorRef"`
}

// UpdateRequest is the body of POST /update/{subscriptionId}.
type UpdateRequest struct {
	DataProducerEndpoint string `json:"dataProducerEndpoint" validate:"required,url"`
	Username             string `json:"username" validate:"required"`
	Password             string `json:"password" validate:"required"`
}

// UnsubscribeOutcome reports whether the producer acknowledged termination.
type UnsubscribeOutcome struct {
	ProducerNotified bool
}

// UpdateOutcome reports both phases of Update.
type UpdateOutcome struct {
	OldTerminated bool
	NewSubscribed bool
}

// Service runs the producer subscription state machine.
type Service struct {
	store   store.ProducerSubscriptions
	secrets Secrets
	client  *http.Client
	rb      *formatter.ResponseBuilder
	metrics *metrics.Metrics
	cfg     config.ProducerConfig
	baseURL string
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a Service. baseURL is the hub's public address that
// producers post data to.
func NewService(s store.ProducerSubscriptions, secrets Secrets, m *metrics.Metrics, cfg config.ProducerConfig, baseURL string, logger *slog.Logger) *Service {
	return &Service{
		store:   s,
		secrets: secrets,
		client:  &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		rb:      formatter.NewResponseBuilder(),
		metrics: m,
		cfg:     cfg,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.With("component", "producer"),
		now:     time.Now,
	}
}

func (s *Service) observe(operation string, err error) {
	if s.metrics != nil {
		s.metrics.ObserveProducerRequest(operation, err)
	}
}

// ConsumerAddress is where the producer must POST data for a subscription.
func (s *Service) ConsumerAddress(subscriptionID, apiKey string) string {
	return s.baseURL + "/data/" + url.PathEscape(subscriptionID) + "?apiKey=" + url.QueryEscape(apiKey)
}

// Subscribe stores credentials and opens a subscription with the producer.
// When the producer does not accept, a new subscription leaves nothing
// behind.
func (s *Service) Subscribe(ctx context.Context, req SubscribeRequest) (model.ProducerSubscription, error) {
	id := req.SubscriptionID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := s.store.GetProducer(ctx, id)
	isNew := errors.Is(err, store.ErrSubscriptionNotFound)
	if err != nil && !isNew {
		return model.ProducerSubscription{}, fmt.Errorf("load subscription %s: %w", id, err)
	}

	creds := model.Credentials{Username: req.Username, Password: req.Password}
	if err := s.secrets.Put(id, creds); err != nil {
		return model.ProducerSubscription{}, fmt.Errorf("store credentials: %w", err)
	}

	requestorRef := req.RequestorRef
	if requestorRef == "" {
		requestorRef = s.cfg.RequestorRef
	}
	sub := model.ProducerSubscription{
		ID:                   id,
		URL:                  req.DataProducerEndpoint,
		Description:          req.Description,
		ShortDescription:     req.ShortDescription,
		Status:               model.StatusPending,
		RequestorRef:         requestorRef,
		APIKey:               uuid.NewString(),
		LastModifiedDatetime: s.now(),
	}

	live, err := s.activate(ctx, sub, creds)
	if err != nil {
		if isNew {
			if derr := s.secrets.Delete(id); derr != nil {
				s.logger.Error("revoke credentials", "subscription_id", id, "error", derr)
			}
		} else {
			sub.Status = model.StatusInactive
			if serr := s.store.SaveProducer(ctx, sub); serr != nil {
				s.logger.Error("save subscription", "subscription_id", id, "error", serr)
			}
		}
		return model.ProducerSubscription{}, err
	}
	return live, nil
}

// activate sends the SubscriptionRequest and persists the live row.
func (s *Service) activate(ctx context.Context, sub model.ProducerSubscription, creds model.Credentials) (model.ProducerSubscription, error) {
	now := s.now()
	doc := formatter.WrapSubscriptionRequest(
		now,
		s.ConsumerAddress(sub.ID, sub.APIKey),
		sub.RequestorRef,
		sub.ID,
		time.Duration(s.cfg.HeartbeatIntervalSecs)*time.Second,
		now.Add(subscriptionLifetime),
	)
	answer, err := s.send(ctx, sub.URL, creds, doc)
	if err == nil && (answer.SubscriptionResponse == nil || !answer.SubscriptionResponse.ResponseStatus.Accepted()) {
		err = fmt.Errorf("%w: subscription not accepted", ErrMalformedResponse)
	}
	s.observe("subscribe", err)
	if err != nil {
		s.logger.Error("subscribe failed", "subscription_id", sub.ID, "producer_url", sub.URL, "error", err)
		return model.ProducerSubscription{}, err
	}

	started := now
	if t, perr := utils.ParseTimestamp(answer.SubscriptionResponse.ServiceStartedTime); perr == nil {
		started = t
	}
	sub.Status = model.StatusLive
	sub.ServiceStartDatetime = &started
	sub.ServiceEndDatetime = nil
	sub.HeartbeatAttempts = 0
	sub.LastHeartbeat = nil
	sub.LastModifiedDatetime = now
	if err := s.store.SaveProducer(ctx, sub); err != nil {
		return model.ProducerSubscription{}, fmt.Errorf("save subscription %s: %w", sub.ID, err)
	}
	s.logger.Info("subscription live", "subscription_id", sub.ID, "producer_url", sub.URL)
	return sub, nil
}

// Heartbeat records a HeartbeatNotification. Only Status "true" has an
// effect; it also brings a subscription the watchdog moved to error back to
// live.
func (s *Service) Heartbeat(ctx context.Context, id, status, timestamp string) error {
	if strings.TrimSpace(status) != "true" {
		_, err := s.store.GetProducer(ctx, id)
		return err
	}
	at, err := utils.ParseTimestamp(timestamp)
	if err != nil {
		at = s.now()
	}
	return s.store.TouchHeartbeat(ctx, id, at, s.now())
}

// Unsubscribe terminates a subscription. Producer failures are logged and
// counted but never returned.
func (s *Service) Unsubscribe(ctx context.Context, id string) (UnsubscribeOutcome, error) {
	sub, err := s.store.GetProducer(ctx, id)
	if err != nil {
		return UnsubscribeOutcome{}, err
	}
	creds, err := s.secrets.Get(id)
	if err != nil {
		s.logger.Warn("credentials unavailable for terminate", "subscription_id", id, "error", err)
	}

	terr := s.terminate(ctx, sub, creds)
	s.observe("unsubscribe", terr)
	if terr != nil {
		s.logger.Error("terminate failed", "subscription_id", id, "producer_url", sub.URL, "error", terr)
		if s.metrics != nil {
			s.metrics.UnsubscribeFailures.Inc()
		}
	}

	now := s.now()
	sub.Status = model.StatusInactive
	sub.ServiceEndDatetime = &now
	sub.LastModifiedDatetime = now
	if err := s.store.SaveProducer(ctx, sub); err != nil {
		return UnsubscribeOutcome{}, fmt.Errorf("save subscription %s: %w", id, err)
	}
	if err := s.secrets.Delete(id); err != nil {
		s.logger.Error("revoke credentials", "subscription_id", id, "error", err)
	}
	return UnsubscribeOutcome{ProducerNotified: terr == nil}, nil
}

func (s *Service) terminate(ctx context.Context, sub model.ProducerSubscription, creds model.Credentials) error {
	doc := formatter.WrapTerminateSubscriptionRequest(s.now(), sub.RequestorRef, sub.ID)
	answer, err := s.send(ctx, sub.URL, creds, doc)
	if err != nil {
		return err
	}
	if r := answer.TerminateSubscriptionResponse; r != nil && !r.TerminationResponseStatus.Accepted() {
		return fmt.Errorf("%w: termination not accepted", ErrMalformedResponse)
	}
	return nil
}

// Update moves a subscription to a new endpoint and credentials. The old
// subscription is terminated first; that phase never fails the update. When
// the new subscribe fails the row is left inactive with the new endpoint.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (UpdateOutcome, error) {
	var out UpdateOutcome
	old, err := s.Unsubscribe(ctx, id)
	if err != nil {
		return out, err
	}
	out.OldTerminated = old.ProducerNotified

	sub, err := s.store.GetProducer(ctx, id)
	if err != nil {
		return out, err
	}
	creds := model.Credentials{Username: req.Username, Password: req.Password}
	if err := s.secrets.Put(id, creds); err != nil {
		return out, fmt.Errorf("store credentials: %w", err)
	}
	sub.URL = req.DataProducerEndpoint
	sub.APIKey = uuid.NewString()
	sub.LastModifiedDatetime = s.now()

	if _, err := s.activate(ctx, sub, creds); err != nil {
		if serr := s.store.SaveProducer(ctx, sub); serr != nil {
			s.logger.Error("save subscription", "subscription_id", id, "error", serr)
		}
		return out, err
	}
	out.NewSubscribed = true
	return out, nil
}

// CheckHeartbeats counts a missed heartbeat for every live subscription
// silent for longer than the heartbeat timeout, and moves it to error once
// the count reaches the configured maximum. It returns how many moved.
func (s *Service) CheckHeartbeats(ctx context.Context) (int, error) {
	subs, err := s.store.ListProducers(ctx, model.StatusLive)
	if err != nil {
		return 0, err
	}
	timeout := time.Duration(s.cfg.HeartbeatTimeoutSeconds) * time.Second
	now := s.now()
	escalated := 0
	for _, sub := range subs {
		last := sub.LastModifiedDatetime
		switch {
		case sub.LastHeartbeat != nil:
			last = *sub.LastHeartbeat
		case sub.ServiceStartDatetime != nil:
			last = *sub.ServiceStartDatetime
		}
		if now.Sub(last) <= timeout {
			continue
		}
		updated, err := s.store.RecordMissedHeartbeat(ctx, sub.ID, sub.LastHeartbeat, s.cfg.MaxHeartbeatAttempts, now)
		if errors.Is(err, store.ErrSubscriptionNotFound) {
			continue
		}
		if err != nil {
			return escalated, err
		}
		if updated.Status == model.StatusError {
			escalated++
			s.logger.Warn("producer heartbeats missing, subscription moved to error",
				"subscription_id", sub.ID, "last_heartbeat", last, "attempts", updated.HeartbeatAttempts)
		}
	}
	return escalated, nil
}

// RunHeartbeatWatchdog runs CheckHeartbeats every interval until ctx is cancelled.
func (s *Service) RunHeartbeatWatchdog(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.CheckHeartbeats(ctx); err != nil {
				s.logger.Error("heartbeat check failed", "error", err)
			}
		}
	}
}
