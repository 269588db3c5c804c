package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/theoremus-urban-solutions/siri-vm-hub/fanout"
	"github.com/theoremus-urban-solutions/siri-vm-hub/model"
	"github.com/theoremus-urban-solutions/siri-vm-hub/store"
)

const userHeader = "x-user-id"

// ConsumerRequest is the body of POST /consumer-subscriptions.
type ConsumerRequest struct {
	Name           string   `json:"name" validate:"required,max=256"`
	URL            string   `json:"url" validate:"required,url"`
	RequestorRef   string   `json:"requestorRef" validate:"required"`
	UpdateInterval int      `json:"updateInterval" validate:"required,oneof=10 15 20 30"`
	ProducerIDs    []string `json:"producerIds" validate:"required,min=1,dive,required"`
	BoundingBox    string   `json:"boundingBox"`
	OperatorRefs   []string `json:"operatorRefs"`
	LineRefs       []string `json:"lineRefs"`
}

func userID(r *http.Request) (string, error) {
	id := r.Header.Get(userHeader)
	if id == "" {
		return "", fmt.Errorf("%w: %s header is required", errBadRequest, userHeader)
	}
	return id, nil
}

// ownedConsumer loads a consumer subscription that belongs to the caller.
// Subscriptions of other users are reported as not found.
func (h *handler) ownedConsumer(r *http.Request) (model.ConsumerSubscription, error) {
	user, err := userID(r)
	if err != nil {
		return model.ConsumerSubscription{}, err
	}
	sub, err := h.Consumers.GetConsumer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return model.ConsumerSubscription{}, err
	}
	if sub.UserID != user {
		return model.ConsumerSubscription{}, store.ErrSubscriptionNotFound
	}
	return sub, nil
}

func (h *handler) createConsumer(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req ConsumerRequest
	if err := h.decodeBody(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	ctx := r.Context()

	var box *model.BoundingBox
	if req.BoundingBox != "" {
		if box, err = model.ParseBoundingBox(req.BoundingBox); err != nil {
			writeError(w, r, h.logger, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
	}
	for _, pid := range req.ProducerIDs {
		if _, err := h.ProducerStore.GetProducer(ctx, pid); err != nil {
			writeError(w, r, h.logger, fmt.Errorf("%w: producer %s: %v", errBadRequest, pid, err))
			return
		}
	}
	// deliveries start from records that arrive after the subscription
	cursor, err := h.Records.MaxRecordID(ctx)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	id := uuid.NewString()
	sub := model.ConsumerSubscription{
		ID:             id,
		UserID:         user,
		Name:           req.Name,
		URL:            req.URL,
		RequestorRef:   req.RequestorRef,
		UpdateInterval: req.UpdateInterval,
		Status:         model.StatusLive,
		ProducerIDs:    req.ProducerIDs,
		BoundingBox:    box,
		OperatorRefs:   req.OperatorRefs,
		LineRefs:       req.LineRefs,
		LastRecordID:   cursor,
		QueueName:      h.QueueName,
		ScheduleName:   "consumer-" + id,
		CreatedAt:      time.Now(),
	}
	if err := h.Consumers.SaveConsumer(ctx, sub); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.Armer.Arm(ctx, fanout.ArmEvent{SubscriptionID: id, Queue: sub.QueueName, Cadence: sub.UpdateInterval}); err != nil {
		// the next re-arm picks the subscription up
		h.logger.Warn("initial arm failed", "subscription_id", id, "error", err)
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *handler) listConsumers(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	subs, err := h.Consumers.ListConsumers(r.Context(), user)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if subs == nil {
		subs = []model.ConsumerSubscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

func (h *handler) getConsumer(w http.ResponseWriter, r *http.Request) {
	sub, err := h.ownedConsumer(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *handler) deleteConsumer(w http.ResponseWriter, r *http.Request) {
	sub, err := h.ownedConsumer(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	ctx := r.Context()
	sub.Status = model.StatusInactive
	if err := h.Consumers.SaveConsumer(ctx, sub); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	purged, err := h.Queue.Purge(ctx, sub.ID)
	if err != nil {
		h.logger.Error("purge queue", "subscription_id", sub.ID, "error", err)
	}
	h.logger.Info("consumer subscription removed", "subscription_id", sub.ID, "purged", purged)
	w.WriteHeader(http.StatusNoContent)
}
