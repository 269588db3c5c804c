package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/theoremus-urban-solutions/siri-vm-hub/ingest"
	"github.com/theoremus-urban-solutions/siri-vm-hub/model"
	"github.com/theoremus-urban-solutions/siri-vm-hub/producer"
)

// decodeBody reads a JSON body and validates it.
func (h *handler) decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	if err := h.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func (h *handler) subscribe(w http.ResponseWriter, r *http.Request) {
	var req producer.SubscribeRequest
	if err := h.decodeBody(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	sub, err := h.Producers.Subscribe(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"subscriptionId": sub.ID})
}

func (h *handler) unsubscribe(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("subscriptionId")
	if id == "" {
		writeError(w, r, h.logger, fmt.Errorf("%w: subscriptionId is required", errBadRequest))
		return
	}
	if _, err := h.Producers.Unsubscribe(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "subscriptionId")
	sub, err := h.ProducerStore.GetProducer(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := ingest.CheckAPIKey(sub, r.Header.Get("x-api-key")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req producer.UpdateRequest
	if err := h.decodeBody(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out, err := h.Producers.Update(r.Context(), id, req)
	if err != nil {
		h.logger.Warn("update incomplete", "subscription_id", id,
			"old_terminated", out.OldTerminated, "new_subscribed", out.NewSubscribed)
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	var statuses []model.SubscriptionStatus
	for _, s := range model.SplitList(r.URL.Query().Get("status")) {
		statuses = append(statuses, model.SubscriptionStatus(s))
	}
	subs, err := h.ProducerStore.ListProducers(r.Context(), statuses...)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if subs == nil {
		subs = []model.ProducerSubscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

func (h *handler) getSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := h.ProducerStore.GetProducer(r.Context(), chi.URLParam(r, "subscriptionId"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *handler) listValidationErrors(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "subscriptionId")
	if _, err := h.ProducerStore.GetProducer(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	errs, err := h.ValidationErrors.ListValidationErrors(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if errs == nil {
		errs = []model.ValidationError{}
	}
	writeJSON(w, http.StatusOK, errs)
}
