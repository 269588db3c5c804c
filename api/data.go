package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/theoremus-urban-solutions/siri-vm-hub/feed"
	"github.com/theoremus-urban-solutions/siri-vm-hub/ingest"
	"github.com/theoremus-urban-solutions/siri-vm-hub/model"
)

func (h *handler) data(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "subscriptionId")
	key := r.URL.Query().Get("apiKey")
	if key == "" {
		key = r.Header.Get("x-api-key")
	}

	reader := r.Body
	if h.MaxBodyBytes > 0 {
		reader = http.MaxBytesReader(w, r.Body, h.MaxBodyBytes)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: err.Error()})
			return
		}
		writeError(w, r, h.logger, fmt.Errorf("%w: read body: %v", ingest.ErrClientError, err))
		return
	}

	out, err := h.Gateway.Ingest(r.Context(), id, key, body)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"kind":     out.Kind,
		"records":  out.Records,
		"rejected": out.Rejected,
	})
}

// parseFilter reads the feed query parameters.
func parseFilter(r *http.Request) (model.Filter, error) {
	q := r.URL.Query()
	f := model.Filter{
		OperatorRefs:    model.SplitList(q.Get("operatorRef")),
		LineRefs:        model.SplitList(q.Get("lineRef")),
		VehicleRef:      q.Get("vehicleRef"),
		ProducerRef:     q.Get("producerRef"),
		OriginRef:       q.Get("originRef"),
		DestinationRef:  q.Get("destinationRef"),
		SubscriptionIDs: model.SplitList(q.Get("subscriptionId")),
	}
	if bb := q.Get("boundingBox"); bb != "" {
		box, err := model.ParseBoundingBox(bb)
		if err != nil {
			return f, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		f.BoundingBox = box
	}
	return f, nil
}

func (h *handler) feed(w http.ResponseWriter, r *http.Request) {
	variant, err := feed.ParseVariant(r.URL.Query().Get("downloadVariant"))
	if err != nil {
		writeError(w, r, h.logger, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if h.SnapshotRedirect && variant == feed.VariantSiriVM && f.Empty() {
		if url, err := h.Feed.SnapshotURL(r.Context(), variant); err == nil {
			http.Redirect(w, r, url, http.StatusFound)
			return
		}
	}

	data, contentType, err := h.Feed.Render(r.Context(), variant, f)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
