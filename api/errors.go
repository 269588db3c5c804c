package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/theoremus-urban-solutions/siri-vm-hub/ingest"
	"github.com/theoremus-urban-solutions/siri-vm-hub/store"
)

// errBadRequest marks request validation failures on management endpoints.
var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

// statusFor maps a domain error to its HTTP status. Producer failures and
// anything unclassified are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, ingest.ErrClientError):
		return http.StatusBadRequest
	case errors.Is(err, ingest.ErrInvalidAPIKey):
		return http.StatusUnauthorized
	case errors.Is(err, store.ErrSubscriptionNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// internalErrorMessage is the only error text server-side failures expose;
// the cause is in the log entry carrying the same request id.
const internalErrorMessage = "internal server error"

// writeError logs server-side failures with the request id and writes the JSON body.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := statusFor(err)
	reqID := middleware.GetReqID(r.Context())
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			"request_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		msg = internalErrorMessage
	}
	writeJSON(w, status, errorResponse{Error: msg, RequestID: reqID})
}
