package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rentfolio/propsync/internal/webhook"
	"github.com/rentfolio/propsync/pkg/logging"
)

type eventStore interface {
	FailedEvents(ctx context.Context, limit, offset int) ([]webhook.EventRecord, error)
	GetByID(ctx context.Context, id string) (*webhook.EventRecord, error)
}

type redeliverer interface {
	Redeliver(ctx context.Context, rec *webhook.EventRecord) (webhook.Result, error)
}

// AdminEventsHandler exposes the dead-letter queue to operators: list
// failed deliveries and push one back through the pipeline.
type AdminEventsHandler struct {
	store    eventStore
	pipeline redeliverer
	logger   *logging.Logger
}

func NewAdminEventsHandler(store eventStore, pipeline redeliverer, logger *logging.Logger) *AdminEventsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminEventsHandler{store: store, pipeline: pipeline, logger: logger}
}

type failedEventItem struct {
	ID           string `json:"id"`
	WebhookID    string `json:"webhook_id"`
	EventName    string `json:"event_name"`
	EntityID     string `json:"entity_id"`
	Status       string `json:"status"`
	RetryCount   int    `json:"retry_count"`
	ErrorMessage string `json:"error_message,omitempty"`
	ReceivedAt   string `json:"received_at"`
}

// ListFailed handles GET /admin/webhook-events/failed.
func (h *AdminEventsHandler) ListFailed(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	records, err := h.store.FailedEvents(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed event listing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Unable to list failed events")
		return
	}

	items := make([]failedEventItem, 0, len(records))
	for _, rec := range records {
		items = append(items, failedEventItem{
			ID:           rec.ID,
			WebhookID:    rec.WebhookID,
			EventName:    rec.EventName,
			EntityID:     rec.EntityID,
			Status:       rec.Status,
			RetryCount:   rec.RetryCount,
			ErrorMessage: rec.ErrorMessage,
			ReceivedAt:   rec.ReceivedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": items, "count": len(items)})
}

// Redeliver handles POST /admin/webhook-events/{eventID}/redeliver: the
// stored payload runs through the pipeline again as if freshly delivered.
func (h *AdminEventsHandler) Redeliver(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	if eventID == "" {
		writeError(w, http.StatusBadRequest, "Missing event id")
		return
	}

	rec, err := h.store.GetByID(r.Context(), eventID)
	if err != nil {
		h.logger.Error("event lookup failed", "event_id", eventID, "error", err)
		writeError(w, http.StatusInternalServerError, "Unable to load event")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "Event not found")
		return
	}

	result, err := h.pipeline.Redeliver(r.Context(), rec)
	if err != nil {
		h.logger.Error("redelivery failed", "event_id", eventID, "error", err)
		writeError(w, http.StatusInternalServerError, "Redelivery failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
