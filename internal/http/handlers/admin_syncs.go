package handlers

import (
	"context"
	"net/http"

	"github.com/rentfolio/propsync/internal/syncstatus"
	"github.com/rentfolio/propsync/pkg/logging"
)

type syncLister interface {
	Failed(ctx context.Context, entityType string) ([]syncstatus.Record, error)
}

type syncRetryer interface {
	RetryFailed(ctx context.Context, entityType string) (*syncstatus.RetryResult, error)
}

// AdminSyncHandler serves the per-entity sync status queue.
type AdminSyncHandler struct {
	store   syncLister
	retryer syncRetryer
	logger  *logging.Logger
}

func NewAdminSyncHandler(store syncLister, retryer syncRetryer, logger *logging.Logger) *AdminSyncHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminSyncHandler{store: store, retryer: retryer, logger: logger}
}

// ListFailed handles GET /admin/syncs/failed. The entity_type query
// parameter narrows the listing to one entity family.
func (h *AdminSyncHandler) ListFailed(w http.ResponseWriter, r *http.Request) {
	entityType := r.URL.Query().Get("entity_type")
	records, err := h.store.Failed(r.Context(), entityType)
	if err != nil {
		h.logger.Error("failed sync listing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Unable to list failed syncs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"syncs": records, "count": len(records)})
}

// RetryFailed handles POST /admin/syncs/retry.
func (h *AdminSyncHandler) RetryFailed(w http.ResponseWriter, r *http.Request) {
	entityType := r.URL.Query().Get("entity_type")
	result, err := h.retryer.RetryFailed(r.Context(), entityType)
	if err != nil {
		h.logger.Error("sync retry sweep failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Retry sweep failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
