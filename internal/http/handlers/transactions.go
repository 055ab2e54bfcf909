package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rentfolio/propsync/internal/ledger"
	"github.com/rentfolio/propsync/pkg/logging"
)

type ledgerReader interface {
	ListForLease(ctx context.Context, buildiumLeaseID int64, limit int) ([]ledger.TransactionView, error)
}

// TransactionsHandler serves the read side of the ledger.
type TransactionsHandler struct {
	reader ledgerReader
	logger *logging.Logger
}

func NewTransactionsHandler(reader ledgerReader, logger *logging.Logger) *TransactionsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &TransactionsHandler{reader: reader, logger: logger}
}

// ListForLease handles GET /api/leases/{leaseID}/transactions.
func (h *TransactionsHandler) ListForLease(w http.ResponseWriter, r *http.Request) {
	leaseID, err := strconv.ParseInt(chi.URLParam(r, "leaseID"), 10, 64)
	if err != nil || leaseID <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid lease id")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	views, err := h.reader.ListForLease(r.Context(), leaseID, limit)
	if err != nil {
		h.logger.Error("lease transaction listing failed", "lease_id", leaseID, "error", err)
		writeError(w, http.StatusInternalServerError, "Unable to list transactions")
		return
	}
	if views == nil {
		views = []ledger.TransactionView{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": views, "count": len(views)})
}
